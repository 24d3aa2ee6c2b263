// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocodeearth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/geopicker/internal/geocode"
	"github.com/wneessen/geopicker/internal/http"
	"github.com/wneessen/geopicker/internal/location"
)

const (
	APIEndpoint = "https://api.geocode.earth/v1/reverse"
	APITimeout  = time.Second * 10
	name        = "geocode-earth"
)

type GeocodeEarth struct {
	apikey string
	http   *http.Client
	lang   language.Tag
	size   int
}

type Response struct {
	Features []Feature `json:"features"`
	Type     string    `json:"type"`
}

type Feature struct {
	Properties Properties `json:"properties"`
	Type       string     `json:"type"`
}

type Properties struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Layer      string  `json:"layer"`
}

func New(client *http.Client, lang language.Tag, apikey string, size int) *GeocodeEarth {
	if size < 1 {
		size = 1
	}
	return &GeocodeEarth{
		apikey: apikey,
		lang:   lang,
		http:   client,
		size:   size,
	}
}

func (g *GeocodeEarth) Name() string {
	return name
}

func (g *GeocodeEarth) Reverse(ctx context.Context, loc location.Data) (geocode.Response, error) {
	var response Response

	query := url.Values{}
	query.Set("api_key", g.apikey)
	query.Set("point.lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	query.Set("point.lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	query.Set("size", strconv.Itoa(g.size))
	if g.lang != language.Und {
		query.Set("lang", g.lang.String())
	}

	if _, err := g.http.GetWithTimeout(ctx, APIEndpoint, &response, query, nil, APITimeout); err != nil {
		return geocode.Response{}, fmt.Errorf("failed to retrieve address details from geocode.earth API: %w", err)
	}

	labels := make([]string, 0, len(response.Features))
	for _, feature := range response.Features {
		labels = append(labels, feature.Properties.Label)
	}
	return geocode.NewResponse(labels...), nil
}
