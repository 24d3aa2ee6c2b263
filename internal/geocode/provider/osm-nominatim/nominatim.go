// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package nominatim

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
	APIReverseEndpoint = "https://nominatim.openstreetmap.org/reverse"
	APITimeout         = time.Second * 10
	name               = "osm-nominatim"
)

type Nominatim struct {
	endpoint string
	http     *http.Client
	lang     language.Tag
}

// ReverseResult is the jsonv2 answer of the reverse endpoint. Nominatim reports a location
// without address with HTTP 200 and the Error field set.
type ReverseResult struct {
	PlaceID     int64  `json:"place_id"`
	APILat      string `json:"lat"`
	APILon      string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func New(client *http.Client, lang language.Tag) *Nominatim {
	return NewWithEndpoint(client, lang, APIReverseEndpoint)
}

// NewWithEndpoint returns a Nominatim geocoder that queries a self-hosted instance.
func NewWithEndpoint(client *http.Client, lang language.Tag, endpoint string) *Nominatim {
	if endpoint == "" {
		endpoint = APIReverseEndpoint
	}
	return &Nominatim{
		endpoint: endpoint,
		lang:     lang,
		http:     client,
	}
}

func (n *Nominatim) Name() string {
	return name
}

func (n *Nominatim) Reverse(ctx context.Context, loc location.Data) (geocode.Response, error) {
	var result ReverseResult

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	if n.lang != language.Und {
		query.Set("accept-language", n.lang.String())
	}

	if _, err := n.http.GetWithTimeout(ctx, n.endpoint, &result, query, nil, APITimeout); err != nil {
		return geocode.Response{}, fmt.Errorf("failed to fetch reverse address details from Nominatim API: %w", err)
	}
	if result.Error != "" {
		return geocode.NewResponse(), nil
	}

	return geocode.NewResponse(result.DisplayName), nil
}
