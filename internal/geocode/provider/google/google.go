// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package google implements reverse geocoding with the Google Maps Geocoding API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/geopicker/internal/geocode"
	"github.com/wneessen/geopicker/internal/http"
	"github.com/wneessen/geopicker/internal/location"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/"
	ReversePath    = "maps/api/geocode/json"
	APITimeout     = time.Second * 10
	name           = "google"
)

var ErrMissingAPIKey = errors.New("google geocoding requires an API key")

type Google struct {
	apikey   string
	endpoint string
	http     *http.Client
	lang     language.Tag
	limit    int
}

// New returns a Google geocoder for the given base URL. An empty baseURL selects
// DefaultBaseURL.
func New(client *http.Client, baseURL, apikey string, lang language.Tag) (*Google, error) {
	if apikey == "" {
		return nil, ErrMissingAPIKey
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	return &Google{
		apikey:   apikey,
		endpoint: base.JoinPath(ReversePath).String(),
		http:     client,
		lang:     lang,
	}, nil
}

// WithLimit caps the number of address candidates Reverse returns. The API has no limit
// parameter, so the list is truncated locally. A limit below 1 returns all candidates.
func (g *Google) WithLimit(limit int) *Google {
	g.limit = limit
	return g
}

func (g *Google) Name() string {
	return name
}

// GetAddress requests the addresses for latlng ("<lat>,<lng>") using key as API key. The
// decoded response is returned as is; its status is not interpreted.
func (g *Google) GetAddress(ctx context.Context, latlng, key string) (geocode.Response, error) {
	var response geocode.Response
	if key == "" {
		return response, ErrMissingAPIKey
	}

	query := url.Values{}
	query.Set("latlng", latlng)
	query.Set("key", key)
	if g.lang != language.Und {
		query.Set("language", g.lang.String())
	}

	if _, err := g.http.GetWithTimeout(ctx, g.endpoint, &response, query, nil, APITimeout); err != nil {
		return geocode.Response{}, fmt.Errorf("failed to retrieve address details from Google geocoding API: %w", err)
	}
	if response.Results == nil {
		response.Results = []geocode.Result{}
	}

	return response, nil
}

func (g *Google) Reverse(ctx context.Context, loc location.Data) (geocode.Response, error) {
	response, err := g.GetAddress(ctx, loc.String(), g.apikey)
	if err != nil {
		return response, err
	}
	if g.limit > 0 && len(response.Results) > g.limit {
		response.Results = response.Results[:g.limit]
	}
	return response, nil
}
