// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package opencage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/text/language"

	"github.com/wneessen/geopicker/internal/geocode"
	"github.com/wneessen/geopicker/internal/http"
	"github.com/wneessen/geopicker/internal/location"
)

const (
	APIEndpoint = "https://api.opencagedata.com/geocode/v1/json"
	APITimeout  = time.Second * 10
	name        = "opencage"
)

type OpenCage struct {
	apikey string
	http   *http.Client
	lang   language.Tag
	limit  int
}

type Response struct {
	Results      []Result `json:"results"`
	Status       Status   `json:"status"`
	TotalResults int      `json:"total_results"`
}

type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Result struct {
	Confidence int    `json:"confidence"`
	Formatted  string `json:"formatted"`
}

// New returns an OpenCage geocoder that requests up to limit address candidates.
func New(client *http.Client, lang language.Tag, apikey string, limit int) *OpenCage {
	if limit < 1 {
		limit = 1
	}
	return &OpenCage{
		apikey: apikey,
		lang:   lang,
		http:   client,
		limit:  limit,
	}
}

func (o *OpenCage) Name() string {
	return name
}

func (o *OpenCage) Reverse(ctx context.Context, loc location.Data) (geocode.Response, error) {
	var response Response

	query := url.Values{}
	query.Set("key", o.apikey)
	query.Set("q", loc.String())
	query.Set("no_annotations", "1")
	query.Set("no_record", "1")
	query.Set("limit", fmt.Sprintf("%d", o.limit))
	if o.lang != language.Und {
		query.Set("language", o.lang.String())
	}

	if _, err := o.http.GetWithTimeout(ctx, APIEndpoint, &response, query, nil, APITimeout); err != nil {
		return geocode.Response{}, fmt.Errorf("failed to retrieve address details from OpenCage API: %w", err)
	}
	if response.Status.Code != 0 && response.Status.Code != 200 {
		return geocode.Response{Results: []geocode.Result{}, Status: statusFromCode(response.Status.Code)}, nil
	}

	addrs := make([]string, 0, len(response.Results))
	for _, result := range response.Results {
		addrs = append(addrs, result.Formatted)
	}
	return geocode.NewResponse(addrs...), nil
}

// statusFromCode maps the OpenCage status codes to geocoding statuses.
func statusFromCode(code int) geocode.Status {
	switch code {
	case 400:
		return geocode.StatusInvalidRequest
	case 401, 402, 403:
		return geocode.StatusRequestDenied
	case 429:
		return geocode.StatusOverQueryLimit
	default:
		return geocode.StatusUnknownError
	}
}
