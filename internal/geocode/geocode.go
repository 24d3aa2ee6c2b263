// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/geopicker/internal/location"
)

// Status is the status code of a reverse geocoding response.
type Status string

const (
	StatusOK             Status = "OK"
	StatusZeroResults    Status = "ZERO_RESULTS"
	StatusOverQueryLimit Status = "OVER_QUERY_LIMIT"
	StatusRequestDenied  Status = "REQUEST_DENIED"
	StatusInvalidRequest Status = "INVALID_REQUEST"
	StatusUnknownError   Status = "UNKNOWN_ERROR"
)

// ErrStatus is returned by Response.Err for every status that is not a usable answer.
var ErrStatus = errors.New("geocoding request was not successful")

// Result is a single address candidate.
type Result struct {
	FormattedAddress string `json:"formatted_address"`
}

// Response is the outcome of one reverse geocoding request.
type Response struct {
	Results []Result `json:"results"`
	Status  Status   `json:"status"`

	CacheHit bool `json:"-"`
}

// Geocoder resolves a location into address candidates.
type Geocoder interface {
	Name() string
	Reverse(ctx context.Context, loc location.Data) (Response, error)
}

// Err returns nil if the response carries a usable answer (OK or ZERO_RESULTS) and an
// error wrapping ErrStatus otherwise.
func (r Response) Err() error {
	switch r.Status {
	case StatusOK, StatusZeroResults:
		return nil
	case "":
		return fmt.Errorf("%w: response without status", ErrStatus)
	default:
		return fmt.Errorf("%w: %s", ErrStatus, r.Status)
	}
}

// Addresses returns the formatted addresses of all results.
func (r Response) Addresses() []string {
	addrs := make([]string, 0, len(r.Results))
	for _, result := range r.Results {
		addrs = append(addrs, result.FormattedAddress)
	}
	return addrs
}

// NewResponse returns an OK response for the given formatted addresses, or a ZERO_RESULTS
// response if no non-empty address is given.
func NewResponse(addresses ...string) Response {
	resp := Response{Status: StatusZeroResults, Results: []Result{}}
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		resp.Results = append(resp.Results, Result{FormattedAddress: addr})
	}
	if len(resp.Results) > 0 {
		resp.Status = StatusOK
	}
	return resp
}
