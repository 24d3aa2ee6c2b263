// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoip

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/http"
	"github.com/wneessen/geopicker/internal/location"
)

const (
	APIEndpoint   = "https://reallyfreegeoip.org/json/"
	LookupTimeout = time.Second * 5
	name          = "geoip"
)

// GeolocationGeoIPProvider derives a coarse position from the public IP address.
type GeolocationGeoIPProvider struct {
	name     string
	http     *http.Client
	period   time.Duration
	ttl      time.Duration
	locateFn func(ctx context.Context) (location.Data, float64, error)
}

type APIResult struct {
	IP          string  `json:"ip"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country_name"`
	RegionCode  string  `json:"region_code,omitempty"`
	Region      string  `json:"region_name,omitempty"`
	City        string  `json:"city,omitempty"`
	ZipCode     string  `json:"zip_code,omitempty"`
	TimeZone    string  `json:"time_zone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	MetroCode   int     `json:"metro_code"`
}

func NewGeolocationGeoIPProvider(http *http.Client) *GeolocationGeoIPProvider {
	provider := &GeolocationGeoIPProvider{
		name:   name,
		http:   http,
		period: 30 * time.Minute,
		ttl:    60 * time.Minute,
	}
	provider.locateFn = provider.locate
	return provider
}

func (p *GeolocationGeoIPProvider) Name() string {
	return p.name
}

// LookupStream periodically resolves the public IP and emits a result whenever the derived
// position changes.
func (p *GeolocationGeoIPProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}
		firstRun := true

		for {
			if !firstRun {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
				}
			}
			firstRun = false

			loc, acc, err := p.locateFn(ctx)
			if err != nil {
				continue
			}
			if !state.HasChanged(loc) {
				continue
			}
			state.Update(loc)

			select {
			case <-ctx.Done():
				return
			case out <- p.createResult(key, loc, acc):
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGeoIPProvider) createResult(key string, loc location.Data, acc float64) geobus.Result {
	return geobus.Result{
		Key:            key,
		Location:       loc,
		AccuracyMeters: acc,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

func (p *GeolocationGeoIPProvider) locate(ctx context.Context) (location.Data, float64, error) {
	ctxHttp, cancelHttp := context.WithTimeout(ctx, LookupTimeout)
	defer cancelHttp()

	result := new(APIResult)
	if _, err := p.http.Get(ctxHttp, APIEndpoint, result, nil, nil); err != nil {
		return location.Data{}, 0, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	loc, err := location.New(geobus.Truncate(result.Latitude, geobus.TruncPrecision),
		geobus.Truncate(result.Longitude, geobus.TruncPrecision))
	if err != nil {
		return location.Data{}, 0, fmt.Errorf("geolocation API returned an invalid position: %w", err)
	}
	return loc, accuracyFor(result), nil
}

// accuracyFor estimates the accuracy from the most specific field the API filled in.
func accuracyFor(result *APIResult) float64 {
	switch {
	case result.ZipCode != "":
		return geobus.AccuracyZip
	case result.City != "":
		return geobus.AccuracyCity
	case result.RegionCode != "":
		return geobus.AccuracyRegion
	case result.CountryCode != "":
		return geobus.AccuracyCountry
	default:
		return geobus.AccuracyUnknown
	}
}
