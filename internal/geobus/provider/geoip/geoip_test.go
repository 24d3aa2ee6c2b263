// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoip

import (
	"context"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/http"
	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/testhelper"
)

const testFile = "../../../../testdata/geoip.json"

func TestGeolocationGeoIPProvider_locate(t *testing.T) {
	t.Run("locate succeeds", func(t *testing.T) {
		provider := testProvider(t, testhelper.FileResponse(t, 200, testFile))
		loc, acc, err := provider.locate(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		want := location.Data{Latitude: 40.7185, Longitude: -74.0025}
		if loc != want {
			t.Errorf("expected location to be %s, got %s", want, loc)
		}
		if acc != geobus.AccuracyZip {
			t.Errorf("expected accuracy to be %d, got %f", geobus.AccuracyZip, acc)
		}
	})
	t.Run("locate fails on API error", func(t *testing.T) {
		provider := testProvider(t, testhelper.JSONResponse(t, 503, nil))
		if _, _, err := provider.locate(t.Context()); !errors.Is(err, http.ErrHTTPStatus) {
			t.Errorf("expected error to be %s, got %s", http.ErrHTTPStatus, err)
		}
	})
}

func TestAccuracyFor(t *testing.T) {
	tests := []struct {
		name   string
		result APIResult
		want   float64
	}{
		{"zip", APIResult{CountryCode: "DE", City: "Berlin", ZipCode: "10117"}, geobus.AccuracyZip},
		{"city", APIResult{CountryCode: "DE", RegionCode: "BE", City: "Berlin"}, geobus.AccuracyCity},
		{"region", APIResult{CountryCode: "DE", RegionCode: "BE"}, geobus.AccuracyRegion},
		{"country", APIResult{CountryCode: "DE"}, geobus.AccuracyCountry},
		{"unknown", APIResult{}, geobus.AccuracyUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := accuracyFor(&tc.result); got != tc.want {
				t.Errorf("expected accuracy to be %f, got %f", tc.want, got)
			}
		})
	}
}

func TestGeolocationGeoIPProvider_LookupStream(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		provider := testProvider(t, nil)
		provider.period = time.Millisecond * 10
		provider.locateFn = func(context.Context) (location.Data, float64, error) {
			return location.Data{Latitude: 1, Longitude: 2}, geobus.AccuracyCity, nil
		}

		result := <-provider.LookupStream(ctx, "test")
		cancel()
		synctest.Wait()

		if result.Source != name || result.AccuracyMeters != geobus.AccuracyCity {
			t.Errorf("unexpected result: %+v", result)
		}
	})
}

func testProvider(t *testing.T, fn func(req *stdhttp.Request) (*stdhttp.Response, error)) *GeolocationGeoIPProvider {
	t.Helper()
	client := http.New(logger.NewLogger(slog.LevelDebug, io.Discard))
	if fn != nil {
		client.Transport = testhelper.MockRoundTripper{Fn: fn}
	}
	return NewGeolocationGeoIPProvider(client)
}
