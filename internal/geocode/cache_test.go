// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wneessen/geopicker/internal/location"
)

const (
	testHitTTL  = 200 * time.Millisecond
	testMissTTL = 100 * time.Millisecond
)

var (
	testLocation   = location.Data{Latitude: 52.5129, Longitude: 13.3910}
	testFailing    = location.Data{Latitude: 1, Longitude: -1}
	testDenied     = location.Data{Latitude: 3, Longitude: -3}
	testNowhere    = location.Data{Latitude: 2, Longitude: -2}
	testAddressStr = "Quartier 205, Friedrichstraße 67, 10117 Berlin, Germany"
)

type mockGeocoder struct {
	calls int
}

func (m *mockGeocoder) Name() string { return "mock" }

func (m *mockGeocoder) Reverse(_ context.Context, loc location.Data) (Response, error) {
	m.calls++
	switch loc {
	case testFailing:
		return Response{}, errors.New("lookup intentionally failed")
	case testDenied:
		return Response{Status: StatusRequestDenied}, nil
	case testNowhere:
		return NewResponse(), nil
	}
	return NewResponse(testAddressStr), nil
}

func TestNewCachedGeocoder(t *testing.T) {
	t.Run("a new geocoder should be returned", func(t *testing.T) {
		coder := NewCachedGeocoder(&mockGeocoder{}, testHitTTL, testMissTTL)
		if coder == nil {
			t.Fatal("expected a non-nil geocoder")
		}
		if coder.Name() != "geocoder cache using mock" {
			t.Errorf("expected geocoder name to be 'geocoder cache using mock', got %q", coder.Name())
		}
	})
}

func TestCachedGeocoder_Reverse(t *testing.T) {
	t.Run("the first lookup is a cache miss", func(t *testing.T) {
		mock := &mockGeocoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, testMissTTL)
		resp, err := coder.Reverse(t.Context(), testLocation)
		if err != nil {
			t.Fatal(err)
		}
		if resp.CacheHit {
			t.Error("expected cache miss")
		}
		if diff := cmp.Diff([]string{testAddressStr}, resp.Addresses()); diff != "" {
			t.Errorf("unexpected addresses (-want +got):\n%s", diff)
		}
	})
	t.Run("fetching results twice should hit the cache", func(t *testing.T) {
		mock := &mockGeocoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, testMissTTL)
		if _, err := coder.Reverse(t.Context(), testLocation); err != nil {
			t.Fatal(err)
		}
		resp, err := coder.Reverse(t.Context(), testLocation)
		if err != nil {
			t.Fatal(err)
		}
		if !resp.CacheHit {
			t.Error("expected cached result")
		}
		if mock.calls != 1 {
			t.Errorf("expected the wrapped geocoder to be called once, got %d", mock.calls)
		}
		if resp.Status != StatusOK {
			t.Errorf("expected status to be %s, got %s", StatusOK, resp.Status)
		}
	})
	t.Run("a location within the same cell should hit the cache", func(t *testing.T) {
		coder := NewCachedGeocoder(&mockGeocoder{}, testHitTTL, testMissTTL)
		if _, err := coder.Reverse(t.Context(), testLocation); err != nil {
			t.Fatal(err)
		}
		nearby := location.Data{Latitude: testLocation.Latitude + 1e-7, Longitude: testLocation.Longitude - 1e-7}
		resp, err := coder.Reverse(t.Context(), nearby)
		if err != nil {
			t.Fatal(err)
		}
		if !resp.CacheHit {
			t.Error("expected cached result")
		}
	})
	t.Run("a far away location should miss the cache", func(t *testing.T) {
		coder := NewCachedGeocoder(&mockGeocoder{}, testHitTTL, testMissTTL)
		if _, err := coder.Reverse(t.Context(), testLocation); err != nil {
			t.Fatal(err)
		}
		far := location.Data{Latitude: 48.1374, Longitude: 11.5755}
		resp, err := coder.Reverse(t.Context(), far)
		if err != nil {
			t.Fatal(err)
		}
		if resp.CacheHit {
			t.Error("expected cache miss")
		}
	})
	t.Run("modifying a cached result does not alter the cache", func(t *testing.T) {
		coder := NewCachedGeocoder(&mockGeocoder{}, testHitTTL, testMissTTL)
		resp, err := coder.Reverse(t.Context(), testLocation)
		if err != nil {
			t.Fatal(err)
		}
		resp.Results[0].FormattedAddress = "modified"
		resp, err = coder.Reverse(t.Context(), testLocation)
		if err != nil {
			t.Fatal(err)
		}
		if resp.Results[0].FormattedAddress != testAddressStr {
			t.Errorf("expected cached address to be %q, got %q", testAddressStr, resp.Results[0].FormattedAddress)
		}
	})
	t.Run("lookup errors are returned and not cached", func(t *testing.T) {
		mock := &mockGeocoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, testMissTTL)
		for range 2 {
			if _, err := coder.Reverse(t.Context(), testFailing); err == nil {
				t.Fatal("expected an error")
			}
		}
		if mock.calls != 2 {
			t.Errorf("expected the wrapped geocoder to be called twice, got %d", mock.calls)
		}
	})
	t.Run("non-OK statuses are not cached", func(t *testing.T) {
		mock := &mockGeocoder{}
		coder := NewCachedGeocoder(mock, testHitTTL, testMissTTL)
		for range 2 {
			resp, err := coder.Reverse(t.Context(), testDenied)
			if err != nil {
				t.Fatal(err)
			}
			if !errors.Is(resp.Err(), ErrStatus) {
				t.Errorf("expected response error to be %s, got %v", ErrStatus, resp.Err())
			}
		}
		if mock.calls != 2 {
			t.Errorf("expected the wrapped geocoder to be called twice, got %d", mock.calls)
		}
	})
	t.Run("invalid resolution fails", func(t *testing.T) {
		coder := NewCachedGeocoderWithResolution(&mockGeocoder{}, testHitTTL, testMissTTL, 99)
		if _, err := coder.Reverse(t.Context(), testLocation); err == nil {
			t.Fatal("expected an error")
		}
	})
	t.Run("cache should not trigger on expired TTL", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			coder := NewCachedGeocoder(&mockGeocoder{}, testHitTTL, testMissTTL)
			if _, err := coder.Reverse(t.Context(), testLocation); err != nil {
				t.Fatal(err)
			}
			time.Sleep(testHitTTL * 2)
			resp, err := coder.Reverse(t.Context(), testLocation)
			if err != nil {
				t.Fatal(err)
			}
			if resp.CacheHit {
				t.Error("expected cache miss")
			}
		})
	})
	t.Run("cache should hit on non-expired TTL", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			coder := NewCachedGeocoder(&mockGeocoder{}, testHitTTL, testMissTTL)
			if _, err := coder.Reverse(t.Context(), testLocation); err != nil {
				t.Fatal(err)
			}
			time.Sleep(testHitTTL - 5*time.Millisecond)
			resp, err := coder.Reverse(t.Context(), testLocation)
			if err != nil {
				t.Fatal(err)
			}
			if !resp.CacheHit {
				t.Error("expected cache hit")
			}
		})
	})
	t.Run("empty results use the miss TTL", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			coder := NewCachedGeocoder(&mockGeocoder{}, testHitTTL, testMissTTL)
			if _, err := coder.Reverse(t.Context(), testNowhere); err != nil {
				t.Fatal(err)
			}
			time.Sleep(testMissTTL + 5*time.Millisecond)
			resp, err := coder.Reverse(t.Context(), testNowhere)
			if err != nil {
				t.Fatal(err)
			}
			if resp.CacheHit {
				t.Error("expected cache miss after the miss TTL")
			}
			if resp.Status != StatusZeroResults {
				t.Errorf("expected status to be %s, got %s", StatusZeroResults, resp.Status)
			}
		})
	})
}

func TestResponse_Err(t *testing.T) {
	tests := []struct {
		status  Status
		wantErr bool
	}{
		{StatusOK, false},
		{StatusZeroResults, false},
		{StatusOverQueryLimit, true},
		{StatusRequestDenied, true},
		{StatusInvalidRequest, true},
		{StatusUnknownError, true},
		{"", true},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			err := Response{Status: tc.status}.Err()
			if tc.wantErr && !errors.Is(err, ErrStatus) {
				t.Errorf("expected error to be %s, got %v", ErrStatus, err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got %s", err)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	t.Run("addresses produce an OK response", func(t *testing.T) {
		resp := NewResponse("1600 Amphitheatre Pkwy", "")
		if resp.Status != StatusOK {
			t.Errorf("expected status to be %s, got %s", StatusOK, resp.Status)
		}
		if diff := cmp.Diff([]Result{{FormattedAddress: "1600 Amphitheatre Pkwy"}}, resp.Results); diff != "" {
			t.Errorf("unexpected results (-want +got):\n%s", diff)
		}
	})
	t.Run("no addresses produce a ZERO_RESULTS response", func(t *testing.T) {
		resp := NewResponse()
		if resp.Status != StatusZeroResults {
			t.Errorf("expected status to be %s, got %s", StatusZeroResults, resp.Status)
		}
		if resp.Results == nil || len(resp.Results) != 0 {
			t.Errorf("expected empty non-nil results, got %#v", resp.Results)
		}
	})
}
