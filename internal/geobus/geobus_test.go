// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/logger"
)

var (
	berlin  = location.Data{Latitude: 52.5200, Longitude: 13.4050}
	potsdam = location.Data{Latitude: 52.3906, Longitude: 13.0645}
)

func TestGeolocationState_HasChanged(t *testing.T) {
	t.Run("empty state always returns true", func(t *testing.T) {
		state := GeolocationState{}
		if !state.HasChanged(berlin) {
			t.Error("expected state to have changed")
		}
		if _, ok := state.Last(); ok {
			t.Error("expected empty state to have no last location")
		}
	})
	t.Run("same location return false", func(t *testing.T) {
		state := GeolocationState{}
		state.Update(berlin)
		if state.HasChanged(berlin) {
			t.Error("expected state to not have changed")
		}
	})
	t.Run("different location return true", func(t *testing.T) {
		tests := []struct {
			name string
			loc  location.Data
		}{
			{"lat changes", location.Data{Latitude: 52.5201, Longitude: berlin.Longitude}},
			{"lon changes", location.Data{Latitude: berlin.Latitude, Longitude: 13.4051}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				state := GeolocationState{}
				state.Update(berlin)
				if !state.HasChanged(tc.loc) {
					t.Error("expected state to have changed")
				}
			})
		}
	})
}

func TestResult_BetterThan(t *testing.T) {
	now := time.Now()
	prev := Result{Key: "k", Location: berlin, AccuracyMeters: AccuracyCity, At: now}
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{"empty previous", Result{Key: "k"}, true},
		{"more accurate", Result{Key: "k", AccuracyMeters: AccuracyZip, At: now}, true},
		{"less accurate", Result{Key: "k", AccuracyMeters: AccuracyRegion, At: now}, false},
		{"equally accurate", Result{Key: "k", AccuracyMeters: AccuracyCity, At: now}, false},
		{"older", Result{Key: "k", AccuracyMeters: AccuracyExact, At: now.Add(-time.Minute)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := prev
			if tc.name == "empty previous" {
				p = Result{}
			}
			if got := tc.result.BetterThan(p); got != tc.want {
				t.Errorf("expected BetterThan to be %t, got %t", tc.want, got)
			}
		})
	}
}

func TestResult_SignificantChange(t *testing.T) {
	prev := Result{Location: berlin, AccuracyMeters: AccuracyCity}
	if !(Result{Location: potsdam, AccuracyMeters: AccuracyCity}).SignificantChange(prev) {
		t.Error("expected a move of several kilometers to be significant")
	}
	if !(Result{Location: berlin, AccuracyMeters: AccuracyZip}).SignificantChange(prev) {
		t.Error("expected a large accuracy gain to be significant")
	}
	nearby := location.Data{Latitude: 52.5201, Longitude: 13.4051}
	if (Result{Location: nearby, AccuracyMeters: AccuracyCity}).SignificantChange(prev) {
		t.Error("expected a small move to not be significant")
	}
}

func TestResult_IsExpired(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		r := Result{At: time.Now(), TTL: time.Minute}
		if r.IsExpired() {
			t.Error("expected fresh result to not be expired")
		}
		time.Sleep(time.Minute + time.Second)
		if !r.IsExpired() {
			t.Error("expected result to be expired")
		}
		if (Result{At: r.At}).IsExpired() {
			t.Error("expected result without TTL to never expire")
		}
	})
}

func TestGeoBus_Publish(t *testing.T) {
	t.Run("invalid results are dropped", func(t *testing.T) {
		bus := testBus()
		bus.Publish(Result{Key: "k", Location: location.Data{Latitude: 91}, AccuracyMeters: AccuracyZip})
		bus.Publish(Result{Key: "k", Location: berlin})
		if _, ok := bus.Best("k"); ok {
			t.Error("expected no best result")
		}
	})
	t.Run("first result becomes best and is broadcast", func(t *testing.T) {
		bus := testBus()
		ch, unsub := bus.Subscribe("k", 1)
		defer unsub()
		bus.Publish(Result{Key: "k", Location: berlin, AccuracyMeters: AccuracyCity, Source: "a"})
		best, ok := bus.Best("k")
		if !ok || best.Location != berlin {
			t.Fatalf("expected best to be %s, got %s", berlin, best.Location)
		}
		select {
		case r := <-ch:
			if r.Location != berlin {
				t.Errorf("expected broadcast location to be %s, got %s", berlin, r.Location)
			}
		default:
			t.Error("expected result to be broadcast")
		}
	})
	t.Run("a less accurate result does not replace the best", func(t *testing.T) {
		bus := testBus()
		bus.Publish(Result{Key: "k", Location: berlin, AccuracyMeters: AccuracyZip, Source: "a"})
		bus.Publish(Result{Key: "k", Location: potsdam, AccuracyMeters: AccuracyCountry, Source: "b"})
		best, _ := bus.Best("k")
		if best.Location != berlin {
			t.Errorf("expected best to stay %s, got %s", berlin, best.Location)
		}
	})
	t.Run("a more accurate distant result replaces the best", func(t *testing.T) {
		bus := testBus()
		bus.Publish(Result{Key: "k", Location: berlin, AccuracyMeters: AccuracyCountry, Source: "a"})
		bus.Publish(Result{Key: "k", Location: potsdam, AccuracyMeters: AccuracyExact, Source: "b"})
		best, _ := bus.Best("k")
		if best.Location != potsdam {
			t.Errorf("expected best to be %s, got %s", potsdam, best.Location)
		}
	})
	t.Run("the same source refreshes the timestamp", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			bus := testBus()
			bus.Publish(Result{Key: "k", Location: berlin, AccuracyMeters: AccuracyZip, Source: "a", TTL: time.Minute})
			time.Sleep(50 * time.Second)
			bus.Publish(Result{Key: "k", Location: berlin, AccuracyMeters: AccuracyZip, Source: "a", TTL: time.Minute})
			time.Sleep(50 * time.Second)
			if _, ok := bus.Best("k"); !ok {
				t.Error("expected refreshed result to not be expired")
			}
		})
	})
	t.Run("expired results are replaced", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			bus := testBus()
			bus.Publish(Result{Key: "k", Location: berlin, AccuracyMeters: AccuracyExact, Source: "a", TTL: time.Minute})
			time.Sleep(2 * time.Minute)
			if _, ok := bus.Best("k"); ok {
				t.Fatal("expected result to be expired")
			}
			bus.Publish(Result{Key: "k", Location: potsdam, AccuracyMeters: AccuracyCountry, Source: "b"})
			best, ok := bus.Best("k")
			if !ok || best.Location != potsdam {
				t.Errorf("expected best to be %s, got %s", potsdam, best.Location)
			}
		})
	})
}

func TestGeoBus_Subscribe(t *testing.T) {
	t.Run("subscribers receive the current best", func(t *testing.T) {
		bus := testBus()
		bus.Publish(Result{Key: "k", Location: berlin, AccuracyMeters: AccuracyCity})
		ch, unsub := bus.Subscribe("k", 0)
		r := <-ch
		if r.Location != berlin {
			t.Errorf("expected location to be %s, got %s", berlin, r.Location)
		}
		unsub()
		unsub()
		if _, ok := <-ch; ok {
			t.Error("expected channel to be closed")
		}
	})
	t.Run("subscribe all receives every key", func(t *testing.T) {
		bus := testBus()
		bus.Publish(Result{Key: "a", Location: berlin, AccuracyMeters: AccuracyCity})
		ch, unsub := bus.SubscribeAll(4)
		defer unsub()
		bus.Publish(Result{Key: "b", Location: potsdam, AccuracyMeters: AccuracyCity})
		keys := map[string]bool{}
		for range 2 {
			keys[(<-ch).Key] = true
		}
		if !keys["a"] || !keys["b"] {
			t.Errorf("expected results for both keys, got %v", keys)
		}
	})
}

type stubProvider struct {
	results []Result
	panics  bool
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) LookupStream(ctx context.Context, key string) <-chan Result {
	if s.panics {
		panic("intentionally panicking")
	}
	out := make(chan Result)
	go func() {
		defer close(out)
		for _, r := range s.results {
			r.Key = key
			select {
			case <-ctx.Done():
				return
			case out <- r:
			}
		}
		<-ctx.Done()
	}()
	return out
}

func TestOrchestrator_Track(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		bus := testBus()
		orch := bus.NewOrchestrator([]Provider{
			&stubProvider{panics: true},
			&stubProvider{results: []Result{{Location: berlin, AccuracyMeters: AccuracyCity, Source: "stub"}}},
		})
		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan struct{})
		go func() {
			orch.Track(ctx, "k")
			close(done)
		}()
		synctest.Wait()

		best, ok := bus.Best("k")
		if !ok || best.Location != berlin {
			t.Errorf("expected best to be %s, got %s", berlin, best.Location)
		}
		cancel()
		<-done
	})
}

func TestTruncate(t *testing.T) {
	if got := Truncate(52.520008, TruncPrecision); got != 52.52 {
		t.Errorf("expected 52.52, got %f", got)
	}
}

func testBus() *GeoBus {
	return New(logger.NewLogger(slog.LevelDebug, io.Discard))
}
