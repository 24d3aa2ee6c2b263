// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package locator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/permission"
)

const testKey = "test"

type failingChecker struct{}

func (failingChecker) Check(context.Context, permission.Permission) (permission.Status, error) {
	return permission.Denied, errors.New("intentionally failing")
}

// scriptedSource returns the scripted locations one per call and then keeps returning the
// last one.
type scriptedSource struct {
	mu    sync.Mutex
	locs  []location.Data
	calls int
}

func (s *scriptedSource) Best(key string) (geobus.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.locs) == 0 {
		return geobus.Result{}, false
	}
	idx := min(s.calls, len(s.locs)-1)
	s.calls++
	return geobus.Result{Key: key, Location: s.locs[idx], AccuracyMeters: 10, Source: "script"}, true
}

func TestLocator_HasPermission(t *testing.T) {
	tests := []struct {
		name       string
		denyFine   bool
		denyCoarse bool
		want       bool
	}{
		{"both granted", false, false, true},
		{"fine denied", true, false, false},
		{"coarse denied", false, true, false},
		{"both denied", true, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loc := New(permission.NewStatic(tc.denyFine, tc.denyCoarse), &scriptedSource{}, testLogger())
			if got := loc.HasPermission(t.Context()); got != tc.want {
				t.Errorf("expected HasPermission to be %t, got %t", tc.want, got)
			}
		})
	}
	t.Run("checker errors deny", func(t *testing.T) {
		loc := New(failingChecker{}, &scriptedSource{}, testLogger())
		if loc.HasPermission(t.Context()) {
			t.Error("expected checker error to deny")
		}
	})
}

func TestLocator_RequestUpdates(t *testing.T) {
	t.Run("denied permissions fail", func(t *testing.T) {
		loc := New(permission.NewStatic(false, true), &scriptedSource{}, testLogger())
		sub, err := loc.RequestUpdates(t.Context(), Request{Key: testKey})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("expected error to be %s, got %s", ErrPermissionDenied, err)
		}
		if sub != nil {
			t.Error("expected no subscription")
		}
	})
	t.Run("updates are delivered every interval", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			src := &scriptedSource{locs: []location.Data{
				{Latitude: 1, Longitude: 1},
				{Latitude: 2, Longitude: 2},
				{Latitude: 3, Longitude: 3},
			}}
			loc := New(permission.NewStatic(false, false), src, testLogger())
			sub, err := loc.RequestUpdates(t.Context(), Request{Key: testKey})
			if err != nil {
				t.Fatal(err)
			}
			defer sub.Close()

			start := time.Now()
			for i := 1; i <= 3; i++ {
				got := <-sub.Updates()
				if got.Latitude != float64(i) {
					t.Errorf("expected update %d to have latitude %d, got %f", i, i, got.Latitude)
				}
			}
			if elapsed := time.Since(start); elapsed != 2*DefaultInterval {
				t.Errorf("expected three updates within %s, took %s", 2*DefaultInterval, elapsed)
			}
		})
	})
	t.Run("invalid locations are dropped", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			src := &scriptedSource{locs: []location.Data{
				{Latitude: 100, Longitude: 1},
				{Latitude: 2, Longitude: 2},
			}}
			loc := New(permission.NewStatic(false, false), src, testLogger())
			sub, err := loc.RequestUpdates(t.Context(), Request{Key: testKey, Interval: time.Second})
			if err != nil {
				t.Fatal(err)
			}
			defer sub.Close()
			if got := <-sub.Updates(); got.Latitude != 2 {
				t.Errorf("expected first delivered update to have latitude 2, got %f", got.Latitude)
			}
		})
	})
	t.Run("close ends the stream and is idempotent", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			loc := New(permission.NewStatic(false, false), &scriptedSource{}, testLogger())
			sub, err := loc.RequestUpdates(t.Context(), Request{Key: testKey})
			if err != nil {
				t.Fatal(err)
			}
			sub.Close()
			sub.Close()
			if _, ok := <-sub.Updates(); ok {
				t.Error("expected update channel to be closed")
			}
		})
	})
	t.Run("cancelling the context ends the stream", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			loc := New(permission.NewStatic(false, false), &scriptedSource{}, testLogger())
			sub, err := loc.RequestUpdates(ctx, Request{Key: testKey})
			if err != nil {
				t.Fatal(err)
			}
			cancel()
			if _, ok := <-sub.Updates(); ok {
				t.Error("expected update channel to be closed")
			}
		})
	})
}

func TestLocator_RequestUpdatesFunc(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		src := &scriptedSource{locs: []location.Data{{Latitude: 1, Longitude: 1}, {Latitude: 2, Longitude: 2}}}
		loc := New(permission.NewStatic(false, false), src, testLogger())

		var mu sync.Mutex
		var got []location.Data
		sub, err := loc.RequestUpdatesFunc(t.Context(), Request{Key: testKey}, func(l location.Data) {
			mu.Lock()
			got = append(got, l)
			mu.Unlock()
		})
		if err != nil {
			t.Fatal(err)
		}
		time.Sleep(DefaultInterval + time.Millisecond)
		sub.Close()

		mu.Lock()
		defer mu.Unlock()
		if len(got) != 2 || got[1].Latitude != 2 {
			t.Errorf("expected two updates ending at latitude 2, got %v", got)
		}
		if sub.Updates() != nil {
			t.Error("expected callback subscription to have no update channel")
		}
	})
}

func TestLocator_RequestUpdatesFunc_closeFromCallback(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		src := &scriptedSource{locs: []location.Data{{Latitude: 1, Longitude: 1}, {Latitude: 2, Longitude: 2}}}
		loc := New(permission.NewStatic(false, false), src, testLogger())

		var calls atomic.Int32
		var sub *Subscription
		subReady := make(chan struct{})
		closed := make(chan struct{})
		var err error
		sub, err = loc.RequestUpdatesFunc(t.Context(), Request{Key: testKey}, func(location.Data) {
			calls.Add(1)
			<-subReady
			sub.Close()
			close(closed)
		})
		if err != nil {
			t.Fatal(err)
		}
		close(subReady)

		select {
		case <-closed:
		case <-time.After(DefaultInterval * 3):
			t.Fatal("closing the subscription from the callback did not return")
		}
		time.Sleep(DefaultInterval * 3)
		synctest.Wait()
		if calls.Load() != 1 {
			t.Errorf("expected no updates after close, got %d callback calls", calls.Load())
		}
		sub.Close()
	})
}

func TestParsePriority(t *testing.T) {
	for p, name := range priorityNames {
		got, err := ParsePriority(name)
		if err != nil || got != p {
			t.Errorf("expected %q to parse to %s, got %s (%v)", name, p, got, err)
		}
	}
	if p, err := ParsePriority(""); err != nil || p != HighAccuracy {
		t.Error("expected empty priority to be high accuracy")
	}
	if _, err := ParsePriority("turbo"); err == nil {
		t.Error("expected unknown priority to fail")
	}
	if Priority(42).String() != "priority(42)" {
		t.Errorf("unexpected string for unknown priority: %s", Priority(42))
	}
}

func testLogger() *logger.Logger {
	return logger.NewLogger(slog.LevelDebug, io.Discard)
}
