// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/logger"
)

const (
	accuracyEpsilon = 1e-6
	initialBackoff  = time.Second
	maxBackoff      = 30 * time.Second
)

const (
	AccuracyExact   = 10
	AccuracyStreet  = 100
	AccuracyZip     = 3000
	AccuracyCity    = 15000
	AccuracyRegion  = 100000
	AccuracyCountry = 300000
	AccuracyUnknown = 1000000
	TruncPrecision  = 4

	// DistanceThreshold is the distance in meters a position has to move before it replaces
	// an equally accurate one.
	DistanceThreshold = 2500.0
	// AccuracyThreshold is the accuracy gain in meters that always replaces a position.
	AccuracyThreshold = 50.0
)

// Provider defines an interface for geolocation service providers.
// It supports retrieving streamed results for a given key.
type Provider interface {
	Name() string
	LookupStream(ctx context.Context, key string) <-chan Result
}

// GeoBus coordinates the publishing and subscribing of geolocation results between providers and consumers.
type GeoBus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	best        map[string]Result
	subscribers map[string]map[chan Result]struct{}
	globalSubs  map[chan Result]struct{}
}

// Result represents a geolocation result with associated metadata.
type Result struct {
	Key            string
	Location       location.Data
	Alt            float64
	AccuracyMeters float64
	Source         string
	At             time.Time
	TTL            time.Duration
}

// BetterThan reports whether r should replace prev. A result never replaces a newer one and
// otherwise wins if it is noticeably more accurate.
func (r Result) BetterThan(prev Result) bool {
	if prev.Key == "" {
		return true
	}
	if r.At.Before(prev.At) {
		return false
	}
	return r.AccuracyMeters < prev.AccuracyMeters-accuracyEpsilon
}

// SignificantChange reports whether r differs from prev enough to be worth broadcasting.
// A large accuracy gain always counts, otherwise the great-circle distance has to exceed
// DistanceThreshold.
func (r Result) SignificantChange(prev Result) bool {
	if r.AccuracyMeters < prev.AccuracyMeters && prev.AccuracyMeters-r.AccuracyMeters > AccuracyThreshold {
		return true
	}
	return r.Location.DistanceTo(prev.Location) > DistanceThreshold
}

// IsExpired checks if the Result has exceeded its time-to-live (TTL) based on the current time and the timestamp.
func (r Result) IsExpired() bool {
	return r.TTL > 0 && time.Since(r.At) > r.TTL
}

// New initializes and returns a new instance of GeoBus to handle geolocation result coordination.
func New(logger *logger.Logger) *GeoBus {
	return &GeoBus{
		logger:      logger,
		best:        make(map[string]Result),
		subscribers: make(map[string]map[chan Result]struct{}),
		globalSubs:  make(map[chan Result]struct{}),
	}
}

func (b *GeoBus) NewOrchestrator(provider []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: provider,
	}
}

// Subscribe adds a subscriber for updates associated with the given key and buffer size, returning a result
// channel and an unsubscribe function. The unsubscribe function may be called more than once.
func (b *GeoBus) Subscribe(key string, size int) (<-chan Result, func()) {
	resultChan := make(chan Result, max(size, 1))
	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[chan Result]struct{})
	}

	b.subscribers[key][resultChan] = struct{}{}
	if best, ok := b.best[key]; ok && !best.IsExpired() {
		resultChan <- best
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subscribers[key]; ok {
				delete(subs, resultChan)
				if len(subs) == 0 {
					delete(b.subscribers, key)
				}
			}
			b.mu.Unlock()
			close(resultChan)
		})
	}

	return resultChan, unsub
}

// SubscribeAll subscribes to results of every key.
func (b *GeoBus) SubscribeAll(buffer int) (<-chan Result, func()) {
	b.mu.Lock()
	ch := make(chan Result, max(buffer, len(b.best), 1))
	b.globalSubs[ch] = struct{}{}
	for _, v := range b.best {
		if !v.IsExpired() {
			select {
			case ch <- v:
			default:
			}
		}
	}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.globalSubs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish offers a result to the bus. Results without accuracy or with an invalid location
// are dropped.
func (b *GeoBus) Publish(r Result) {
	if r.AccuracyMeters <= 0 {
		return
	}
	if err := r.Location.Validate(); err != nil {
		if b.logger != nil {
			b.logger.Debug("dropping invalid geolocation result", logger.Err(err),
				"source", r.Source)
		}
		return
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev, have := b.best[r.Key]

	if !have || prev.IsExpired() || r.BetterThan(prev) && r.SignificantChange(prev) {
		b.best[r.Key] = r
		b.broadcastResult(r)
		return
	}

	// Refresh the TTL if the same source confirms its position
	if prev.Source == r.Source {
		prev.At = r.At
		b.best[r.Key] = prev
	}
}

func (b *GeoBus) broadcastResult(r Result) {
	if subs, ok := b.subscribers[r.Key]; ok {
		for ch := range subs {
			select {
			case ch <- r:
			default:
			}
		}
	}
	for ch := range b.globalSubs {
		select {
		case ch <- r:
		default:
		}
	}
}

// Best returns the current best, non-expired result for the given key.
func (b *GeoBus) Best(key string) (Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.best[key]
	return r, ok && !r.IsExpired()
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
