// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geocode

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/uber/h3-go/v4"

	"github.com/wneessen/geopicker/internal/location"
)

// DefaultCellResolution is the H3 resolution used for cache keys. A resolution 9 cell has an
// average edge length of ~200m.
const DefaultCellResolution = 9

type cacheKey struct {
	Provider string
	Cell     h3.Cell
}

type cacheEntry struct {
	Response Response
	Expiry   time.Time
}

// CachedGeocoder caches the responses of another Geocoder per H3 cell.
type CachedGeocoder struct {
	coder      Geocoder
	ttlHit     time.Duration
	ttlMiss    time.Duration
	resolution int

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry
}

func NewCachedGeocoder(coder Geocoder, ttlHit, ttlMiss time.Duration) *CachedGeocoder {
	return NewCachedGeocoderWithResolution(coder, ttlHit, ttlMiss, DefaultCellResolution)
}

func NewCachedGeocoderWithResolution(coder Geocoder, ttlHit, ttlMiss time.Duration, resolution int) *CachedGeocoder {
	return &CachedGeocoder{
		coder:      coder,
		ttlHit:     ttlHit,
		ttlMiss:    ttlMiss,
		resolution: resolution,
		cache:      make(map[cacheKey]cacheEntry),
	}
}

func (c *CachedGeocoder) Name() string {
	return "geocoder cache using " + c.coder.Name()
}

// Reverse returns the cached response for the cell of loc, or asks the wrapped Geocoder.
// Only OK and ZERO_RESULTS responses are cached.
func (c *CachedGeocoder) Reverse(ctx context.Context, loc location.Data) (Response, error) {
	key, err := c.newKey(loc)
	if err != nil {
		return Response{}, err
	}

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.Expiry) {
		resp := entry.Response
		resp.Results = slices.Clone(resp.Results)
		resp.CacheHit = true
		return resp, nil
	}

	resp, err := c.coder.Reverse(ctx, loc)
	if err != nil {
		return resp, err
	}
	if resp.Err() != nil {
		return resp, nil
	}

	ttl := c.ttlHit
	if resp.Status == StatusZeroResults {
		ttl = c.ttlMiss
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()
	c.cache[key] = cacheEntry{
		Response: Response{Results: slices.Clone(resp.Results), Status: resp.Status},
		Expiry:   time.Now().Add(ttl),
	}

	return resp, nil
}

// purgeExpired drops all expired entries. The caller must hold the write lock.
func (c *CachedGeocoder) purgeExpired() {
	now := time.Now()
	for key, entry := range c.cache {
		if now.After(entry.Expiry) {
			delete(c.cache, key)
		}
	}
}

func (c *CachedGeocoder) newKey(loc location.Data) (cacheKey, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(loc.Latitude, loc.Longitude), c.resolution)
	if err != nil {
		return cacheKey{}, fmt.Errorf("failed to convert location to H3 cell at resolution %d: %w",
			c.resolution, err)
	}
	return cacheKey{Provider: c.coder.Name(), Cell: cell}, nil
}
