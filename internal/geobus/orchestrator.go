// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import (
	"context"
	"fmt"
	"sync"

	"github.com/wneessen/geopicker/internal/logger"
)

// Orchestrator coordinates the tracking and publication of geolocation results from multiple
// providers through a GeoBus.
type Orchestrator struct {
	Bus       *GeoBus
	Providers []Provider
}

// Track initiates concurrent geolocation tracking for a given key across multiple providers in
// the Orchestrator. It blocks until ctx is done.
func (o *Orchestrator) Track(ctx context.Context, key string) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Go(func() {
			o.trackProvider(ctx, p, key)
		})
	}
	<-ctx.Done()
	wg.Wait()
}

// trackProvider continuously tracks a Provider for geolocation data, publishing results to
// the GeoBus and implementing backoff.
func (o *Orchestrator) trackProvider(ctx context.Context, p Provider, key string) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lookupChan, err := o.safeLookup(ctx, p, key)
		if err != nil && o.Bus.logger != nil {
			o.Bus.logger.Error("geolocation provider failed", logger.Err(err), "provider", p.Name())
		}
		if lookupChan != nil {
		stream:
			for {
				select {
				case <-ctx.Done():
					return
				case r, ok := <-lookupChan:
					if !ok {
						break stream
					}
					o.Bus.Publish(r)
					backoff = initialBackoff
				}
			}
		}

		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

// safeLookup invokes LookupStream on a Provider and recovers from panics.
func (o *Orchestrator) safeLookup(ctx context.Context, provider Provider, key string) (ch <-chan Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ch, err = nil, fmt.Errorf("provider %s panicked: %v", provider.Name(), rec)
		}
	}()
	return provider.LookupStream(ctx, key), nil
}
