// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/location"
)

const (
	DefaultHost = "localhost"
	DefaultPort = "2947"
	name        = "gpsd"

	fallbackAccuracy3DFix = 10
	fallbackAccuracy2DFix = 25
)

// GeolocationGPSDProvider streams position fixes reported by a gpsd daemon.
type GeolocationGPSDProvider struct {
	name    string
	addr    string
	period  time.Duration
	ttl     time.Duration
	watchFn func(ctx context.Context, handle func(*gpsd.TPVReport)) error
}

// NewGeolocationGPSDProvider returns a provider for the gpsd daemon at host:port. Empty values
// select the gpsd defaults.
func NewGeolocationGPSDProvider(host, port string) *GeolocationGPSDProvider {
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = DefaultPort
	}
	provider := &GeolocationGPSDProvider{
		name:   name,
		addr:   net.JoinHostPort(host, port),
		period: time.Second * 30,
		ttl:    time.Minute * 2,
	}
	provider.watchFn = provider.watch
	return provider
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// LookupStream emits a result for every changed fix with at least a 2D position. A lost gpsd
// connection is retried after the provider period.
func (p *GeolocationGPSDProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)

	go func() {
		defer close(out)
		state := geobus.GeolocationState{}

		handle := func(res *geobus.Result) {
			if !state.HasChanged(res.Location) {
				return
			}
			state.Update(res.Location)
			select {
			case <-ctx.Done():
			case out <- *res:
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			_ = p.watchFn(ctx, func(tpv *gpsd.TPVReport) {
				if res, ok := p.createResult(key, tpv); ok {
					handle(&res)
				}
			})

			select {
			case <-ctx.Done():
				return
			case <-time.After(p.period):
			}
		}
	}()

	return out
}

// watch connects to gpsd and feeds TPV reports into handle until the connection ends or
// ctx is done.
func (p *GeolocationGPSDProvider) watch(ctx context.Context, handle func(*gpsd.TPVReport)) error {
	session, err := gpsd.Dial(p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to gpsd at %q: %w", p.addr, err)
	}
	session.AddFilter("TPV", func(r interface{}) {
		if tpv, ok := r.(*gpsd.TPVReport); ok {
			handle(tpv)
		}
	})

	done := session.Watch()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// createResult converts a TPV report into a Result. Reports without a 2D fix or with an
// invalid position are skipped.
func (p *GeolocationGPSDProvider) createResult(key string, tpv *gpsd.TPVReport) (geobus.Result, bool) {
	if tpv == nil || tpv.Mode < gpsd.Mode2D {
		return geobus.Result{}, false
	}
	loc, err := location.New(geobus.Truncate(tpv.Lat, geobus.TruncPrecision),
		geobus.Truncate(tpv.Lon, geobus.TruncPrecision))
	if err != nil {
		return geobus.Result{}, false
	}
	return geobus.Result{
		Key:            key,
		Location:       loc,
		Alt:            tpv.Alt,
		AccuracyMeters: horizontalAccuracy(tpv),
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}, true
}

func horizontalAccuracy(tpv *gpsd.TPVReport) float64 {
	if tpv.Epx > 0 && tpv.Epy > 0 {
		return math.Hypot(tpv.Epx, tpv.Epy)
	}
	if tpv.Mode >= gpsd.Mode3D {
		return fallbackAccuracy3DFix
	}
	return fallbackAccuracy2DFix
}
