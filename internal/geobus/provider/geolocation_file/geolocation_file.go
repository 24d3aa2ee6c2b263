// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geolocation_file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/location"
)

const (
	name = "geolocation_file"
)

var ErrNoCoordinates = errors.New("no valid coordinates found in geolocation file")

// GeolocationFileProvider reads a fixed position from a file and emits it via a stream.
// The file is re-read periodically and a result is emitted whenever the position changes.
// Lines starting with "#" are ignored, the first valid "<lat>,<lng>" line wins.
type GeolocationFileProvider struct {
	name     string
	path     string
	period   time.Duration
	ttl      time.Duration
	locateFn func() (location.Data, error)
}

// NewGeolocationFileProvider initializes a GeolocationFileProvider with a file path and default update
// interval and TTL settings.
func NewGeolocationFileProvider(path string) *GeolocationFileProvider {
	provider := &GeolocationFileProvider{
		name:   name,
		path:   path,
		period: time.Minute * 2,
		ttl:    time.Hour * 1,
	}
	provider.locateFn = provider.readFile
	return provider
}

// Name returns the name of the GeolocationFileProvider instance.
func (p *GeolocationFileProvider) Name() string {
	return p.name
}

// LookupStream continuously streams geolocation results from a file, emitting updates when data changes
// or context ends.
func (p *GeolocationFileProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
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

			loc, err := p.locateFn()
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
			case out <- p.createResult(key, loc):
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationFileProvider) createResult(key string, loc location.Data) geobus.Result {
	return geobus.Result{
		Key:            key,
		Location:       loc,
		AccuracyMeters: geobus.AccuracyZip,
		Source:         p.name,
		At:             time.Now(),
		TTL:            p.ttl,
	}
}

// readFile returns the first valid location in the file at the configured path.
func (p *GeolocationFileProvider) readFile() (location.Data, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return location.Data{}, fmt.Errorf("failed to read geolocation file %q: %w", p.path, err)
	}
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		loc, err := location.Parse(line)
		if err != nil {
			continue
		}
		return loc, nil
	}
	return location.Data{}, ErrNoCoordinates
}
