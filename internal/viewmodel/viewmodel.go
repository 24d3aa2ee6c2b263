// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package viewmodel holds the current location and the addresses resolved for it.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/wneessen/geopicker/internal/geocode"
	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/observable"
	"github.com/wneessen/geopicker/internal/vartype"
)

// ErrGeocoderPanic is reported when the geocoder panics during a fetch.
var ErrGeocoderPanic = errors.New("geocoder panicked")

// FetchStatus is the state of the address lookup.
type FetchStatus int

const (
	Idle FetchStatus = iota
	Loading
	Ready
	Failed
)

func (s FetchStatus) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// FetchState describes the latest address lookup.
type FetchState struct {
	Status   FetchStatus
	Location location.Data
	Err      error
	CacheHit bool
	At       time.Time
}

// Snapshot is a consistent copy of the complete view state.
type Snapshot struct {
	Location  vartype.Variable[location.Data]
	Addresses []geocode.Result
	Fetch     FetchState
}

// ViewModel owns the current location and address list. All methods are safe for
// concurrent use.
type ViewModel struct {
	coder  geocode.Geocoder
	logger *logger.Logger

	location *observable.Value[vartype.Variable[location.Data]]
	address  *observable.Value[[]geocode.Result]
	fetch    *observable.Value[FetchState]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	seq         uint64
	cancelFetch context.CancelFunc
}

// New returns a ViewModel resolving addresses with coder. initial may be unset.
func New(coder geocode.Geocoder, log *logger.Logger, initial vartype.Variable[location.Data]) *ViewModel {
	ctx, cancel := context.WithCancel(context.Background())
	return &ViewModel{
		coder:    coder,
		logger:   log,
		location: observable.New(initial),
		address:  observable.New([]geocode.Result{}),
		fetch:    observable.New(FetchState{Status: Idle}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (vm *ViewModel) Location() observable.ReadOnly[vartype.Variable[location.Data]] {
	return vm.location.ReadOnly()
}

func (vm *ViewModel) Address() observable.ReadOnly[[]geocode.Result] {
	return vm.address.ReadOnly()
}

func (vm *ViewModel) FetchState() observable.ReadOnly[FetchState] {
	return vm.fetch.ReadOnly()
}

// Snapshot returns the current view state.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return Snapshot{
		Location:  vm.location.Get(),
		Addresses: slices.Clone(vm.address.Get()),
		Fetch:     vm.fetch.Get(),
	}
}

// UpdateLocation replaces the current location.
func (vm *ViewModel) UpdateLocation(loc location.Data) error {
	if err := loc.Validate(); err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.location.Set(vartype.NewVariable(loc))
	return nil
}

// FetchAddress resolves the "<lat>,<lng>" string asynchronously. A malformed string fails
// immediately. A new fetch supersedes the one in flight, whose result is discarded. Failures
// of the lookup leave the address list untouched and are published as a Failed fetch state.
func (vm *ViewModel) FetchAddress(latlng string) error {
	loc, err := location.Parse(latlng)
	if err != nil {
		vm.mu.Lock()
		vm.seq++
		if vm.cancelFetch != nil {
			vm.cancelFetch()
		}
		vm.fetch.Set(FetchState{Status: Failed, Err: err, At: time.Now()})
		vm.mu.Unlock()
		return err
	}

	vm.mu.Lock()
	if vm.ctx.Err() != nil {
		vm.mu.Unlock()
		return fmt.Errorf("view model is closed: %w", vm.ctx.Err())
	}
	vm.seq++
	seq := vm.seq
	if vm.cancelFetch != nil {
		vm.cancelFetch()
	}
	ctx, cancel := context.WithCancel(vm.ctx)
	vm.cancelFetch = cancel
	vm.fetch.Set(FetchState{Status: Loading, Location: loc})
	defer vm.mu.Unlock()

	vm.wg.Go(func() {
		defer cancel()
		resp, err := vm.resolve(ctx, loc)

		vm.mu.Lock()
		defer vm.mu.Unlock()
		if seq != vm.seq || vm.ctx.Err() != nil {
			vm.logger.Debug("discarding superseded address lookup", slog.String("location", loc.String()))
			return
		}
		if err != nil {
			vm.logger.Error("address lookup failed", logger.Err(err), slog.String("location", loc.String()))
			vm.fetch.Set(FetchState{Status: Failed, Location: loc, Err: err, At: time.Now()})
			return
		}
		vm.address.Set(slices.Clone(resp.Results))
		vm.fetch.Set(FetchState{Status: Ready, Location: loc, CacheHit: resp.CacheHit, At: time.Now()})
	})
	return nil
}

// resolve performs the lookup. Panics of the geocoder and unusable statuses are returned
// as errors.
func (vm *ViewModel) resolve(ctx context.Context, loc location.Data) (resp geocode.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, err = geocode.Response{}, fmt.Errorf("%w: %v", ErrGeocoderPanic, rec)
		}
	}()

	resp, err = vm.coder.Reverse(ctx, loc)
	if err != nil {
		return resp, fmt.Errorf("failed to resolve address with %s: %w", vm.coder.Name(), err)
	}
	if err = resp.Err(); err != nil {
		return resp, fmt.Errorf("failed to resolve address with %s: %w", vm.coder.Name(), err)
	}
	if resp.Results == nil {
		resp.Results = []geocode.Result{}
	}
	return resp, nil
}

// Wait blocks until all fetches in flight have finished.
func (vm *ViewModel) Wait() {
	vm.wg.Wait()
}

// Close cancels the fetches in flight and waits for them to finish. No fetch can be
// started afterwards.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.cancel()
	vm.mu.Unlock()
	vm.wg.Wait()
}
