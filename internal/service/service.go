// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vorlif/spreak"
	"golang.org/x/sync/errgroup"

	"github.com/wneessen/geopicker/internal/config"
	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/geocode"
	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/locator"
	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/permission"
	"github.com/wneessen/geopicker/internal/picker"
	"github.com/wneessen/geopicker/internal/presenter"
	"github.com/wneessen/geopicker/internal/vartype"
	"github.com/wneessen/geopicker/internal/viewmodel"
)

const (
	outputJobName = "output_job"
	stateBuffer   = 1
)

type Service struct {
	SignalSrc signalSource

	config    *config.Config
	logger    *logger.Logger
	t         *spreak.Localizer
	bus       *geobus.GeoBus
	geocoder  geocode.Geocoder
	checker   permission.Checker
	presenter *presenter.Presenter
	scheduler gocron.Scheduler
	viewModel *viewmodel.ViewModel

	// nil selects the providers from the configuration
	providers     []geobus.Provider
	resumeMonitor func(context.Context)

	outputLock sync.Mutex
	output     io.Writer

	fetchLock   sync.Mutex
	lastFetched vartype.Variable[location.Data]
	geostate    *geobus.GeolocationState
}

func New(conf *config.Config, log *logger.Logger, lang *spreak.Localizer) (*Service, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pres, err := presenter.New(conf, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	coder, err := selectGeocodeProvider(conf, log, lang.Language())
	if err != nil {
		return nil, fmt.Errorf("failed to create geocode provider: %w", err)
	}

	checker, err := selectPermissionChecker(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission checker: %w", err)
	}

	var initial vartype.Variable[location.Data]
	if conf.Picker.Initial != "" {
		loc, err := location.Parse(conf.Picker.Initial)
		if err != nil {
			return nil, fmt.Errorf("invalid initial location: %w", err)
		}
		initial.Set(loc)
	}

	service := &Service{
		SignalSrc: stdLibSignalSource{},
		config:    conf,
		logger:    log,
		t:         lang,
		bus:       geobus.New(log),
		geocoder:  coder,
		checker:   checker,
		presenter: pres,
		scheduler: scheduler,
		viewModel: viewmodel.New(coder, log, initial),
		output:    os.Stdout,
		geostate:  &geobus.GeolocationState{},
	}
	service.resumeMonitor = newResumeWatcher(log, service.refetch).Watch
	return service, nil
}

// ViewModel returns the view model the service feeds.
func (s *Service) ViewModel() *viewmodel.ViewModel {
	return s.viewModel
}

// Run starts the location pipeline and the periodic output and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	priority, orchestrator, err := s.newOrchestrator()
	if err != nil {
		return err
	}

	if err = s.createScheduledJob(ctx, s.config.Intervals.Output, s.printOutput, outputJobName); err != nil {
		return err
	}
	s.scheduler.Start()

	loc := locator.New(s.checker, s.bus, s.logger)
	sub, err := loc.RequestUpdates(ctx, locator.Request{
		Key:      s.config.Location.Key,
		Interval: s.config.Location.Interval,
		Priority: priority,
	})
	switch {
	case errors.Is(err, locator.ErrPermissionDenied):
		s.logger.Warn("location permission not granted, location updates are disabled")
	case err != nil:
		return errors.Join(fmt.Errorf("failed to request location updates: %w", err), s.scheduler.Shutdown())
	}

	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	defer s.SignalSrc.Stop(sigChan)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.HandleSignals(gctx, sigChan)
		return nil
	})
	group.Go(func() error {
		s.processStateChanges(gctx)
		return nil
	})
	group.Go(func() error {
		s.resumeMonitor(gctx)
		return nil
	})
	if sub != nil {
		group.Go(func() error {
			orchestrator.Track(gctx, s.config.Location.Key)
			return nil
		})
		group.Go(func() error {
			s.processLocationUpdates(gctx, sub.Updates())
			return nil
		})
	}
	s.printOutput(ctx)

	<-ctx.Done()
	if sub != nil {
		sub.Close()
	}
	err = group.Wait()
	s.viewModel.Close()
	return errors.Join(err, s.scheduler.Shutdown())
}

// Resolve looks up the addresses for latlng and returns the rendered output line.
func (s *Service) Resolve(latlng string) ([]byte, error) {
	if err := s.ApplyLocation(latlng); err != nil {
		return nil, err
	}
	return s.Await()
}

// Await waits for the address lookups in flight and returns the rendered output line. A
// failed lookup is returned as error.
func (s *Service) Await() ([]byte, error) {
	s.viewModel.Wait()
	snap := s.viewModel.Snapshot()
	if snap.Fetch.Err != nil {
		return nil, snap.Fetch.Err
	}
	return s.presenter.JSON(snap)
}

// ApplyLocation sets latlng as the current location and fetches its addresses.
func (s *Service) ApplyLocation(latlng string) error {
	loc, err := location.Parse(latlng)
	if err != nil {
		return err
	}
	if err = s.viewModel.UpdateLocation(loc); err != nil {
		return err
	}
	return s.fetchAddress(loc)
}

// Locate waits up to the configured locate timeout for the first location fix and applies it
// to the view model. It runs the location providers only while waiting and is meant for
// one-shot commands that do not call Run. A configured or already known location is returned
// right away. ok is false if no location could be determined.
func (s *Service) Locate(ctx context.Context) (loc location.Data, ok bool, err error) {
	if loc, ok = s.viewModel.Location().Get().Get(); ok {
		return loc, true, nil
	}
	priority, orchestrator, err := s.newOrchestrator()
	if err != nil {
		return loc, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Picker.LocateTimeout)
	defer cancel()
	sub, err := locator.New(s.checker, s.bus, s.logger).RequestUpdates(ctx, locator.Request{
		Key:      s.config.Location.Key,
		Interval: s.config.Location.Interval,
		Priority: priority,
	})
	switch {
	case errors.Is(err, locator.ErrPermissionDenied):
		s.logger.Warn("location permission not granted, cannot determine the current location")
		return loc, false, nil
	case err != nil:
		return loc, false, fmt.Errorf("failed to request location updates: %w", err)
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		orchestrator.Track(ctx, s.config.Location.Key)
	})
	defer func() {
		sub.Close()
		cancel()
		wg.Wait()
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("no location fix received", slog.Duration("timeout", s.config.Picker.LocateTimeout))
		return loc, false, nil
	case loc, ok = <-sub.Updates():
		if !ok {
			return loc, false, nil
		}
	}
	if err = s.viewModel.UpdateLocation(loc); err != nil {
		return loc, false, err
	}
	return loc, true, nil
}

// NewPicker returns a picker starting at the current location, which is the configured initial
// location if one is set. Without a known location the picker starts at 0,0 and is recentred
// on the first location that arrives before ctx is cancelled. Confirming the picker applies
// the marker location.
func (s *Service) NewPicker(ctx context.Context) (*picker.Picker, error) {
	initial, ok := s.viewModel.Location().Get().Get()
	if best, found := s.bus.Best(s.config.Location.Key); !ok && found {
		initial, ok = best.Location, true
	}
	p, err := picker.New(initial, s.config.Picker.Zoom, func(loc location.Data) {
		if err := s.ApplyLocation(loc.String()); err != nil {
			s.logger.Error("failed to apply picked location", logger.Err(err))
		}
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("no location available yet, the picker starts at 0,0")
		go s.recenterOnFirstLocation(ctx, p)
	}
	return p, nil
}

func (s *Service) recenterOnFirstLocation(ctx context.Context, p *picker.Picker) {
	locations, unsubscribe := s.viewModel.Location().Subscribe(stateBuffer)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case current, open := <-locations:
			if !open {
				return
			}
			loc, ok := current.Get()
			if !ok {
				continue
			}
			if err := p.Recenter(loc); err != nil {
				s.logger.Debug("picker not recentred", logger.Err(err))
				return
			}
			s.logger.Debug("picker recentred on current location", slog.String("location", loc.String()))
			return
		}
	}
}

// newOrchestrator returns the configured priority and an orchestrator over the providers it
// selects.
func (s *Service) newOrchestrator() (locator.Priority, *geobus.Orchestrator, error) {
	priority, err := locator.ParsePriority(s.config.Location.Priority)
	if err != nil {
		return priority, nil, err
	}
	providers := s.providers
	if providers == nil {
		if providers, err = s.selectGeobusProviders(priority); err != nil {
			return priority, nil, fmt.Errorf("failed to create geobus orchestrator: %w", err)
		}
	}
	return priority, s.bus.NewOrchestrator(providers), nil
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// printOutput renders the current view state and writes it as a single JSON line.
func (s *Service) printOutput(context.Context) {
	data, err := s.presenter.JSON(s.viewModel.Snapshot())
	if err != nil {
		s.logger.Error("failed to render output", logger.Err(err))
		return
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if _, err = s.output.Write(data); err != nil {
		s.logger.Error("failed to write output", logger.Err(err))
	}
}

// processLocationUpdates applies the location updates to the view model and fetches the
// address once the location moved farther than the refetch distance.
func (s *Service) processLocationUpdates(ctx context.Context, updates <-chan location.Data) {
	for {
		select {
		case <-ctx.Done():
			return
		case loc, ok := <-updates:
			if !ok {
				return
			}
			if !s.geostate.HasChanged(loc) {
				continue
			}
			s.geostate.Update(loc)
			s.logger.Debug("received location update", slog.String("location", loc.String()))

			if err := s.viewModel.UpdateLocation(loc); err != nil {
				s.logger.Error("failed to update location", logger.Err(err))
				continue
			}
			if !s.shouldRefetch(loc) {
				continue
			}
			if err := s.fetchAddress(loc); err != nil {
				s.logger.Error("failed to fetch address", logger.Err(err))
			}
		}
	}
}

// processStateChanges prints the output whenever the location or the fetch state changes.
func (s *Service) processStateChanges(ctx context.Context) {
	locations, unsubLocation := s.viewModel.Location().Subscribe(stateBuffer)
	defer unsubLocation()
	fetches, unsubFetch := s.viewModel.FetchState().Subscribe(stateBuffer)
	defer unsubFetch()

	// both subscriptions start with the current value
	<-locations
	<-fetches

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-locations:
			if !ok {
				return
			}
		case _, ok := <-fetches:
			if !ok {
				return
			}
		}
		s.printOutput(ctx)
	}
}

func (s *Service) shouldRefetch(loc location.Data) bool {
	s.fetchLock.Lock()
	defer s.fetchLock.Unlock()
	last, ok := s.lastFetched.Get()
	return !ok || last.DistanceTo(loc) > s.config.Location.RefetchDistance
}

func (s *Service) fetchAddress(loc location.Data) error {
	s.fetchLock.Lock()
	s.lastFetched.Set(loc)
	s.fetchLock.Unlock()
	return s.viewModel.FetchAddress(loc.String())
}

// refetch fetches the address of the current location again.
func (s *Service) refetch() {
	loc, ok := s.viewModel.Location().Get().Get()
	if !ok {
		s.logger.Debug("no location available yet, skipping address refresh")
		return
	}
	if err := s.fetchAddress(loc); err != nil {
		s.logger.Error("failed to refresh address", logger.Err(err))
	}
}
