// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package locator delivers periodic location updates from the fused location provider, once
// the location permissions are granted.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/geopicker/internal/geobus"
	"github.com/wneessen/geopicker/internal/job"
	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/logger"
	"github.com/wneessen/geopicker/internal/permission"
)

const DefaultInterval = time.Millisecond * 1000

var ErrPermissionDenied = errors.New("location permission denied")

// Priority is the requested trade-off between accuracy and power usage.
type Priority int

const (
	HighAccuracy Priority = iota
	Balanced
	LowPower
	Passive
)

var priorityNames = map[Priority]string{
	HighAccuracy: "high-accuracy",
	Balanced:     "balanced",
	LowPower:     "low-power",
	Passive:      "passive",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority parses the names returned by Priority.String. An empty string is HighAccuracy.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return HighAccuracy, nil
	}
	for p, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return HighAccuracy, fmt.Errorf("unknown location priority %q", s)
}

// Source returns the last known location for a key.
type Source interface {
	Best(key string) (geobus.Result, bool)
}

// Request describes a location update subscription.
type Request struct {
	Key      string
	Interval time.Duration
	Priority Priority
}

// Locator checks the location permissions and hands out update subscriptions.
type Locator struct {
	checker permission.Checker
	source  Source
	logger  *logger.Logger
}

// Subscription is a running location update subscription.
type Subscription struct {
	updates chan location.Data
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(checker permission.Checker, source Source, log *logger.Logger) *Locator {
	return &Locator{
		checker: checker,
		source:  source,
		logger:  log,
	}
}

// HasPermission reports whether both the fine and the coarse location permission are granted.
// A failing check counts as denied.
func (l *Locator) HasPermission(ctx context.Context) bool {
	for _, perm := range []permission.Permission{permission.FineLocation, permission.CoarseLocation} {
		status, err := l.checker.Check(ctx, perm)
		if err != nil {
			l.logger.Error("failed to check location permission", logger.Err(err),
				slog.String("permission", string(perm)))
			return false
		}
		if status != permission.Granted {
			return false
		}
	}
	return true
}

// RequestUpdates starts delivering the last known location every req.Interval. It returns
// ErrPermissionDenied if the permissions are not granted. The subscription ends when Close is
// called or ctx is cancelled.
func (l *Locator) RequestUpdates(ctx context.Context, req Request) (*Subscription, error) {
	if !l.HasPermission(ctx) {
		return nil, ErrPermissionDenied
	}
	if req.Interval <= 0 {
		req.Interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		updates: make(chan location.Data, 1),
		cancel:  cancel,
	}
	l.logger.Debug("location updates requested", slog.String("key", req.Key),
		slog.String("priority", req.Priority.String()), slog.Duration("interval", req.Interval))

	tick := func(context.Context) {
		result, ok := l.source.Best(req.Key)
		if !ok {
			return
		}
		if err := result.Location.Validate(); err != nil {
			l.logger.Warn("dropping invalid location update", logger.Err(err),
				slog.String("source", result.Source))
			return
		}
		sub.offer(result.Location)
	}

	sub.wg.Go(func() {
		job.New(req.Interval, tick, job.WithImmediateRun()).Start(ctx)
		close(sub.updates)
	})
	return sub, nil
}

// RequestUpdatesFunc is the callback form of RequestUpdates. onUpdate is called from a
// single goroutine. Close may be called from within onUpdate; it stops the delivery but does
// not wait for a running callback to return.
func (l *Locator) RequestUpdatesFunc(ctx context.Context, req Request, onUpdate func(location.Data)) (*Subscription, error) {
	sub, err := l.RequestUpdates(ctx, req)
	if err != nil {
		return nil, err
	}

	stopped := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() { close(stopped) })
		sub.Close()
	}
	go func() {
		for loc := range sub.updates {
			select {
			case <-stopped:
				continue
			default:
			}
			onUpdate(loc)
		}
	}()
	return &Subscription{updates: nil, cancel: stop}, nil
}

// Updates returns the channel the locations are delivered on. It is closed when the
// subscription ends. It is nil for callback subscriptions.
func (s *Subscription) Updates() <-chan location.Data {
	return s.updates
}

// Close ends the subscription and waits for the delivery to stop. It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.cancel()
	s.wg.Wait()
}

// offer delivers loc, replacing an update the consumer has not picked up yet.
func (s *Subscription) offer(loc location.Data) {
	for {
		select {
		case s.updates <- loc:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
