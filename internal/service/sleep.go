// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/geopicker/internal/logger"
)

const (
	login1Interface   = "org.freedesktop.login1.Manager"
	prepareForSleep   = "PrepareForSleep"
	resumeSignalQueue = 8

	resumeDebounce    = 2 * time.Second
	resumeWakeupDelay = 10 * time.Second
	busRetryDelay     = 5 * time.Second
)

// resumeWatcher calls onResume once the system comes back from suspend.
type resumeWatcher struct {
	logger      *logger.Logger
	onResume    func()
	debounce    time.Duration
	wakeupDelay time.Duration

	mu         sync.Mutex
	lastResume time.Time
}

func newResumeWatcher(log *logger.Logger, onResume func()) *resumeWatcher {
	return &resumeWatcher{
		logger:      log,
		onResume:    onResume,
		debounce:    resumeDebounce,
		wakeupDelay: resumeWakeupDelay,
	}
}

// Watch follows logind's PrepareForSleep signal until ctx is cancelled. A lost bus connection
// is re-established after busRetryDelay.
func (w *resumeWatcher) Watch(ctx context.Context) {
	for {
		conn, signals, err := w.subscribe()
		if err != nil {
			w.logger.Debug("sleep monitoring unavailable", slog.String("member", prepareForSleep),
				logger.Err(err))
		} else {
			w.drain(ctx, signals)
			conn.RemoveSignal(signals)
			if err = conn.Close(); err != nil {
				w.logger.Error("failed to close system bus connection", logger.Err(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(busRetryDelay):
		}
	}
}

func (w *resumeWatcher) subscribe() (*dbus.Conn, chan *dbus.Signal, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, nil, err
	}
	if err = conn.AddMatchSignal(dbus.WithMatchInterface(login1Interface),
		dbus.WithMatchMember(prepareForSleep)); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	signals := make(chan *dbus.Signal, resumeSignalQueue)
	conn.Signal(signals)
	w.logger.Debug("watching for system resume", slog.String("interface", login1Interface))
	return conn, signals, nil
}

func (w *resumeWatcher) drain(ctx context.Context, signals chan *dbus.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sgn, ok := <-signals:
			if !ok {
				return
			}
			w.handle(ctx, sgn)
		}
	}
}

// handle reports whether sgn was accepted as a resume and onResume was called.
func (w *resumeWatcher) handle(ctx context.Context, sgn *dbus.Signal) bool {
	if !isResume(sgn) || !w.claim(time.Now()) {
		return false
	}

	// network interfaces need a moment after wakeup
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.wakeupDelay):
	}

	w.logger.Debug("resumed from sleep, refreshing address")
	w.onResume()
	return true
}

// claim records a resume at now unless one was recorded within the debounce window.
func (w *resumeWatcher) claim(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.lastResume.IsZero() && now.Sub(w.lastResume) < w.debounce {
		return false
	}
	w.lastResume = now
	return true
}

// isResume reports whether sgn is PrepareForSleep(false).
func isResume(sgn *dbus.Signal) bool {
	if sgn == nil || len(sgn.Body) != 1 {
		return false
	}
	sleeping, ok := sgn.Body[0].(bool)
	return ok && !sleeping
}
