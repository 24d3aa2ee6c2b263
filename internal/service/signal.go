// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals refreshes the address on SIGUSR1 and logs the current view state on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.logger.Debug("received SIGUSR1, refreshing address")
				s.refetch()
			case syscall.SIGUSR2:
				s.logState()
			}
		}
	}
}

func (s *Service) logState() {
	snap := s.viewModel.Snapshot()
	address := ""
	if len(snap.Addresses) > 0 {
		address = snap.Addresses[0].FormattedAddress
	}
	loc, _ := snap.Location.Get()
	s.logger.Info("currently resolved address", slog.String("address", address),
		slog.Float64("latitude", loc.Latitude), slog.Float64("longitude", loc.Longitude),
		slog.String("status", snap.Fetch.Status.String()), slog.Int("candidates", len(snap.Addresses)))
}

