// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	geoClueService  = "org.freedesktop.GeoClue2"
	geoClueManager  = "/org/freedesktop/GeoClue2/Manager"
	geoClueProperty = "org.freedesktop.GeoClue2.Manager.AvailableAccuracyLevel"
)

// GeoClue accuracy levels as exposed by the GeoClue2 manager.
const (
	AccuracyNone         uint32 = 0
	AccuracyCountry      uint32 = 1
	AccuracyCity         uint32 = 4
	AccuracyNeighborhood uint32 = 5
	AccuracyStreet       uint32 = 6
	AccuracyExact        uint32 = 8
)

// GeoClue is a Checker that derives the permissions from the accuracy level GeoClue makes
// available to applications. Fine location requires the exact level, coarse location at
// least the city level.
type GeoClue struct {
	levelFn func(ctx context.Context) (uint32, error)
}

// NewGeoClue returns a GeoClue checker that queries the system bus.
func NewGeoClue() *GeoClue {
	return &GeoClue{levelFn: availableAccuracyLevel}
}

func (g *GeoClue) Check(ctx context.Context, perm Permission) (Status, error) {
	var required uint32
	switch perm {
	case FineLocation:
		required = AccuracyExact
	case CoarseLocation:
		required = AccuracyCity
	default:
		return Denied, fmt.Errorf("unknown permission %q", perm)
	}

	level, err := g.levelFn(ctx)
	if err != nil {
		return Denied, fmt.Errorf("failed to query GeoClue accuracy level: %w", err)
	}
	if level >= required {
		return Granted, nil
	}
	return Denied, nil
}

func availableAccuracyLevel(ctx context.Context) (level uint32, err error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close system bus: %w", closeErr))
		}
	}()

	variant, err := conn.Object(geoClueService, geoClueManager).GetProperty(geoClueProperty)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", geoClueProperty, err)
	}
	if err = variant.Store(&level); err != nil {
		return 0, fmt.Errorf("unexpected %s value %s: %w", geoClueProperty, variant, err)
	}
	return level, nil
}
