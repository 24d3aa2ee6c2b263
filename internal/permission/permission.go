// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package permission answers whether the application may access the device location.
package permission

import (
	"context"
	"fmt"
)

// Permission is a location access permission.
type Permission string

const (
	FineLocation   Permission = "ACCESS_FINE_LOCATION"
	CoarseLocation Permission = "ACCESS_COARSE_LOCATION"
)

// Status is the grant state of a permission.
type Status int

const (
	Denied Status = iota
	Granted
)

func (s Status) String() string {
	if s == Granted {
		return "granted"
	}
	return "denied"
}

// Checker reports the grant state of a permission.
type Checker interface {
	Check(ctx context.Context, perm Permission) (Status, error)
}

// Static is a Checker backed by fixed, usually configured, answers.
type Static struct {
	Fine   Status
	Coarse Status
}

// NewStatic returns a Static checker granting everything that is not denied explicitly.
func NewStatic(denyFine, denyCoarse bool) *Static {
	s := &Static{Fine: Granted, Coarse: Granted}
	if denyFine {
		s.Fine = Denied
	}
	if denyCoarse {
		s.Coarse = Denied
	}
	return s
}

func (s *Static) Check(_ context.Context, perm Permission) (Status, error) {
	switch perm {
	case FineLocation:
		return s.Fine, nil
	case CoarseLocation:
		return s.Coarse, nil
	default:
		return Denied, fmt.Errorf("unknown permission %q", perm)
	}
}
