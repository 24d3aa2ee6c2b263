// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import "github.com/wneessen/geopicker/internal/location"

// GeolocationState tracks the last known location of a provider and detects positional changes.
type GeolocationState struct {
	last     location.Data
	haveLast bool
}

// HasChanged reports whether loc differs from the last stored location. The empty state
// always reports a change.
func (s *GeolocationState) HasChanged(loc location.Data) bool {
	if !s.haveLast {
		return true
	}
	return s.last != loc
}

// Update stores loc as the last known location.
func (s *GeolocationState) Update(loc location.Data) {
	s.last = loc
	s.haveLast = true
}

// Last returns the last stored location and whether there is one.
func (s *GeolocationState) Last() (location.Data, bool) {
	return s.last, s.haveLast
}
