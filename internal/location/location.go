// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package location holds the immutable coordinate value that flows from the location
// sources and the picker into the geocoder.
package location

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadius is the mean earth radius in meters
const EarthRadius = 6371000.0

var (
	ErrInvalidLatitude  = errors.New("latitude must be within [-90, 90]")
	ErrInvalidLongitude = errors.New("longitude must be within [-180, 180]")
	ErrInvalidLatLng    = errors.New("invalid latlng string")
)

// Data is a single WGS84 coordinate pair. Values are never mutated, a new reading
// always produces a new Data.
type Data struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// New returns a validated Data for the given latitude and longitude.
func New(lat, lon float64) (Data, error) {
	d := Data{Latitude: lat, Longitude: lon}
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

// Parse parses the "<lat>,<lng>" form used by the geocoding APIs.
func Parse(latlng string) (Data, error) {
	parts := strings.Split(latlng, ",")
	if len(parts) != 2 {
		return Data{}, fmt.Errorf("%w: %q: expected exactly two comma separated values", ErrInvalidLatLng,
			latlng)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Data{}, fmt.Errorf("%w: failed to parse latitude: %w", ErrInvalidLatLng, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Data{}, fmt.Errorf("%w: failed to parse longitude: %w", ErrInvalidLatLng, err)
	}
	d, err := New(lat, lon)
	if err != nil {
		return Data{}, fmt.Errorf("%w: %w", ErrInvalidLatLng, err)
	}
	return d, nil
}

// Validate checks that the coordinate is within the EPSG:4326 bounds.
func (d Data) Validate() error {
	if math.IsNaN(d.Latitude) || d.Latitude < -90 || d.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(d.Longitude) || d.Longitude < -180 || d.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// Valid reports whether Validate succeeds.
func (d Data) Valid() bool {
	return d.Validate() == nil
}

// String returns the "<lat>,<lng>" form. The shortest exact representation is used, so
// that Parse(d.String()) yields d again.
func (d Data) String() string {
	return strconv.FormatFloat(d.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(d.Longitude, 'f', -1, 64)
}

// DistanceTo returns the great-circle distance in meters between d and other, using the
// Haversine formula.
func (d Data) DistanceTo(other Data) float64 {
	dLat := (other.Latitude - d.Latitude) * math.Pi / 180
	dLon := (other.Longitude - d.Longitude) * math.Pi / 180
	lat1 := d.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}
