// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package picker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wneessen/geopicker/internal/location"
)

const (
	DefaultZoom  = 10
	ConfirmLabel = "Set Location"
)

// ErrConfirmed is returned when the picker is used after the location has been confirmed.
var ErrConfirmed = errors.New("location already confirmed")

type State int

const (
	Viewing State = iota
	Confirmed
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Camera is the map viewport. It stays centred on the initial location unless the picker is
// recentred.
type Camera struct {
	Center location.Data `json:"center"`
	Zoom   float64       `json:"zoom"`
}

// View is a point-in-time rendering of the picker.
type View struct {
	Camera Camera        `json:"camera"`
	Marker location.Data `json:"marker"`
	State  string        `json:"state"`
	Label  string        `json:"label"`
}

// Picker holds the state of a single map picker screen. It is safe for concurrent use.
type Picker struct {
	mu        sync.Mutex
	camera    Camera
	marker    location.Data
	state     State
	onConfirm func(location.Data)
}

// New returns a picker with the camera and marker placed at initial. A zoom <= 0 selects
// DefaultZoom. onConfirm may be nil.
func New(initial location.Data, zoom float64, onConfirm func(location.Data)) (*Picker, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("invalid initial location: %w", err)
	}
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return &Picker{
		camera:    Camera{Center: initial, Zoom: zoom},
		marker:    initial,
		onConfirm: onConfirm,
	}, nil
}

// Tap moves the marker to loc. The camera is not moved.
func (p *Picker) Tap(loc location.Data) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Confirmed {
		return ErrConfirmed
	}
	p.marker = loc
	return nil
}

// Confirm finishes the picker and reports the marker position to the confirm callback.
func (p *Picker) Confirm() (location.Data, error) {
	p.mu.Lock()
	if p.state == Confirmed {
		p.mu.Unlock()
		return location.Data{}, ErrConfirmed
	}
	p.state = Confirmed
	loc := p.marker
	onConfirm := p.onConfirm
	p.mu.Unlock()

	if onConfirm != nil {
		onConfirm(loc)
	}
	return loc, nil
}

// Recenter moves the camera to loc. A marker that was not moved away from the old centre
// follows the camera.
func (p *Picker) Recenter(loc location.Data) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Confirmed {
		return ErrConfirmed
	}
	if p.marker == p.camera.Center {
		p.marker = loc
	}
	p.camera.Center = loc
	return nil
}

// Reset moves the marker back to the camera centre and re-opens a confirmed picker.
func (p *Picker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marker = p.camera.Center
	p.state = Viewing
}

func (p *Picker) Marker() location.Data {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marker
}

func (p *Picker) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Picker) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return View{
		Camera: p.camera,
		Marker: p.marker,
		State:  p.state.String(),
		Label:  ConfirmLabel,
	}
}
