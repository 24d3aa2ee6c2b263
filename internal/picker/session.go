// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package picker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vorlif/spreak"

	"github.com/wneessen/geopicker/internal/location"
)

// ErrAborted is returned by Session.Run when the input ends or the user quits without confirming.
var ErrAborted = errors.New("picker aborted")

const promptText = "> "

// Session is a line-oriented picker screen. Each input line is one of:
//
//	tap <lat>,<lng>   move the marker
//	<lat>,<lng>       same as tap
//	show              print camera and marker
//	reset             move the marker back to the initial location
//	set | confirm     confirm the marker position
//	quit | exit       leave without confirming
type Session struct {
	picker    *Picker
	in        io.Reader
	out       io.Writer
	localizer *spreak.Localizer
	prompt    bool
}

// NewSession returns a session reading commands from in and writing to out. With prompt set, a
// prompt is printed before every line is read.
func NewSession(picker *Picker, in io.Reader, out io.Writer, loc *spreak.Localizer, prompt bool) *Session {
	return &Session{picker: picker, in: in, out: out, localizer: loc, prompt: prompt}
}

// Run processes input lines until the marker is confirmed, the input ends or ctx is cancelled.
func (s *Session) Run(ctx context.Context) (location.Data, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.printView()
	for {
		s.printPrompt()
		select {
		case <-ctx.Done():
			return location.Data{}, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return location.Data{}, fmt.Errorf("failed to read picker input: %w", err)
				}
				return location.Data{}, ErrAborted
			}
			loc, done, err := s.handle(line)
			if err != nil {
				return location.Data{}, err
			}
			if done {
				return loc, nil
			}
		}
	}
}

func (s *Session) handle(line string) (location.Data, bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch strings.ToLower(cmd) {
	case "":
		return location.Data{}, false, nil
	case "tap":
		s.tap(arg)
	case "show":
		s.printView()
	case "reset":
		s.picker.Reset()
		s.printView()
	case "set", "confirm":
		loc, err := s.picker.Confirm()
		if err != nil {
			return location.Data{}, false, err
		}
		s.printf("%s: %s\n", s.localizer.Get("Location confirmed"), loc)
		return loc, true, nil
	case "quit", "exit":
		return location.Data{}, false, ErrAborted
	case "help":
		s.printf("%s: tap <lat>,<lng>, show, reset, set, quit\n", s.localizer.Get("Commands"))
	default:
		if _, err := location.Parse(line); err == nil {
			s.tap(line)
			return location.Data{}, false, nil
		}
		s.printf("%s: %s\n", s.localizer.Get("Unknown command"), cmd)
	}
	return location.Data{}, false, nil
}

func (s *Session) tap(latlng string) {
	loc, err := location.Parse(latlng)
	if err == nil {
		err = s.picker.Tap(loc)
	}
	if err != nil {
		s.printf("%s\n", err)
		return
	}
	s.printf("%s: %s\n", s.localizer.Get("Marker"), s.picker.Marker())
}

func (s *Session) printView() {
	view := s.picker.View()
	s.printf("%s: %s (%s %g)\n", s.localizer.Get("Camera"), view.Camera.Center, s.localizer.Get("Zoom"),
		view.Camera.Zoom)
	s.printf("%s: %s [%s]\n", s.localizer.Get("Marker"), view.Marker, s.localizer.Get(view.Label))
}

func (s *Session) printPrompt() {
	if s.prompt {
		s.printf("%s", promptText)
	}
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
