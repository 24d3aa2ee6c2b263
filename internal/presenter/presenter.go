// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/humanize/locale/fr"
	"github.com/vorlif/spreak"

	"github.com/wneessen/geopicker/internal/config"
	"github.com/wneessen/geopicker/internal/location"
	"github.com/wneessen/geopicker/internal/template"
	"github.com/wneessen/geopicker/internal/viewmodel"
)

const (
	ClassReady   = "ready"
	ClassLoading = "loading"
	ClassFailed  = "failed"
	ClassNoFix   = "nofix"
)

// TemplateContext is the data the output templates are rendered with.
type TemplateContext struct {
	HasLocation bool
	Latitude    float64
	Longitude   float64
	LatLng      string

	Address   string
	Addresses []string
	Status    string
	Error     string
	CacheHit  bool

	UpdateTime time.Time
}

// Output is a single line of module output.
type Output struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
}

type Presenter struct {
	templates *template.Templates
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
}

var humanizers = humanize.MustNew(humanize.WithLocale(de.New(), fr.New()))

// New parses the configured templates and verifies that they render with an empty context.
func New(conf *config.Config, loc *spreak.Localizer) (*Presenter, error) {
	p := &Presenter{
		localizer: loc,
		humanizer: humanizers.CreateHumanizer(loc.Language()),
	}
	tpls, err := template.New(conf, loc, p.templateFuncMap())
	if err != nil {
		return nil, err
	}
	p.templates = tpls

	if _, err = p.Render(TemplateContext{}); err != nil {
		return nil, err
	}
	return p, nil
}

// BuildContext converts a view state snapshot into a TemplateContext.
func (p *Presenter) BuildContext(snap viewmodel.Snapshot) TemplateContext {
	ctx := TemplateContext{
		Status:     snap.Fetch.Status.String(),
		CacheHit:   snap.Fetch.CacheHit,
		UpdateTime: snap.Fetch.At,
		Addresses:  make([]string, 0, len(snap.Addresses)),
	}
	if loc, ok := snap.Location.Get(); ok {
		ctx.setLocation(loc)
	}
	for _, addr := range snap.Addresses {
		ctx.Addresses = append(ctx.Addresses, addr.FormattedAddress)
	}
	if len(ctx.Addresses) > 0 {
		ctx.Address = ctx.Addresses[0]
	}
	if snap.Fetch.Err != nil {
		ctx.Error = p.localizer.Get("Address lookup failed")
	}
	return ctx
}

func (c *TemplateContext) setLocation(loc location.Data) {
	c.HasLocation = true
	c.Latitude = loc.Latitude
	c.Longitude = loc.Longitude
	c.LatLng = loc.String()
}

// Render renders the text and tooltip templates.
func (p *Presenter) Render(ctx TemplateContext) (Output, error) {
	text := bytes.NewBuffer(nil)
	if err := p.templates.Text.Execute(text, ctx); err != nil {
		return Output{}, fmt.Errorf("failed to render text template: %w", err)
	}
	tooltip := bytes.NewBuffer(nil)
	if err := p.templates.Tooltip.Execute(tooltip, ctx); err != nil {
		return Output{}, fmt.Errorf("failed to render tooltip template: %w", err)
	}
	return Output{Text: text.String(), Tooltip: tooltip.String(), Class: classFor(ctx)}, nil
}

// JSON renders the snapshot and encodes it as a single JSON line.
func (p *Presenter) JSON(snap viewmodel.Snapshot) ([]byte, error) {
	out, err := p.Render(p.BuildContext(snap))
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return append(data, '\n'), nil
}

func classFor(ctx TemplateContext) string {
	switch {
	case !ctx.HasLocation:
		return ClassNoFix
	case ctx.Status == viewmodel.Failed.String():
		return ClassFailed
	case ctx.Status == viewmodel.Loading.String():
		return ClassLoading
	default:
		return ClassReady
	}
}
