// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/spreak"

	"github.com/wneessen/geopicker/internal/config"
)

const ellipsis = "…"

type Templates struct {
	Text      *template.Template
	Tooltip   *template.Template
	localizer *spreak.Localizer
}

// New parses the configured text and tooltip templates. extra adds functions to, or
// replaces functions of, the built-in function map.
func New(conf *config.Config, loc *spreak.Localizer, extra template.FuncMap) (*Templates, error) {
	tpls := &Templates{localizer: loc}
	funcs := tpls.templateFuncMap()
	for name, fn := range extra {
		funcs[name] = fn
	}

	tpl, err := template.New("text").Funcs(funcs).Parse(conf.Templates.Text)
	if err != nil {
		return tpls, fmt.Errorf("failed to parse text template: %w", err)
	}
	tpls.Text = tpl

	tpl, err = template.New("tooltip").Funcs(funcs).Parse(conf.Templates.Tooltip)
	if err != nil {
		return tpls, fmt.Errorf("failed to parse tooltip template: %w", err)
	}
	tpls.Tooltip = tpl

	return tpls, nil
}

func (t *Templates) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":  timeFormat,
		"floatFormat": floatFormat,
		"truncate":    Truncate,
		"pad":         Pad,
		"loc":         t.loc,
		"lc":          strings.ToLower,
		"uc":          strings.ToUpper,
	}
}

// loc translates val. Unknown messages are returned unchanged.
func (t *Templates) loc(val string) string {
	if t.localizer == nil {
		return val
	}
	return t.localizer.Get(val)
}

func timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func floatFormat(val float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, val)
}

// Truncate shortens s to at most width terminal cells, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, ellipsis)
}

// Pad right-pads s with spaces to width terminal cells.
func Pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
