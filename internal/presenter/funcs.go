// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"localizedTime": p.localizedTime,
		"naturalTime":   p.naturalTime,
		"floatFormat":   p.floatFormat,
		"address":       address,
	}
}

func (p *Presenter) localizedTime(val time.Time) string {
	return p.humanizer.FormatTime(val, humanize.TimeFormat)
}

func (p *Presenter) naturalTime(val time.Time) string {
	return p.humanizer.NaturalTime(val)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Trunc(val*pow)/pow)
}

// address returns the address candidate at the given offset (0-based).
func address(ctx TemplateContext, offset int) string {
	if offset < 0 || offset >= len(ctx.Addresses) {
		return ""
	}
	return ctx.Addresses[offset]
}
