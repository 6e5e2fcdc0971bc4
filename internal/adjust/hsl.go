// Package adjust applies hue, saturation and lightness changes to pixels,
// optionally only to pixels whose hue lies inside a band.
package adjust

import (
	"errors"
	"fmt"

	"color-grade-agent/internal/colorspace"
	"color-grade-agent/internal/frame"
	"color-grade-agent/internal/parallel"
)

var (
	// ErrInvalidBand is returned for a band outside 0 <= Lo <= Hi <= 360.
	ErrInvalidBand = errors.New("adjust: invalid hue band")
)

// Band is an inclusive hue range in degrees.
type Band struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// FullCircle selects every hue.
var FullCircle = Band{Lo: 0, Hi: 360}

// Validate checks 0 <= Lo <= Hi <= 360.
func (b Band) Validate() error {
	if !(b.Lo >= 0 && b.Lo <= b.Hi && b.Hi <= 360) {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidBand, b.Lo, b.Hi)
	}
	return nil
}

// Contains reports whether hue h lies in [Lo, Hi].
func (b Band) Contains(h float64) bool {
	return h >= b.Lo && h <= b.Hi
}

// Params describes one HSL pass. SaturationPct and LightnessPct are relative
// scales: -40 multiplies by 0.6, +30 by 1.3. A nil Band applies the pass to
// every pixel.
type Params struct {
	HueShift      float64 `json:"hue_shift"`
	SaturationPct float64 `json:"saturation_pct"`
	LightnessPct  float64 `json:"lightness_pct"`
	Band          *Band   `json:"band,omitempty"`
}

// Validate checks the band, if any.
func (p Params) Validate() error {
	if p.Band == nil {
		return nil
	}
	return p.Band.Validate()
}

// Selects reports whether a pixel with hue h is affected by the pass.
func (p Params) Selects(h float64) bool {
	return p.Band == nil || p.Band.Contains(h)
}

// AdjustHSL applies the pass to an HSL color. Unselected colors are returned
// unchanged together with false.
func AdjustHSL(c colorspace.HSL, p Params) (colorspace.HSL, bool) {
	if !p.Selects(c.H) {
		return c, false
	}
	h := colorspace.NormalizeHue(c.H + p.HueShift)
	if p.Band != nil {
		// keep the pixel inside the band it was selected for; 360 wraps to 0
		h = colorspace.NormalizeHue(clamp(h, p.Band.Lo, p.Band.Hi))
	}
	return colorspace.HSL{
		H: h,
		S: clamp(c.S*(1+p.SaturationPct/100), 0, 100),
		L: clamp(c.L*(1+p.LightnessPct/100), 0, 100),
	}, true
}

// AdjustPixel applies the pass to one pixel given in R, G, B order. Pixels
// outside the band come back bit-for-bit unchanged.
func AdjustPixel(r, g, b uint8, p Params) (uint8, uint8, uint8) {
	c, ok := AdjustHSL(colorspace.ToHSL(r, g, b), p)
	if !ok {
		return r, g, b
	}
	return colorspace.ToRGB(c)
}

// AdjustImage applies the pass in place to every pixel of buf, splitting rows
// across pool. A nil pool processes rows on the calling goroutine. An empty
// buffer is a no-op.
func AdjustImage(buf *frame.Buffer, p Params, pool *parallel.Pool) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if buf.Empty() {
		return nil
	}

	rows := func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := buf.Row(y)
			for i := 0; i < len(row); i += frame.Channels {
				r, g, b := AdjustPixel(row[i+2], row[i+1], row[i], p)
				row[i], row[i+1], row[i+2] = b, g, r
			}
		}
	}
	if pool == nil {
		rows(0, buf.Height)
		return nil
	}
	pool.Rows(buf.Height, rows)
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
