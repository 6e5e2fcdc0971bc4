// Package tone holds per-channel lookup-table adjustments applied after color
// correction: gamma and a linear brightness scale.
package tone

import (
	"errors"
	"fmt"
	"math"

	"color-grade-agent/internal/colorspace"
	"color-grade-agent/internal/frame"
	"color-grade-agent/internal/parallel"
)

var (
	// ErrInvalidGamma is returned for a gamma that is not a positive finite
	// number.
	ErrInvalidGamma = errors.New("tone: gamma must be positive")

	// ErrInvalidScale is returned for a negative or non-finite brightness
	// scale.
	ErrInvalidScale = errors.New("tone: brightness scale must be >= 0")
)

// LUT maps every 8-bit input level to an output level.
type LUT [256]uint8

// GammaLUT builds out = 255 * (in/255)^gamma.
func GammaLUT(gamma float64) (LUT, error) {
	var lut LUT
	if !(gamma > 0) || math.IsInf(gamma, 0) {
		return lut, fmt.Errorf("%w: %v", ErrInvalidGamma, gamma)
	}
	for i := range lut {
		lut[i] = colorspace.SaturateByte(math.Pow(float64(i)/255, gamma) * 255)
	}
	return lut, nil
}

// BrightnessLUT builds out = in * alpha, saturated.
func BrightnessLUT(alpha float64) (LUT, error) {
	var lut LUT
	if !(alpha >= 0) || math.IsInf(alpha, 0) {
		return lut, fmt.Errorf("%w: %v", ErrInvalidScale, alpha)
	}
	for i := range lut {
		lut[i] = colorspace.SaturateByte(float64(i) * alpha)
	}
	return lut, nil
}

// Apply maps every channel of every pixel through lut in place.
func (lut *LUT) Apply(buf *frame.Buffer, pool *parallel.Pool) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if buf.Empty() {
		return nil
	}
	rows := func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := buf.Row(y)
			for i, v := range row {
				row[i] = lut[v]
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
