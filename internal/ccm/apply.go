package ccm

import (
	"color-grade-agent/internal/colorspace"
	"color-grade-agent/internal/frame"
	"color-grade-agent/internal/parallel"
)

// FullStrength applies the matrix without blending toward the original.
const FullStrength = 1.0

// ClampBlend limits a blend factor to [0,1]; NaN counts as 0.
func ClampBlend(e float64) float64 {
	if !(e > 0) {
		return 0
	}
	if e > 1 {
		return 1
	}
	return e
}

// BlendForZoom derives a blend factor from how far a frame is enlarged
// relative to its base width: no correction at 1x, full correction at 2x and
// beyond.
func BlendForZoom(width, baseWidth int) float64 {
	if baseWidth <= 0 {
		return FullStrength
	}
	return ClampBlend(float64(width)/float64(baseWidth) - 1)
}

// Apply corrects buf in place with m. blend mixes the corrected pixel with the
// original, out = original*(1-e) + corrected*e, after clamping e to [0,1]; pass
// FullStrength for plain correction. Rows are split across pool when it is
// not nil.
func Apply(buf *frame.Buffer, m Matrix, blend float64, pool *parallel.Pool) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if buf.Empty() {
		return nil
	}

	e := ClampBlend(blend)
	keep := 1 - e
	rows := func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := buf.Row(y)
			for i := 0; i < len(row); i += frame.Channels {
				px := Vec3{float64(row[i]), float64(row[i+1]), float64(row[i+2])}
				out := m.Transform(px)
				for c := 0; c < 3; c++ {
					v := out[c]
					if e != 1 {
						v = px[c]*keep + v*e
					}
					row[i+c] = colorspace.SaturateByte(v)
				}
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
