// Package colorspace converts single pixels between RGB and HSL.
package colorspace

import "math"

// HSL is a cylindrical color. H is in degrees [0,360), S and L are percentages
// in [0,100].
type HSL struct {
	H float64
	S float64
	L float64
}

// ToHSL converts 8-bit channel values to HSL. Achromatic colors get H = S = 0.
func ToHSL(r, g, b uint8) HSL {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	maxV := math.Max(rf, math.Max(gf, bf))
	minV := math.Min(rf, math.Min(gf, bf))
	delta := maxV - minV

	out := HSL{L: (maxV + minV) / 2}
	if delta != 0 {
		if out.L <= 0.5 {
			out.S = delta / (maxV + minV)
		} else {
			out.S = delta / (2 - maxV - minV)
		}

		var h float64
		switch maxV {
		case rf:
			h = (gf - bf) / delta
			if gf < bf {
				h += 6
			}
		case gf:
			h = (bf-rf)/delta + 2
		default:
			h = (rf-gf)/delta + 4
		}
		out.H = NormalizeHue(h * 60)
	}

	out.S *= 100
	out.L *= 100
	return out
}

// ToRGB converts HSL back to 8-bit channels, rounding to nearest. Inputs outside
// their ranges are normalized (hue) or clamped (saturation, lightness) first.
func ToRGB(c HSL) (r, g, b uint8) {
	h := NormalizeHue(c.H) / 360
	s := clamp(c.S, 0, 100) / 100
	l := clamp(c.L, 0, 100) / 100

	if s == 0 {
		v := toByte(l)
		return v, v, v
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	return toByte(hueToRGB(p, q, h+1.0/3)),
		toByte(hueToRGB(p, q, h)),
		toByte(hueToRGB(p, q, h-1.0/3))
}

// hueToRGB interpolates between the p and q anchors for hue position t in
// turns.
func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

// NormalizeHue wraps h into [0,360).
func NormalizeHue(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	// -tiny + 360 rounds to exactly 360
	if h >= 360 {
		h = 0
	}
	return h
}

// SaturateByte rounds v to the nearest integer and saturates it into [0,255].
func SaturateByte(v float64) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

func toByte(v float64) uint8 {
	return SaturateByte(v * 255)
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
