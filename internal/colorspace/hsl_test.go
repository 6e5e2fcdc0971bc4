package colorspace

import (
	"math"
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"
)

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func hueDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func TestToHSLPrimaries(t *testing.T) {
	cases := []struct {
		r, g, b uint8
		want    HSL
	}{
		{255, 0, 0, HSL{0, 100, 50}},
		{0, 255, 0, HSL{120, 100, 50}},
		{0, 0, 255, HSL{240, 100, 50}},
		{255, 255, 0, HSL{60, 100, 50}},
		{255, 0, 255, HSL{300, 100, 50}},
		{0, 0, 0, HSL{0, 0, 0}},
		{255, 255, 255, HSL{0, 0, 100}},
		{128, 128, 128, HSL{0, 0, 128.0 / 255 * 100}},
	}
	for _, c := range cases {
		got := ToHSL(c.r, c.g, c.b)
		if math.Abs(got.H-c.want.H) > 1e-9 || math.Abs(got.S-c.want.S) > 1e-9 || math.Abs(got.L-c.want.L) > 1e-9 {
			t.Errorf("ToHSL(%d,%d,%d) = %+v, want %+v", c.r, c.g, c.b, got, c.want)
		}
	}
}

func TestToHSLMatchesColorful(t *testing.T) {
	for r := 0; r < 256; r += 5 {
		for g := 0; g < 256; g += 5 {
			for b := 0; b < 256; b += 5 {
				got := ToHSL(uint8(r), uint8(g), uint8(b))
				h, s, l := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}.Hsl()
				if math.Abs(got.S-s*100) > 1e-6 || math.Abs(got.L-l*100) > 1e-6 {
					t.Fatalf("(%d,%d,%d): s/l = %.6f/%.6f, colorful %.6f/%.6f", r, g, b, got.S, got.L, s*100, l*100)
				}
				if got.S > 0 && hueDistance(got.H, h) > 1e-6 {
					t.Fatalf("(%d,%d,%d): hue = %.6f, colorful %.6f", r, g, b, got.H, h)
				}
			}
		}
	}
}

func TestToHSLRanges(t *testing.T) {
	for r := 0; r < 256; r += 3 {
		for g := 0; g < 256; g += 3 {
			for b := 0; b < 256; b += 3 {
				c := ToHSL(uint8(r), uint8(g), uint8(b))
				if c.H < 0 || c.H >= 360 {
					t.Fatalf("hue out of range for (%d,%d,%d): %v", r, g, b, c.H)
				}
				if c.S < 0 || c.S > 100 || c.L < 0 || c.L > 100 {
					t.Fatalf("s/l out of range for (%d,%d,%d): %+v", r, g, b, c)
				}
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	step := 1
	if testing.Short() {
		step = 7
	}
	for r := 0; r < 256; r += step {
		for g := 0; g < 256; g += step {
			for b := 0; b < 256; b += step {
				c := ToHSL(uint8(r), uint8(g), uint8(b))
				rr, gg, bb := ToRGB(c)
				if absDiff(rr, uint8(r)) > 1 || absDiff(gg, uint8(g)) > 1 || absDiff(bb, uint8(b)) > 1 {
					t.Fatalf("round trip (%d,%d,%d) -> %+v -> (%d,%d,%d)", r, g, b, c, rr, gg, bb)
				}
			}
		}
	}
}

func TestToRGBAchromaticIgnoresHue(t *testing.T) {
	for _, h := range []float64{0, 45, 180, 359.9} {
		r, g, b := ToRGB(HSL{H: h, S: 0, L: 50})
		if r != 128 || g != 128 || b != 128 {
			t.Fatalf("h=%v: got (%d,%d,%d), want gray 128", h, r, g, b)
		}
	}
}

func TestToRGBMatchesColorful(t *testing.T) {
	for h := 0.0; h < 360; h += 7.5 {
		for s := 5.0; s <= 100; s += 19 {
			for l := 3.0; l <= 100; l += 13 {
				r, g, b := ToRGB(HSL{H: h, S: s, L: l})
				want := colorful.Hsl(h, s/100, l/100)
				wr, wg, wb := want.RGB255()
				if absDiff(r, wr) > 1 || absDiff(g, wg) > 1 || absDiff(b, wb) > 1 {
					t.Fatalf("ToRGB(%v,%v,%v) = (%d,%d,%d), colorful (%d,%d,%d)", h, s, l, r, g, b, wr, wg, wb)
				}
			}
		}
	}
}

func TestNormalizeHue(t *testing.T) {
	cases := map[float64]float64{
		0:      0,
		360:    0,
		370:    10,
		-10:    350,
		-720:   0,
		725.5:  5.5,
		-1e-15: 0,
	}
	for in, want := range cases {
		if got := NormalizeHue(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("NormalizeHue(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestSaturateByte(t *testing.T) {
	cases := map[float64]uint8{
		-3:    0,
		0.49:  0,
		0.5:   1,
		127.4: 127,
		254.6: 255,
		300:   255,
	}
	for in, want := range cases {
		if got := SaturateByte(in); got != want {
			t.Errorf("SaturateByte(%v) = %d, want %d", in, got, want)
		}
	}
	if got := SaturateByte(math.NaN()); got != 0 {
		t.Errorf("SaturateByte(NaN) = %d, want 0", got)
	}
}
