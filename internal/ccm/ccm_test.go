package ccm

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"color-grade-agent/internal/frame"
	"color-grade-agent/internal/parallel"
)

func matrixNear(a, b Matrix, tol float64) bool {
	for i := range a {
		for j := range a[i] {
			if math.Abs(a[i][j]-b[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func chartSamples(m Matrix) []Sample {
	out := make([]Sample, len(Checker24))
	for i, c := range Checker24 {
		out[i] = Sample{Measured: c, Reference: m.Transform(c)}
	}
	return out
}

func TestFitIdentity(t *testing.T) {
	got, err := Fit(chartSamples(Identity))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !matrixNear(got, Identity, 1e-9) {
		t.Fatalf("Fit = %v, want identity", got)
	}
}

func TestFitRecoversKnownMatrix(t *testing.T) {
	want := Matrix{
		{1.12, -0.05, 0.02},
		{-0.10, 0.95, 0.08},
		{0.03, 0.11, 1.20},
	}
	got, err := Fit(chartSamples(want))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !matrixNear(got, want, 1e-9) {
		t.Fatalf("Fit = %v, want %v", got, want)
	}
}

func TestFitReducesErrorOnNoisySamples(t *testing.T) {
	cast := Matrix{
		{0.85, 0.04, 0},
		{0.02, 1.05, 0.03},
		{0, 0.06, 0.9},
	}
	samples := make([]Sample, len(Checker24))
	for i, ref := range Checker24 {
		measured := cast.Transform(ref)
		// deterministic jitter of a few levels
		measured[i%3] += float64(i%5) - 2
		samples[i] = Sample{Measured: measured, Reference: ref}
	}
	m, err := Fit(samples)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	rep := Evaluate(m, samples)
	if rep.MeanAfter >= rep.MeanBefore {
		t.Fatalf("fit did not improve mean delta E: before %.3f after %.3f", rep.MeanBefore, rep.MeanAfter)
	}
	if rep.Samples != len(samples) || rep.WorstSample < 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestFitDegenerate(t *testing.T) {
	gray := Vec3{100, 100, 100}
	cases := map[string][]Sample{
		"empty":     nil,
		"two":       {{Measured: Vec3{1, 0, 0}, Reference: Vec3{1, 0, 0}}, {Measured: Vec3{0, 1, 0}, Reference: Vec3{0, 1, 0}}},
		"duplicate": {{Measured: gray, Reference: gray}, {Measured: gray, Reference: gray}, {Measured: gray, Reference: gray}, {Measured: gray, Reference: gray}},
		"colinear":  {{Measured: Vec3{10, 20, 30}, Reference: gray}, {Measured: Vec3{20, 40, 60}, Reference: gray}, {Measured: Vec3{30, 60, 90}, Reference: gray}},
		"planar": {
			{Measured: Vec3{10, 0, 10}, Reference: gray},
			{Measured: Vec3{0, 10, 10}, Reference: gray},
			{Measured: Vec3{10, 10, 20}, Reference: gray},
			{Measured: Vec3{30, 20, 50}, Reference: gray},
		},
		"black": {{Reference: gray}, {Reference: gray}, {Reference: gray}},
	}
	for name, samples := range cases {
		if _, err := Fit(samples); !errors.Is(err, ErrDegenerateFit) {
			t.Errorf("%s: got %v, want ErrDegenerateFit", name, err)
		}
	}
}

func TestPair(t *testing.T) {
	if _, err := Pair(make([]Vec3, 3), make([]Vec3, 2)); !errors.Is(err, ErrSampleMismatch) {
		t.Fatalf("got %v, want ErrSampleMismatch", err)
	}
	s, err := Pair(Checker24, ReferenceChart())
	if err != nil || len(s) != 24 || s[5].Measured != s[5].Reference {
		t.Fatalf("Pair = %v, %v", s, err)
	}
}

func TestInverse(t *testing.T) {
	m := Matrix{{2, 0, 1}, {1, 3, 0}, {0, 1, 4}}
	inv, ok := m.Inverse()
	if !ok {
		t.Fatalf("matrix should be invertible, det=%v", m.Det())
	}
	if !matrixNear(m.Mul(inv), Identity, 1e-12) {
		t.Fatalf("m·inv = %v", m.Mul(inv))
	}
	if _, ok := (Matrix{{1, 2, 3}, {2, 4, 6}, {0, 0, 1}}).Inverse(); ok {
		t.Fatalf("singular matrix reported invertible")
	}
}

func TestMatrixFromRows(t *testing.T) {
	bad := [][][]float64{
		{{1, 0, 0}, {0, 1, 0}},
		{{1, 0, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		{{1, 0, 0}, {0, math.NaN(), 0}, {0, 0, 1}},
		{{1, 0, 0}, {0, 1, 0}, {0, 0, math.Inf(1)}},
	}
	for i, rows := range bad {
		if _, err := MatrixFromRows(rows); !errors.Is(err, ErrInvalidMatrix) {
			t.Errorf("case %d: got %v, want ErrInvalidMatrix", i, err)
		}
	}
	m, err := MatrixFromRows(Identity.Rows())
	if err != nil || m != Identity {
		t.Fatalf("MatrixFromRows(identity) = %v, %v", m, err)
	}
}

func fillGradient(b *frame.Buffer) {
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			b.Set(x, y, uint8(x*13+y), uint8(y*17), uint8(255-x*5))
		}
	}
}

func TestApplyIdentityLeavesBufferUnchanged(t *testing.T) {
	buf, _ := frame.New(31, 17)
	fillGradient(buf)
	want := buf.Clone()
	if err := Apply(buf, Identity, FullStrength, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(buf.Data, want.Data) {
		t.Fatalf("identity changed the buffer")
	}
}

func TestApplyConventionAndSaturation(t *testing.T) {
	// output blue takes input red, output red takes input blue
	swap := Matrix{
		{0, 0, 1},
		{0, 1, 0},
		{1, 0, 0},
	}
	buf, _ := frame.New(1, 1)
	buf.Set(0, 0, 10, 20, 30)
	if err := Apply(buf, swap, FullStrength, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if b, g, r := buf.At(0, 0); b != 30 || g != 20 || r != 10 {
		t.Fatalf("swap gave (%d,%d,%d), want (30,20,10)", b, g, r)
	}

	gain := Matrix{{2, 0, 0}, {0, -1, 0}, {0, 0, 1.002}}
	buf.Set(0, 0, 200, 100, 249)
	if err := Apply(buf, gain, FullStrength, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if b, g, r := buf.At(0, 0); b != 255 || g != 0 || r != 249 {
		t.Fatalf("saturation gave (%d,%d,%d), want (255,0,249)", b, g, r)
	}
}

func TestApplyBlend(t *testing.T) {
	dark := Matrix{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
	buf, _ := frame.New(1, 1)

	buf.Set(0, 0, 100, 200, 50)
	if err := Apply(buf, dark, 0, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if b, g, r := buf.At(0, 0); b != 100 || g != 200 || r != 50 {
		t.Fatalf("blend 0 should keep the original, got (%d,%d,%d)", b, g, r)
	}

	if err := Apply(buf, dark, 0.5, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if b, g, r := buf.At(0, 0); b != 50 || g != 100 || r != 25 {
		t.Fatalf("blend 0.5 gave (%d,%d,%d), want (50,100,25)", b, g, r)
	}

	buf.Set(0, 0, 100, 200, 50)
	if err := Apply(buf, dark, 7, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if b, g, r := buf.At(0, 0); b != 0 || g != 0 || r != 0 {
		t.Fatalf("blend above 1 should clamp to full strength, got (%d,%d,%d)", b, g, r)
	}
}

func TestApplyParallelMatchesSerial(t *testing.T) {
	pool := parallel.NewPool(3)
	defer pool.Close()

	m := Matrix{{1.1, 0.02, -0.03}, {-0.04, 0.97, 0.05}, {0.01, 0.06, 1.08}}
	a, _ := frame.New(64, 48)
	fillGradient(a)
	b := a.Clone()
	if err := Apply(a, m, 0.8, nil); err != nil {
		t.Fatalf("serial: %v", err)
	}
	if err := Apply(b, m, 0.8, pool); err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Fatalf("parallel output differs from serial")
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	buf := &frame.Buffer{Width: 2, Height: 2, Channels: 3, Stride: 5, Data: make([]byte, 12)}
	if err := Apply(buf, Identity, FullStrength, nil); !errors.Is(err, frame.ErrShapeMismatch) {
		t.Fatalf("got %v, want ErrShapeMismatch", err)
	}
	ok, _ := frame.New(1, 1)
	if err := Apply(ok, Matrix{{math.NaN()}}, FullStrength, nil); !errors.Is(err, ErrInvalidMatrix) {
		t.Fatalf("got %v, want ErrInvalidMatrix", err)
	}
}

func TestBlendForZoom(t *testing.T) {
	cases := []struct {
		width, base int
		want        float64
	}{
		{1920, 1920, 0},
		{2880, 1920, 0.5},
		{3840, 1920, 1},
		{7680, 1920, 1},
		{960, 1920, 0},
		{100, 0, 1},
	}
	for _, c := range cases {
		if got := BlendForZoom(c.width, c.base); got != c.want {
			t.Errorf("BlendForZoom(%d, %d) = %v, want %v", c.width, c.base, got, c.want)
		}
	}
	if ClampBlend(math.NaN()) != 0 {
		t.Errorf("NaN blend should clamp to 0")
	}
}

func TestMatrixTextRoundTrip(t *testing.T) {
	m := Matrix{
		{1.0573920011520386, -0.0123, 3.0e-7},
		{-0.25, 0.9999999999999999, 0},
		{0.1, 0.2, 1.3},
	}
	var buf bytes.Buffer
	if err := WriteMatrix(&buf, m); err != nil {
		t.Fatalf("WriteMatrix: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasSuffix(lines[0], ",") {
		t.Fatalf("unexpected layout:\n%s", buf.String())
	}
	got, err := ReadMatrix(&buf)
	if err != nil {
		t.Fatalf("ReadMatrix: %v", err)
	}
	if got != m {
		t.Fatalf("round trip = %v, want %v", got, m)
	}
}

func TestReadMatrixFormats(t *testing.T) {
	in := "1.2,0.1,0,\n0,1 , 0\n\n0,0.5,0.9,\n"
	m, err := ReadMatrix(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadMatrix: %v", err)
	}
	if m[0][0] != 1.2 || m[1][1] != 1 || m[2][2] != 0.9 {
		t.Fatalf("parsed %v", m)
	}

	for _, bad := range []string{"1,0,0\n0,1,0\n", "1,0,0\n0,1,0\n0,0,x\n", "1,0,0\n0,1,0\n0,0,1,2\n", "1,0,0\n0,1,0\n0,0,NaN\n"} {
		if _, err := ReadMatrix(strings.NewReader(bad)); !errors.Is(err, ErrInvalidMatrix) {
			t.Errorf("%q: got %v, want ErrInvalidMatrix", bad, err)
		}
	}
}

func TestReadColors(t *testing.T) {
	in := "# b,g,r\n68,82,115\n130,150,194,\n\n157, 122, 98\n"
	got, err := ReadColors(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadColors: %v", err)
	}
	if len(got) != 3 || got[1] != (Vec3{130, 150, 194}) || got[2] != Checker24[2] {
		t.Fatalf("ReadColors = %v", got)
	}
	if _, err := ReadColors(strings.NewReader("1,2\n")); err == nil {
		t.Fatalf("short row accepted")
	}
}

func TestSaveAndLoadMatrixFile(t *testing.T) {
	path := t.TempDir() + "/ref/LCC_CMC.csv"
	m := Matrix{{0.9, 0.1, 0}, {0, 1, 0}, {0.05, 0, 1.1}}
	if err := SaveMatrixFile(path, m); err != nil {
		t.Fatalf("SaveMatrixFile: %v", err)
	}
	got, err := LoadMatrixFile(path)
	if err != nil {
		t.Fatalf("LoadMatrixFile: %v", err)
	}
	if got != m {
		t.Fatalf("loaded %v, want %v", got, m)
	}
}

func TestEvaluateExactFit(t *testing.T) {
	rep := Evaluate(Identity, chartSamples(Identity))
	if rep.MeanAfter != 0 || rep.MaxAfter != 0 || rep.Samples != 24 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if empty := Evaluate(Identity, nil); empty.Samples != 0 || empty.WorstSample != -1 {
		t.Fatalf("unexpected empty report: %+v", empty)
	}
}
