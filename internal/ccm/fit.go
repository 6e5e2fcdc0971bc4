package ccm

import "fmt"

// Sample pairs a measured color with the reference color it should map to.
type Sample struct {
	Measured  Vec3 `json:"measured"`
	Reference Vec3 `json:"reference"`
}

// Pair zips measured and reference colors positionally.
func Pair(measured, reference []Vec3) ([]Sample, error) {
	if len(measured) != len(reference) {
		return nil, fmt.Errorf("%w: %d measured, %d reference", ErrSampleMismatch, len(measured), len(reference))
	}
	out := make([]Sample, len(measured))
	for i := range measured {
		out[i] = Sample{Measured: measured[i], Reference: reference[i]}
	}
	return out, nil
}

// Fit solves the least-squares problem M·X ≈ R for the 3x3 X, where M stacks
// the measured colors and R the reference colors, through the normal
// equations X = (MᵗM)⁻¹MᵗR.
func Fit(samples []Sample) (Matrix, error) {
	if len(samples) < 3 {
		return Matrix{}, fmt.Errorf("%w: %d samples, need at least 3", ErrDegenerateFit, len(samples))
	}

	// MᵗM and MᵗR are accumulated directly; the N×3 stacks are never built.
	var mtm, mtr Matrix
	for _, s := range samples {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				mtm[i][j] += s.Measured[i] * s.Measured[j]
				mtr[i][j] += s.Measured[i] * s.Reference[j]
			}
		}
	}
	if err := mtm.Validate(); err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
	}

	inv, ok := mtm.Inverse()
	if !ok {
		return Matrix{}, fmt.Errorf("%w: samples do not span three independent colors", ErrDegenerateFit)
	}
	out := inv.Mul(mtr)
	if err := out.Validate(); err != nil {
		return Matrix{}, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
	}
	return out, nil
}
