// Package ccm fits and applies 3x3 color correction matrices.
//
// Channels are indexed in buffer order (0 = blue, 1 = green, 2 = red). A pixel
// is treated as a row vector p and corrected as p·M, so M[r][c] is the
// contribution of input channel r to output channel c. Fit and Apply share
// this convention.
package ccm

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDegenerateFit is returned when the calibration samples do not span
	// three independent color directions.
	ErrDegenerateFit = errors.New("ccm: degenerate fit")

	// ErrInvalidMatrix is returned for a matrix that is not 3x3 or holds
	// non-finite values.
	ErrInvalidMatrix = errors.New("ccm: invalid matrix")

	// ErrSampleMismatch is returned when measured and reference color lists
	// differ in length.
	ErrSampleMismatch = errors.New("ccm: measured and reference counts differ")
)

// Matrix is a 3x3 color correction matrix.
type Matrix [3][3]float64

// Identity is the matrix that leaves every pixel unchanged.
var Identity = Matrix{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// Vec3 is one color in buffer channel order, as real-valued channel averages.
type Vec3 [3]float64

// MatrixFromRows validates a row slice and converts it to a Matrix.
func MatrixFromRows(rows [][]float64) (Matrix, error) {
	var m Matrix
	if len(rows) != 3 {
		return m, fmt.Errorf("%w: %d rows", ErrInvalidMatrix, len(rows))
	}
	for i, row := range rows {
		if len(row) != 3 {
			return m, fmt.Errorf("%w: row %d has %d values", ErrInvalidMatrix, i, len(row))
		}
		copy(m[i][:], row)
	}
	if err := m.Validate(); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

// Rows returns the matrix as a slice of rows.
func (m Matrix) Rows() [][]float64 {
	out := make([][]float64, 3)
	for i := range m {
		out[i] = []float64{m[i][0], m[i][1], m[i][2]}
	}
	return out
}

// Validate rejects NaN and infinite coefficients.
func (m Matrix) Validate() error {
	for i := range m {
		for j := range m[i] {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return fmt.Errorf("%w: non-finite value at [%d][%d]", ErrInvalidMatrix, i, j)
			}
		}
	}
	return nil
}

// Transform returns v·m.
func (m Matrix) Transform(v Vec3) Vec3 {
	var out Vec3
	for c := 0; c < 3; c++ {
		out[c] = v[0]*m[0][c] + v[1]*m[1][c] + v[2]*m[2][c]
	}
	return out
}

// Mul returns m·b.
func (m Matrix) Mul(b Matrix) Matrix {
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*b[0][j] + m[i][1]*b[1][j] + m[i][2]*b[2][j]
		}
	}
	return out
}

// Det returns the determinant.
func (m Matrix) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the inverse by cofactor expansion. ok is false when the
// determinant is zero relative to the magnitude of the entries.
func (m Matrix) Inverse() (inv Matrix, ok bool) {
	a := m
	c00 := a[1][1]*a[2][2] - a[1][2]*a[2][1]
	c01 := -(a[1][0]*a[2][2] - a[1][2]*a[2][0])
	c02 := a[1][0]*a[2][1] - a[1][1]*a[2][0]
	c10 := -(a[0][1]*a[2][2] - a[0][2]*a[2][1])
	c11 := a[0][0]*a[2][2] - a[0][2]*a[2][0]
	c12 := -(a[0][0]*a[2][1] - a[0][1]*a[2][0])
	c20 := a[0][1]*a[1][2] - a[0][2]*a[1][1]
	c21 := -(a[0][0]*a[1][2] - a[0][2]*a[1][0])
	c22 := a[0][0]*a[1][1] - a[0][1]*a[1][0]

	det := a[0][0]*c00 + a[0][1]*c01 + a[0][2]*c02
	if singular(det, m) {
		return Matrix{}, false
	}

	// adjugate is the transposed cofactor matrix
	inv = Matrix{
		{c00 / det, c10 / det, c20 / det},
		{c01 / det, c11 / det, c21 / det},
		{c02 / det, c12 / det, c22 / det},
	}
	return inv, inv.Validate() == nil
}

// singularTolerance bounds |det| relative to the cube of the largest entry.
const singularTolerance = 1e-10

func singular(det float64, m Matrix) bool {
	scale := 0.0
	for i := range m {
		for j := range m[i] {
			scale = math.Max(scale, math.Abs(m[i][j]))
		}
	}
	if scale == 0 || math.IsNaN(det) {
		return true
	}
	return math.Abs(det) <= singularTolerance*scale*scale*scale
}
