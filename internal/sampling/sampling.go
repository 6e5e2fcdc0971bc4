// Package sampling measures the average color of rectangular regions of a
// calibration image, producing the measured side of a CCM fit.
package sampling

import (
	"errors"
	"fmt"
	"image"

	"color-grade-agent/internal/ccm"
	"github.com/disintegration/imaging"
)

var (
	// ErrROITooSmall is returned for a region narrower or shorter than the
	// configured minimum.
	ErrROITooSmall = errors.New("sampling: region too small")

	// ErrROIOutside is returned for a region not fully inside the image.
	ErrROIOutside = errors.New("sampling: region outside image")
)

// Region is a JSON-friendly rectangle in image pixel coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts r to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Average returns the mean color of rect in buffer order (blue, green, red).
// Alpha is ignored.
func Average(img image.Image, rect image.Rectangle) (ccm.Vec3, error) {
	var avg ccm.Vec3
	if rect.Empty() {
		return avg, fmt.Errorf("%w: %v", ErrROITooSmall, rect)
	}
	if !rect.In(img.Bounds()) {
		return avg, fmt.Errorf("%w: %v not in %v", ErrROIOutside, rect, img.Bounds())
	}
	crop := imaging.Crop(img, rect)
	var sum [3]float64
	n := 0
	for y := 0; y < crop.Rect.Dy(); y++ {
		row := crop.Pix[y*crop.Stride : y*crop.Stride+crop.Rect.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			sum[0] += float64(row[i+2])
			sum[1] += float64(row[i+1])
			sum[2] += float64(row[i])
			n++
		}
	}
	for c := range sum {
		avg[c] = sum[c] / float64(n)
	}
	return avg, nil
}

// Measure averages every region, rejecting any smaller than minSize on
// either side.
func Measure(img image.Image, regions []Region, minSize int) ([]ccm.Vec3, error) {
	out := make([]ccm.Vec3, 0, len(regions))
	for i, r := range regions {
		if r.Width < minSize || r.Height < minSize || r.Width <= 0 || r.Height <= 0 {
			return nil, fmt.Errorf("region %d: %w: %dx%d, minimum %d", i, ErrROITooSmall, r.Width, r.Height, minSize)
		}
		v, err := Average(img, r.Rect())
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Grid lays out rows x cols equally sized regions over bounds, each shrunk
// by inset pixels on every side. It matches the patch layout of a chart
// photographed to fill the frame.
func Grid(bounds image.Rectangle, rows, cols, inset int) []Region {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	cw := bounds.Dx() / cols
	ch := bounds.Dy() / rows
	out := make([]Region, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, Region{
				X:      bounds.Min.X + c*cw + inset,
				Y:      bounds.Min.Y + r*ch + inset,
				Width:  cw - 2*inset,
				Height: ch - 2*inset,
			})
		}
	}
	return out
}
