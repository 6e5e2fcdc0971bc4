package ccm

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Report summarizes how far the measured colors sit from their references,
// in CIEDE2000 units, before and after correction.
type Report struct {
	Samples     int     `json:"samples"`
	MeanBefore  float64 `json:"mean_delta_e_before"`
	MaxBefore   float64 `json:"max_delta_e_before"`
	MeanAfter   float64 `json:"mean_delta_e_after"`
	MaxAfter    float64 `json:"max_delta_e_after"`
	WorstSample int     `json:"worst_sample"`
}

// Evaluate measures m against samples. Corrected colors are saturated to the
// 8-bit range the way Apply saturates pixels.
func Evaluate(m Matrix, samples []Sample) Report {
	rep := Report{Samples: len(samples), WorstSample: -1}
	if len(samples) == 0 {
		return rep
	}
	for i, s := range samples {
		ref := toColorful(s.Reference)
		before := toColorful(s.Measured).DistanceCIEDE2000(ref)
		after := toColorful(m.Transform(s.Measured)).DistanceCIEDE2000(ref)

		rep.MeanBefore += before
		rep.MeanAfter += after
		rep.MaxBefore = math.Max(rep.MaxBefore, before)
		if after > rep.MaxAfter || rep.WorstSample < 0 {
			rep.MaxAfter = after
			rep.WorstSample = i
		}
	}
	n := float64(len(samples))
	rep.MeanBefore /= n
	rep.MeanAfter /= n
	return rep
}

func toColorful(v Vec3) colorful.Color {
	unit := func(x float64) float64 {
		return math.Min(math.Max(x, 0), 255) / 255
	}
	return colorful.Color{R: unit(v[2]), G: unit(v[1]), B: unit(v[0])}
}
