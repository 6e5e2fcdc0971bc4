package pipeline

import (
	"fmt"

	"color-grade-agent/internal/adjust"
	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/frame"
	"color-grade-agent/internal/parallel"
	"color-grade-agent/internal/tone"
)

// Stage is one transform in a pipeline. Apply owns buf for the duration of
// the call and returns the buffer holding the result, which may be buf
// itself.
type Stage interface {
	Name() string
	Apply(buf *frame.Buffer, pool *parallel.Pool) (*frame.Buffer, error)
}

// HSLStage is a banded HSL pass.
type HSLStage struct {
	Label  string
	Params adjust.Params
}

func (s HSLStage) Name() string {
	if s.Label != "" {
		return s.Label
	}
	if s.Params.Band != nil {
		return fmt.Sprintf("hsl[%g,%g]", s.Params.Band.Lo, s.Params.Band.Hi)
	}
	return "hsl"
}

func (s HSLStage) Apply(buf *frame.Buffer, pool *parallel.Pool) (*frame.Buffer, error) {
	if err := adjust.AdjustImage(buf, s.Params, pool); err != nil {
		return nil, err
	}
	return buf, nil
}

// CCMStage applies a color correction matrix. Blend is a fixed strength in
// [0,1]; when ZoomBase is positive the strength is instead derived per frame
// from the frame width relative to ZoomBase.
type CCMStage struct {
	Matrix   ccm.Matrix
	Blend    float64
	ZoomBase int
}

func (s CCMStage) Name() string { return "ccm" }

func (s CCMStage) Apply(buf *frame.Buffer, pool *parallel.Pool) (*frame.Buffer, error) {
	blend := s.Blend
	if s.ZoomBase > 0 {
		blend = ccm.BlendForZoom(buf.Width, s.ZoomBase)
	}
	if err := ccm.Apply(buf, s.Matrix, blend, pool); err != nil {
		return nil, err
	}
	return buf, nil
}

// LUTStage maps every channel through a lookup table.
type LUTStage struct {
	Label string
	LUT   tone.LUT
}

func (s *LUTStage) Name() string { return s.Label }

func (s *LUTStage) Apply(buf *frame.Buffer, pool *parallel.Pool) (*frame.Buffer, error) {
	if err := s.LUT.Apply(buf, pool); err != nil {
		return nil, err
	}
	return buf, nil
}
