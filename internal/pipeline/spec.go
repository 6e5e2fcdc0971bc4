package pipeline

import (
	"errors"
	"fmt"

	"color-grade-agent/internal/adjust"
	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/tone"
)

// Kind names a stage type in a Spec.
type Kind string

const (
	KindHSL        Kind = "hsl"
	KindCCM        Kind = "ccm"
	KindGamma      Kind = "gamma"
	KindBrightness Kind = "brightness"
)

var (
	// ErrUnknownStage is returned for a Spec with an unrecognized kind.
	ErrUnknownStage = errors.New("pipeline: unknown stage kind")

	// ErrNoMatrix is returned when a ccm stage is requested but no matrix
	// was supplied.
	ErrNoMatrix = errors.New("pipeline: ccm stage requires a fitted matrix")
)

// Spec is the serializable description of one stage. Only the fields of its
// Kind are read.
type Spec struct {
	Kind  Kind   `json:"kind"`
	Label string `json:"label,omitempty"`

	// hsl
	adjust.Params

	// ccm; Blend nil means full strength
	Blend    *float64 `json:"blend,omitempty"`
	ZoomBase int      `json:"zoom_base,omitempty"`

	// gamma
	Gamma float64 `json:"gamma,omitempty"`

	// brightness
	Scale float64 `json:"scale,omitempty"`
}

// HSL is a convenience constructor for an hsl Spec.
func HSL(label string, hue, sat, light float64, band *adjust.Band) Spec {
	return Spec{
		Kind:   KindHSL,
		Label:  label,
		Params: adjust.Params{HueShift: hue, SaturationPct: sat, LightnessPct: light, Band: band},
	}
}

// CCM is a convenience constructor for a full-strength ccm Spec.
func CCM() Spec {
	return Spec{Kind: KindCCM}
}

// Build turns specs into stages, in order. m is required only when a ccm
// stage is present.
func Build(specs []Spec, m *ccm.Matrix) ([]Stage, error) {
	stages := make([]Stage, 0, len(specs))
	for i, s := range specs {
		st, err := s.build(m)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, s.Kind, err)
		}
		stages = append(stages, st)
	}
	return stages, nil
}

// NeedsMatrix reports whether any spec is a ccm stage.
func NeedsMatrix(specs []Spec) bool {
	for _, s := range specs {
		if s.Kind == KindCCM {
			return true
		}
	}
	return false
}

func (s Spec) build(m *ccm.Matrix) (Stage, error) {
	switch s.Kind {
	case KindHSL:
		if err := s.Params.Validate(); err != nil {
			return nil, err
		}
		return HSLStage{Label: s.Label, Params: s.Params}, nil
	case KindCCM:
		if m == nil {
			return nil, ErrNoMatrix
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		blend := ccm.FullStrength
		if s.Blend != nil {
			if *s.Blend < 0 || *s.Blend > 1 {
				return nil, fmt.Errorf("blend %v outside [0,1]", *s.Blend)
			}
			blend = *s.Blend
		}
		return CCMStage{Matrix: *m, Blend: blend, ZoomBase: s.ZoomBase}, nil
	case KindGamma:
		lut, err := tone.GammaLUT(s.Gamma)
		if err != nil {
			return nil, err
		}
		return &LUTStage{Label: labelOr(s.Label, fmt.Sprintf("gamma(%g)", s.Gamma)), LUT: lut}, nil
	case KindBrightness:
		lut, err := tone.BrightnessLUT(s.Scale)
		if err != nil {
			return nil, err
		}
		return &LUTStage{Label: labelOr(s.Label, fmt.Sprintf("brightness(%g)", s.Scale)), LUT: lut}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, s.Kind)
	}
}

func labelOr(label, fallback string) string {
	if label != "" {
		return label
	}
	return fallback
}
