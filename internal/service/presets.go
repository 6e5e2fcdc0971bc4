package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"color-grade-agent/internal/adjust"
	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/config"
	"color-grade-agent/internal/model"
	"color-grade-agent/internal/pipeline"
	"color-grade-agent/internal/storage"
	"color-grade-agent/internal/ws"
	"github.com/google/uuid"
)

var presetIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// DefaultPresets returns the builtin pipelines: the road-marking grade used
// on dash-cam footage and its building blocks.
func DefaultPresets(cfg config.Config) []model.Preset {
	yellow := &adjust.Band{Lo: 40, Hi: 70}
	green := &adjust.Band{Lo: 60, Hi: 180}
	now := time.Now().UnixMilli()

	presets := []model.Preset{
		{
			ID:          "road-marking",
			Name:        "Road marking",
			Description: "Fade yellow markings, push green toward pure green, then color-correct.",
			Stages: []pipeline.Spec{
				pipeline.HSL("yellow", 0, -70, 30, yellow),
				pipeline.HSL("green", 20, 40, -5, green),
				pipeline.CCM(),
			},
		},
		{
			ID:          "yellow-fade",
			Name:        "Yellow fade",
			Description: "Desaturate and lighten yellow hues only.",
			Stages: []pipeline.Spec{
				pipeline.HSL("yellow", 0, -40, 30, yellow),
			},
		},
		{
			ID:          "ccm-only",
			Name:        "Color correction",
			Description: "Apply the latest fitted color correction matrix.",
			Stages:      []pipeline.Spec{pipeline.CCM()},
		},
		{
			ID:          "ccm-dim",
			Name:        "Color correction, dimmed",
			Description: "Color-correct, then scale brightness down.",
			Stages: []pipeline.Spec{
				pipeline.CCM(),
				{Kind: pipeline.KindBrightness, Scale: cfg.BrightnessScale},
			},
		},
	}
	if cfg.ZoomBaseWidth > 0 {
		presets = append(presets, model.Preset{
			ID:          "ccm-zoom",
			Name:        "Zoom-weighted correction",
			Description: fmt.Sprintf("Blend correction in as frames grow past %dpx wide.", cfg.ZoomBaseWidth),
			Stages:      []pipeline.Spec{{Kind: pipeline.KindCCM, ZoomBase: cfg.ZoomBaseWidth}},
		})
	}
	for i := range presets {
		presets[i].Builtin = true
		presets[i].Updated = now
	}
	return presets
}

// LoadStages returns the stage list in the JSON file at stagesPath, or the
// stages of builtin preset presetID when stagesPath is empty.
func LoadStages(cfg config.Config, presetID, stagesPath string) ([]pipeline.Spec, error) {
	if stagesPath != "" {
		b, err := os.ReadFile(stagesPath)
		if err != nil {
			return nil, err
		}
		var specs []pipeline.Spec
		if err := json.Unmarshal(b, &specs); err != nil {
			return nil, fmt.Errorf("%s: %w", stagesPath, err)
		}
		return specs, nil
	}
	for _, p := range DefaultPresets(cfg) {
		if p.ID == presetID {
			return p.Stages, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", storage.ErrPresetNotFound, presetID)
}

type PresetService struct {
	store *storage.Store
	hub   *ws.Hub
	// ids that cannot be deleted even after a user override
	reserved map[string]bool
}

func NewPresetService(cfg config.Config, store *storage.Store, hub *ws.Hub) (*PresetService, error) {
	defaults := DefaultPresets(cfg)
	if err := store.SeedPresets(defaults); err != nil {
		return nil, err
	}
	if _, err := store.GetPreset(cfg.DefaultPreset); err != nil {
		return nil, fmt.Errorf("default preset %q: %w", cfg.DefaultPreset, err)
	}
	reserved := map[string]bool{cfg.DefaultPreset: true}
	for _, p := range defaults {
		reserved[p.ID] = true
	}
	return &PresetService{store: store, hub: hub, reserved: reserved}, nil
}

func (s *PresetService) List() []model.Preset {
	return s.store.ListPresets()
}

func (s *PresetService) Get(id string) (model.Preset, error) {
	return s.store.GetPreset(id)
}

// Upsert validates and stores p. An empty id gets a generated one. Saving
// over a builtin id turns it into a user preset.
func (s *PresetService) Upsert(p model.Preset) (model.Preset, error) {
	p.ID = strings.ToLower(strings.TrimSpace(p.ID))
	if p.ID == "" {
		p.ID = "preset-" + uuid.NewString()[:8]
	}
	if !presetIDPattern.MatchString(p.ID) {
		return model.Preset{}, fmt.Errorf("%w: invalid preset id %q", ErrInvalidRequest, p.ID)
	}
	if len(p.Stages) == 0 {
		return model.Preset{}, fmt.Errorf("%w: preset has no stages", ErrInvalidRequest)
	}
	// identity stands in for the real matrix, which may not exist yet
	if _, err := pipeline.Build(p.Stages, &ccm.Identity); err != nil {
		return model.Preset{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.ID
	}
	p.Builtin = false
	p.Updated = time.Now().UnixMilli()
	if err := s.store.UpsertPreset(p); err != nil {
		return model.Preset{}, err
	}
	s.hub.BroadcastEvent(model.NewEvent(model.EventPresetUpdated, p))
	return p, nil
}

// Delete removes a user preset. Builtin ids and the configured default are
// refused, including when a user has saved over them.
func (s *PresetService) Delete(id string) error {
	if s.reserved[id] {
		if _, err := s.store.GetPreset(id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %q", storage.ErrPresetBuiltin, id)
	}
	if err := s.store.DeletePreset(id); err != nil {
		return err
	}
	s.hub.BroadcastEvent(model.NewEvent(model.EventPresetUpdated, map[string]interface{}{"id": id, "deleted": true}))
	return nil
}

// IsNotFound reports whether err means a missing preset or job.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrPresetNotFound) || errors.Is(err, storage.ErrJobNotFound)
}
