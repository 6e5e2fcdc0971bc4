package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/model"
	"color-grade-agent/internal/pipeline"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "state.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s, path
}

func TestStorePersistsCCM(t *testing.T) {
	s, path := newStore(t)
	if s.GetLatestCCM() != nil {
		t.Fatalf("fresh store has a matrix")
	}
	m := ccm.Matrix{{1.1, 0, 0}, {0, 0.9, 0.05}, {0, 0, 1}}
	if err := s.RecordCCM(model.CCMRecord{ID: "a", Matrix: m, Samples: 24}); err != nil {
		t.Fatalf("RecordCCM: %v", err)
	}
	if err := s.RecordCCM(model.CCMRecord{ID: "b", Matrix: ccm.Identity}); err != nil {
		t.Fatalf("RecordCCM: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	latest := reopened.GetLatestCCM()
	if latest == nil || latest.ID != "b" || latest.Matrix != ccm.Identity {
		t.Fatalf("latest = %+v", latest)
	}
	hist := reopened.ListCalibrations()
	if len(hist) != 2 || hist[0].ID != "b" || hist[1].Matrix != m {
		t.Fatalf("history = %+v", hist)
	}
}

func TestCalibrationHistoryIsBounded(t *testing.T) {
	s, _ := newStore(t)
	for i := 0; i < maxCalibrations+5; i++ {
		if err := s.RecordCCM(model.CCMRecord{Samples: i}); err != nil {
			t.Fatalf("RecordCCM: %v", err)
		}
	}
	hist := s.ListCalibrations()
	if len(hist) != maxCalibrations || hist[0].Samples != maxCalibrations+4 {
		t.Fatalf("history len %d, newest %d", len(hist), hist[0].Samples)
	}
}

func TestPresets(t *testing.T) {
	s, _ := newStore(t)
	builtin := model.Preset{ID: "ccm-only", Builtin: true, Stages: []pipeline.Spec{pipeline.CCM()}}
	if err := s.SeedPresets([]model.Preset{builtin}); err != nil {
		t.Fatalf("SeedPresets: %v", err)
	}
	custom := model.Preset{ID: "mine", Name: "Mine", Stages: []pipeline.Spec{{Kind: pipeline.KindGamma, Gamma: 0.8}}}
	if err := s.UpsertPreset(custom); err != nil {
		t.Fatalf("UpsertPreset: %v", err)
	}

	list := s.ListPresets()
	if len(list) != 2 || list[0].ID != "ccm-only" || list[1].ID != "mine" {
		t.Fatalf("list = %+v", list)
	}
	got, err := s.GetPreset("mine")
	if err != nil || len(got.Stages) != 1 || got.Stages[0].Gamma != 0.8 {
		t.Fatalf("GetPreset = %+v, %v", got, err)
	}

	// user overrides survive reseeding
	override := model.Preset{ID: "ccm-only", Name: "custom"}
	_ = s.UpsertPreset(override)
	_ = s.SeedPresets([]model.Preset{builtin})
	if p, _ := s.GetPreset("ccm-only"); p.Name != "custom" {
		t.Fatalf("override lost: %+v", p)
	}

	if err := s.DeletePreset("nope"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("got %v, want ErrPresetNotFound", err)
	}
	_ = s.SeedPresets([]model.Preset{{ID: "fixed", Builtin: true}})
	if err := s.DeletePreset("fixed"); !errors.Is(err, ErrPresetBuiltin) {
		t.Fatalf("got %v, want ErrPresetBuiltin", err)
	}
	if err := s.DeletePreset("mine"); err != nil {
		t.Fatalf("DeletePreset: %v", err)
	}
	if _, err := s.GetPreset("mine"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("deleted preset still present")
	}
}

func TestJobs(t *testing.T) {
	s, _ := newStore(t)
	if _, err := s.GetJob("x"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("got %v, want ErrJobNotFound", err)
	}
	job := model.GradeJob{ID: "x", Status: model.JobRunning, Total: 3, Outputs: []string{"a.png"}}
	if err := s.UpsertJob(job); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}
	got, err := s.GetJob("x")
	if err != nil || got.Status != model.JobRunning || len(got.Outputs) != 1 {
		t.Fatalf("GetJob = %+v, %v", got, err)
	}
	got.Outputs[0] = "changed"
	again, _ := s.GetJob("x")
	if again.Outputs[0] != "a.png" {
		t.Fatalf("GetJob returned shared slice")
	}
}
