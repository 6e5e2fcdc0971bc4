package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"color-grade-agent/internal/model"
)

// maxCalibrations bounds the calibration history kept in the state file.
const maxCalibrations = 50

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrPresetBuiltin  = errors.New("builtin preset cannot be deleted")
	ErrJobNotFound    = errors.New("job not found")
)

type Store struct {
	path  string
	mu    sync.RWMutex
	state model.StoredState
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.state = defaultState()
			return s.saveLocked()
		}
		return err
	}
	if len(b) == 0 {
		s.state = defaultState()
		return s.saveLocked()
	}

	var state model.StoredState
	if err := json.Unmarshal(b, &state); err != nil {
		return err
	}
	mergeDefaults(&state)
	s.state = state
	return nil
}

func defaultState() model.StoredState {
	return model.StoredState{
		Calibrations: []model.CCMRecord{},
		Presets:      map[string]model.Preset{},
		Jobs:         map[string]model.GradeJob{},
		CreatedAt:    time.Now().UTC(),
	}
}

func mergeDefaults(state *model.StoredState) {
	if state.Calibrations == nil {
		state.Calibrations = []model.CCMRecord{}
	}
	if state.Presets == nil {
		state.Presets = map[string]model.Preset{}
	}
	if state.Jobs == nil {
		state.Jobs = map[string]model.GradeJob{}
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}
}

func (s *Store) saveLocked() error {
	s.state.LastUpdatedUnixMS = time.Now().UnixMilli()
	b, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) Snapshot() model.StoredState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, _ := json.Marshal(s.state)
	var cloned model.StoredState
	_ = json.Unmarshal(b, &cloned)
	return cloned
}

// RecordCCM makes rec the latest matrix and appends it to the history.
func (s *Store) RecordCCM(rec model.CCMRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LatestCCM = &rec
	s.state.Calibrations = append(s.state.Calibrations, rec)
	if n := len(s.state.Calibrations); n > maxCalibrations {
		s.state.Calibrations = append([]model.CCMRecord(nil), s.state.Calibrations[n-maxCalibrations:]...)
	}
	return s.saveLocked()
}

func (s *Store) GetLatestCCM() *model.CCMRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.LatestCCM == nil {
		return nil
	}
	rec := *s.state.LatestCCM
	return &rec
}

// ListCalibrations returns the history, newest first.
func (s *Store) ListCalibrations() []model.CCMRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.state.Calibrations)
	out := make([]model.CCMRecord, n)
	for i, rec := range s.state.Calibrations {
		out[n-1-i] = rec
	}
	return out
}

// SeedPresets inserts presets whose ids are not yet stored. Builtin presets
// already present are refreshed so upgrades pick up new defaults.
func (s *Store) SeedPresets(presets []model.Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, p := range presets {
		cur, ok := s.state.Presets[p.ID]
		if ok && !cur.Builtin {
			continue
		}
		s.state.Presets[p.ID] = p
		changed = true
	}
	if !changed {
		return nil
	}
	return s.saveLocked()
}

func (s *Store) UpsertPreset(p model.Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Presets[p.ID] = p
	return s.saveLocked()
}

func (s *Store) GetPreset(id string) (model.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.Presets[id]
	if !ok {
		return model.Preset{}, ErrPresetNotFound
	}
	return p, nil
}

func (s *Store) DeletePreset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.Presets[id]
	if !ok {
		return ErrPresetNotFound
	}
	if p.Builtin {
		return ErrPresetBuiltin
	}
	delete(s.state.Presets, id)
	return s.saveLocked()
}

// ListPresets returns presets sorted by id.
func (s *Store) ListPresets() []model.Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Preset, 0, len(s.state.Presets))
	for _, p := range s.state.Presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpsertJob(job model.GradeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Jobs[job.ID] = job
	return s.saveLocked()
}

func (s *Store) GetJob(id string) (model.GradeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.state.Jobs[id]
	if !ok {
		return model.GradeJob{}, ErrJobNotFound
	}
	job.Outputs = append([]string(nil), job.Outputs...)
	return job, nil
}
