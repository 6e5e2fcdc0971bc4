package model

import (
	"time"

	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/pipeline"
)

type CCMSource string

const (
	SourceCalibrate CCMSource = "calibrate"
	SourceFit       CCMSource = "fit"
	SourceUpload    CCMSource = "upload"
)

type CCMRecord struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Source    CCMSource  `json:"source"`
	Matrix    ccm.Matrix `json:"matrix"`
	Samples   int        `json:"samples"`
	Report    ccm.Report `json:"report"`
	CreatedAt int64      `json:"created_at_unix_ms"`
}

type Preset struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Stages      []pipeline.Spec `json:"stages"`
	Builtin     bool            `json:"builtin"`
	Updated     int64           `json:"updated_unix_ms"`
}

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

type GradeJob struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PresetID  string    `json:"preset_id,omitempty"`
	Status    JobStatus `json:"status"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Outputs   []string  `json:"outputs"`
	Error     string    `json:"error,omitempty"`
	CreatedAt int64     `json:"created_at_unix_ms"`
	UpdatedAt int64     `json:"updated_at_unix_ms"`
}

type GradeResult struct {
	JobID     string   `json:"job_id,omitempty"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Format    string   `json:"format"`
	Stages    []string `json:"stages"`
	ElapsedMS int64    `json:"elapsed_ms"`
}

type StoredState struct {
	LatestCCM         *CCMRecord          `json:"latest_ccm,omitempty"`
	Calibrations      []CCMRecord         `json:"calibrations"`
	Presets           map[string]Preset   `json:"presets"`
	Jobs              map[string]GradeJob `json:"jobs"`
	LastUpdatedUnixMS int64               `json:"last_updated_unix_ms"`
	CreatedAt         time.Time           `json:"created_at"`
}

const (
	EventCCMFitted      = "ccm.fitted"
	EventGradeCompleted = "grade.completed"
	EventPresetUpdated  = "preset.updated"
	EventBatchProgress  = "batch.progress"
)

type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt int64       `json:"created_at_unix_ms"`
}

func NewEvent(typ string, payload interface{}) Event {
	return Event{Type: typ, Payload: payload, CreatedAt: time.Now().UnixMilli()}
}
