package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/config"
	"color-grade-agent/internal/frame"
	"color-grade-agent/internal/imageio"
	"color-grade-agent/internal/model"
	"color-grade-agent/internal/parallel"
	"color-grade-agent/internal/pipeline"
	"color-grade-agent/internal/storage"
	"color-grade-agent/internal/ws"
	"github.com/google/uuid"
)

// GradeRequest selects the pipeline for a grade. Stages, when set, take
// precedence over PresetID; with neither the configured default preset is
// used. Format is the output format, empty to keep the input's.
type GradeRequest struct {
	UserID   string          `json:"user_id"`
	PresetID string          `json:"preset_id,omitempty"`
	Stages   []pipeline.Spec `json:"stages,omitempty"`
	Format   string          `json:"format,omitempty"`
}

// BatchInput is one named image of a batch.
type BatchInput struct {
	Name string
	Data []byte
}

type GradeService struct {
	cfg     config.Config
	store   *storage.Store
	hub     *ws.Hub
	jobs    *ws.JobHub
	calib   *CalibrationService
	presets *PresetService
	pool    *parallel.Pool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGradeService(
	cfg config.Config,
	store *storage.Store,
	hub *ws.Hub,
	jobs *ws.JobHub,
	calib *CalibrationService,
	presets *PresetService,
	pool *parallel.Pool,
) *GradeService {
	ctx, cancel := context.WithCancel(context.Background())
	return &GradeService{
		cfg:     cfg,
		store:   store,
		hub:     hub,
		jobs:    jobs,
		calib:   calib,
		presets: presets,
		pool:    pool,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close cancels running batches and waits for them to stop.
func (s *GradeService) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every batch started so far has finished.
func (s *GradeService) Wait() {
	s.wg.Wait()
}

// Pipeline resolves req to a runnable pipeline and a label naming its source.
func (s *GradeService) Pipeline(req GradeRequest, opts ...pipeline.Option) (*pipeline.Pipeline, string, error) {
	specs := req.Stages
	label := "custom"
	if len(specs) == 0 {
		id := req.PresetID
		if id == "" {
			id = s.cfg.DefaultPreset
		}
		p, err := s.presets.Get(id)
		if err != nil {
			return nil, "", fmt.Errorf("preset %q: %w", id, err)
		}
		specs = p.Stages
		label = p.ID
	}

	var m *ccm.Matrix
	if pipeline.NeedsMatrix(specs) {
		latest, err := s.calib.LatestMatrix()
		if err != nil {
			return nil, "", err
		}
		m = &latest
	}
	stages, err := pipeline.Build(specs, m)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	opts = append([]pipeline.Option{pipeline.WithPool(s.pool)}, opts...)
	return pipeline.New(stages, opts...), label, nil
}

// GradeImage runs one encoded image through the pipeline selected by req and
// returns the encoded result.
func (s *GradeService) GradeImage(req GradeRequest, data []byte) ([]byte, model.GradeResult, error) {
	start := time.Now()
	img, inFormat, err := imageio.Decode(data)
	if err != nil {
		return nil, model.GradeResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	outFormat, err := imageio.OutputFormat(req.Format, inFormat)
	if err != nil {
		return nil, model.GradeResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p, label, err := s.Pipeline(req)
	if err != nil {
		return nil, model.GradeResult{}, err
	}

	out, err := p.Process(frame.FromImage(img))
	if err != nil {
		return nil, model.GradeResult{}, err
	}
	var b bytes.Buffer
	if err := imageio.Encode(&b, out.ToImage(), outFormat, s.cfg.JPEGQuality); err != nil {
		return nil, model.GradeResult{}, err
	}

	res := model.GradeResult{
		Width:     out.Width,
		Height:    out.Height,
		Format:    outFormat,
		Stages:    p.Names(),
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	log.Printf("graded %dx%d image with %s in %dms", res.Width, res.Height, label, res.ElapsedMS)
	s.hub.BroadcastEvent(model.NewEvent(model.EventGradeCompleted, res))
	return b.Bytes(), res, nil
}

// StartBatch validates the request, records a queued job and grades the
// inputs in the background. Progress is published on the job hub.
func (s *GradeService) StartBatch(req GradeRequest, inputs []BatchInput) (model.GradeJob, error) {
	job, p, err := s.prepareBatch(req, inputs)
	if err != nil {
		return model.GradeJob{}, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runBatch(job, p, req.Format, inputs)
	}()
	return job, nil
}

// GradeBatch is StartBatch run to completion on the caller's goroutine.
func (s *GradeService) GradeBatch(req GradeRequest, inputs []BatchInput) (model.GradeJob, error) {
	job, p, err := s.prepareBatch(req, inputs)
	if err != nil {
		return model.GradeJob{}, err
	}
	job = s.runBatch(job, p, req.Format, inputs)
	if job.Status == model.JobFailed {
		return job, errors.New(job.Error)
	}
	return job, nil
}

func (s *GradeService) prepareBatch(req GradeRequest, inputs []BatchInput) (model.GradeJob, *pipeline.Pipeline, error) {
	if len(inputs) == 0 {
		return model.GradeJob{}, nil, fmt.Errorf("%w: batch has no images", ErrInvalidRequest)
	}
	if req.Format != "" {
		if _, err := imageio.OutputFormat(req.Format, ""); err != nil {
			return model.GradeJob{}, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	p, label, err := s.Pipeline(req, pipeline.WithFrameWorkers(s.cfg.FrameWorkers))
	if err != nil {
		return model.GradeJob{}, nil, err
	}
	now := time.Now().UnixMilli()
	job := model.GradeJob{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		PresetID:  label,
		Status:    model.JobQueued,
		Total:     len(inputs),
		Outputs:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.UpsertJob(job); err != nil {
		return model.GradeJob{}, nil, err
	}
	return job, p, nil
}

// batchSource decodes inputs lazily, remembering each one's output format.
type batchSource struct {
	ctx     context.Context
	inputs  []BatchInput
	want    string
	formats []string
	next    int
}

func (b *batchSource) Next() (*frame.Buffer, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	if b.next >= len(b.inputs) {
		return nil, io.EOF
	}
	in := b.inputs[b.next]
	img, format, err := imageio.Decode(in.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Name, err)
	}
	out, err := imageio.OutputFormat(b.want, format)
	if err != nil {
		return nil, err
	}
	b.formats[b.next] = out
	b.next++
	return frame.FromImage(img), nil
}

func (s *GradeService) runBatch(job model.GradeJob, p *pipeline.Pipeline, format string, inputs []BatchInput) model.GradeJob {
	start := time.Now()
	dir := filepath.Join(s.cfg.OutputDir, job.ID)

	src := &batchSource{ctx: s.ctx, inputs: inputs, want: format, formats: make([]string, len(inputs))}
	idx := 0
	sink := pipeline.SinkFunc(func(buf *frame.Buffer) error {
		name := outputName(idx, inputs[idx].Name, src.formats[idx])
		if err := s.writeOutput(filepath.Join(dir, name), buf, src.formats[idx]); err != nil {
			return err
		}
		idx++
		job.Done = idx
		job.Outputs = append(job.Outputs, name)
		s.updateJob(&job)
		return nil
	})

	job.Status = model.JobRunning
	s.updateJob(&job)
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		_, err = p.Run(src, sink)
	}
	if err != nil {
		job.Status = model.JobFailed
		job.Error = err.Error()
		log.Printf("batch %s failed after %d/%d images: %v", job.ID, job.Done, job.Total, err)
	} else {
		job.Status = model.JobDone
		log.Printf("batch %s graded %d images in %dms", job.ID, job.Done, time.Since(start).Milliseconds())
	}
	s.updateJob(&job)
	s.jobs.Finish(job.ID)
	s.hub.BroadcastEvent(model.NewEvent(model.EventGradeCompleted, job))
	return job
}

func (s *GradeService) updateJob(job *model.GradeJob) {
	job.UpdatedAt = time.Now().UnixMilli()
	if err := s.store.UpsertJob(*job); err != nil {
		log.Printf("save job %s: %v", job.ID, err)
	}
	s.jobs.Publish(job.ID, model.NewEvent(model.EventBatchProgress, *job))
}

func (s *GradeService) writeOutput(path string, buf *frame.Buffer, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imageio.Encode(f, buf.ToImage(), format, s.cfg.JPEGQuality); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func outputName(idx int, name, format string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	return fmt.Sprintf("%04d_%s%s", idx, stem, imageio.Extension(format))
}

// Job returns a batch job record.
func (s *GradeService) Job(id string) (model.GradeJob, error) {
	return s.store.GetJob(id)
}

// OutputPath resolves a file produced by a batch job.
func (s *GradeService) OutputPath(jobID, name string) (string, error) {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return "", err
	}
	for _, out := range job.Outputs {
		if out == name {
			return filepath.Join(s.cfg.OutputDir, job.ID, out), nil
		}
	}
	return "", fmt.Errorf("%w: %s has no output %q", storage.ErrJobNotFound, jobID, name)
}
