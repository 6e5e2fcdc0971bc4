// Package pipeline composes color transforms into an ordered chain and runs
// it over single images or a stream of frames.
package pipeline

import (
	"fmt"
	"time"

	"color-grade-agent/internal/frame"
	"color-grade-agent/internal/parallel"
)

// StageHook is called after each stage completes on a buffer.
type StageHook func(index int, name string, elapsed time.Duration)

// Pipeline is an immutable ordered list of stages. It is safe for concurrent
// use as long as its stages are.
type Pipeline struct {
	stages       []Stage
	pool         *parallel.Pool
	frameWorkers int
	hook         StageHook
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPool runs per-pixel work of every stage on pool.
func WithPool(pool *parallel.Pool) Option {
	return func(p *Pipeline) { p.pool = pool }
}

// WithFrameWorkers sets how many frames Run processes concurrently.
func WithFrameWorkers(n int) Option {
	return func(p *Pipeline) { p.frameWorkers = n }
}

// WithStageHook installs a callback invoked after every stage.
func WithStageHook(h StageHook) Option {
	return func(p *Pipeline) { p.hook = h }
}

// New builds a pipeline running stages in the given order.
func New(stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:       append([]Stage(nil), stages...),
		frameWorkers: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.frameWorkers < 1 {
		p.frameWorkers = 1
	}
	return p
}

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Names returns the stage names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Process runs every stage over buf in order and returns the final buffer.
// Stages may work in place, so buf must not be used by the caller afterwards
// except through the returned value. An empty pipeline returns buf unchanged.
func (p *Pipeline) Process(buf *frame.Buffer) (*frame.Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	cur := buf
	for i, s := range p.stages {
		start := time.Now()
		out, err := s.Apply(cur, p.pool)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, s.Name(), err)
		}
		if !out.SameShape(cur) {
			return nil, fmt.Errorf("stage %d (%s): %w", i, s.Name(), frame.ErrShapeMismatch)
		}
		if p.hook != nil {
			p.hook(i, s.Name(), time.Since(start))
		}
		cur = out
	}
	return cur, nil
}
