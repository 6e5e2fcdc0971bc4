package pipeline

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"color-grade-agent/internal/frame"
)

// Source yields frames in order. Next returns io.EOF once exhausted.
type Source interface {
	Next() (*frame.Buffer, error)
}

// Sink receives processed frames in source order.
type Sink interface {
	Write(buf *frame.Buffer) error
}

// SliceSource serves frames from memory.
type SliceSource struct {
	Frames []*frame.Buffer
	pos    int
}

func (s *SliceSource) Next() (*frame.Buffer, error) {
	if s.pos >= len(s.Frames) {
		return nil, io.EOF
	}
	f := s.Frames[s.pos]
	s.pos++
	return f, nil
}

// SliceSink collects frames in memory.
type SliceSink struct {
	Frames []*frame.Buffer
}

func (s *SliceSink) Write(buf *frame.Buffer) error {
	s.Frames = append(s.Frames, buf)
	return nil
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(buf *frame.Buffer) error

func (f SinkFunc) Write(buf *frame.Buffer) error { return f(buf) }

// Run pulls every frame from src, processes it and writes it to sink in the
// order it was read. Up to the configured number of frame workers process
// frames concurrently; at most twice that many frames are in flight at once.
// The first error stops the stream and is returned with the count of frames
// already written.
func (p *Pipeline) Run(src Source, sink Sink) (int, error) {
	if p.frameWorkers <= 1 {
		return p.runSerial(src, sink)
	}

	type job struct {
		idx int
		buf *frame.Buffer
	}
	type result struct {
		idx int
		buf *frame.Buffer
		err error
	}

	workers := p.frameWorkers
	jobs := make(chan job, workers)
	results := make(chan result, workers)
	window := make(chan struct{}, 2*workers)
	stop := make(chan struct{})
	readErr := make(chan error, 1)

	go func() {
		defer close(jobs)
		for idx := 0; ; idx++ {
			select {
			case window <- struct{}{}:
			case <-stop:
				readErr <- nil
				return
			}
			buf, err := src.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				} else {
					err = fmt.Errorf("read frame %d: %w", idx, err)
				}
				readErr <- err
				return
			}
			select {
			case jobs <- job{idx: idx, buf: buf}:
			case <-stop:
				readErr <- nil
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				out, err := p.Process(j.buf)
				select {
				case results <- result{idx: j.idx, buf: out, err: err}:
				case <-stop:
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]*frame.Buffer)
	written := 0
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
			close(stop)
		}
	}
	for r := range results {
		if firstErr != nil {
			continue
		}
		if r.err != nil {
			fail(fmt.Errorf("frame %d: %w", r.idx, r.err))
			continue
		}
		pending[r.idx] = r.buf
		for {
			buf, ok := pending[written]
			if !ok {
				break
			}
			delete(pending, written)
			if err := sink.Write(buf); err != nil {
				fail(fmt.Errorf("write frame %d: %w", written, err))
				break
			}
			written++
			<-window
		}
	}
	if firstErr != nil {
		return written, firstErr
	}
	if err := <-readErr; err != nil {
		return written, err
	}
	return written, nil
}

func (p *Pipeline) runSerial(src Source, sink Sink) (int, error) {
	written := 0
	for {
		buf, err := src.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("read frame %d: %w", written, err)
		}
		out, err := p.Process(buf)
		if err != nil {
			return written, fmt.Errorf("frame %d: %w", written, err)
		}
		if err := sink.Write(out); err != nil {
			return written, fmt.Errorf("write frame %d: %w", written, err)
		}
		written++
	}
}
