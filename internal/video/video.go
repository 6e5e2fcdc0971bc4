//go:build gocv

// Package video adapts OpenCV video capture and writing to pipeline frame
// sources and sinks. It needs OpenCV and is built only with the gocv tag.
package video

import (
	"errors"
	"fmt"
	"io"

	"color-grade-agent/internal/frame"
	"gocv.io/x/gocv"
)

// DefaultCodec is the fourcc used when none is given.
const DefaultCodec = "mp4v"

var ErrUnsupportedFrame = errors.New("video: frame is not 8-bit 3-channel")

// Info describes an opened video.
type Info struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
	Frames int     `json:"frames"`
}

// Reader yields decoded frames as BGR buffers.
type Reader struct {
	cap  *gocv.VideoCapture
	mat  gocv.Mat
	info Info
}

func Open(path string) (*Reader, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return nil, fmt.Errorf("open %s: capture not opened", path)
	}
	return &Reader{
		cap: cap,
		mat: gocv.NewMat(),
		info: Info{
			Width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    cap.Get(gocv.VideoCaptureFPS),
			Frames: int(cap.Get(gocv.VideoCaptureFrameCount)),
		},
	}, nil
}

func (r *Reader) Info() Info { return r.info }

// Next decodes the next frame into a fresh buffer, or returns io.EOF.
func (r *Reader) Next() (*frame.Buffer, error) {
	if !r.cap.Read(&r.mat) || r.mat.Empty() {
		return nil, io.EOF
	}
	if r.mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: type %v", ErrUnsupportedFrame, r.mat.Type())
	}
	w, h := r.mat.Cols(), r.mat.Rows()
	return frame.Wrap(w, h, w*frame.Channels, r.mat.ToBytes())
}

func (r *Reader) Close() error {
	_ = r.mat.Close()
	return r.cap.Close()
}

// Writer encodes BGR buffers into a video file.
type Writer struct {
	vw *gocv.VideoWriter
}

func Create(path, codec string, fps float64, width, height int) (*Writer, error) {
	if codec == "" {
		codec = DefaultCodec
	}
	vw, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &Writer{vw: vw}, nil
}

func (w *Writer) Write(buf *frame.Buffer) error {
	data := buf.Data
	if buf.Stride != buf.Width*frame.Channels {
		data = make([]byte, 0, buf.Width*buf.Height*frame.Channels)
		for y := 0; y < buf.Height; y++ {
			data = append(data, buf.Row(y)...)
		}
	}
	mat, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC3, data[:buf.Width*buf.Height*frame.Channels])
	if err != nil {
		return err
	}
	defer mat.Close()
	return w.vw.Write(mat)
}

func (w *Writer) Close() error {
	return w.vw.Close()
}
