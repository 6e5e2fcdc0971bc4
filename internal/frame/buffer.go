// Package frame holds the 8-bit BGR pixel buffer that every pipeline stage
// consumes and produces.
package frame

import (
	"errors"
	"fmt"
)

// Channels is the only channel count the pipeline supports.
const Channels = 3

var (
	// ErrShapeMismatch is returned when a buffer's declared width, height,
	// channel count or stride disagree with each other or with its data.
	ErrShapeMismatch = errors.New("frame: shape mismatch")
)

// Buffer is a row-major BGR image. Row y starts at Data[y*Stride]; bytes past
// Width*Channels in a row are padding and are never touched by transforms.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Stride   int
	Data     []byte
}

// New allocates a zeroed, tightly packed buffer.
func New(width, height int) (*Buffer, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrShapeMismatch, width, height)
	}
	stride := width * Channels
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: Channels,
		Stride:   stride,
		Data:     make([]byte, stride*height),
	}, nil
}

// Wrap validates an externally owned BGR slice and returns a buffer over it
// without copying.
func Wrap(width, height, stride int, data []byte) (*Buffer, error) {
	b := &Buffer{Width: width, Height: height, Channels: Channels, Stride: stride, Data: data}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate reports ErrShapeMismatch unless the declared shape is consistent.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrShapeMismatch)
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", ErrShapeMismatch, b.Width, b.Height)
	}
	if b.Channels != Channels {
		return fmt.Errorf("%w: %d channels, want %d", ErrShapeMismatch, b.Channels, Channels)
	}
	if b.Stride < b.Width*Channels {
		return fmt.Errorf("%w: stride %d < width %d * %d", ErrShapeMismatch, b.Stride, b.Width, Channels)
	}
	if b.Height > 0 {
		need := (b.Height-1)*b.Stride + b.Width*Channels
		if len(b.Data) < need {
			return fmt.Errorf("%w: data has %d bytes, need %d", ErrShapeMismatch, len(b.Data), need)
		}
	}
	return nil
}

// Empty reports whether the buffer holds no pixels.
func (b *Buffer) Empty() bool {
	return b.Width == 0 || b.Height == 0
}

// Row returns the pixel bytes of row y without padding.
func (b *Buffer) Row(y int) []byte {
	off := y * b.Stride
	return b.Data[off : off+b.Width*Channels]
}

// At returns the channels of pixel (x, y) in buffer order.
func (b *Buffer) At(x, y int) (blue, green, red uint8) {
	i := y*b.Stride + x*Channels
	return b.Data[i], b.Data[i+1], b.Data[i+2]
}

// Set writes pixel (x, y) in buffer order.
func (b *Buffer) Set(x, y int, blue, green, red uint8) {
	i := y*b.Stride + x*Channels
	b.Data[i] = blue
	b.Data[i+1] = green
	b.Data[i+2] = red
}

// Clone returns a deep copy with the same stride, padding included.
func (b *Buffer) Clone() *Buffer {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return &Buffer{Width: b.Width, Height: b.Height, Channels: b.Channels, Stride: b.Stride, Data: data}
}

// SameShape reports whether o can stand in for b as a stage output.
func (b *Buffer) SameShape(o *Buffer) bool {
	return o != nil && b.Width == o.Width && b.Height == o.Height && b.Channels == o.Channels
}
