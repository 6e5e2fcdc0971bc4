package frame

import (
	"image"

	"github.com/disintegration/imaging"
)

// FromImage converts any decoded image to a packed BGR buffer. Alpha is
// dropped; pixels are taken from the non-premultiplied NRGBA form.
func FromImage(img image.Image) *Buffer {
	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	b, _ := New(w, h)
	for y := 0; y < h; y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+w*4]
		out := b.Row(y)
		for x := 0; x < w; x++ {
			out[x*3] = in[x*4+2]
			out[x*3+1] = in[x*4+1]
			out[x*3+2] = in[x*4]
		}
	}
	return b
}

// ToImage converts the buffer to an opaque NRGBA image.
func (b *Buffer) ToImage() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		in := b.Row(y)
		out := dst.Pix[y*dst.Stride : y*dst.Stride+b.Width*4]
		for x := 0; x < b.Width; x++ {
			out[x*4] = in[x*3+2]
			out[x*4+1] = in[x*3+1]
			out[x*4+2] = in[x*3]
			out[x*4+3] = 0xff
		}
	}
	return dst
}
