// Package imageio decodes uploaded or on-disk images and encodes graded
// results, keeping the container format when it can be written back.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

var writable = map[string]imaging.Format{
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
	"tiff": imaging.TIFF,
	"bmp":  imaging.BMP,
}

// Decode reads an image and reports its format name ("jpeg", "png", "webp",
// ...). EXIF orientation is applied so chart photos come out upright.
func Decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// OutputFormat picks the format to write: want when set, else the input
// format, falling back to png for formats that can only be read.
func OutputFormat(want, input string) (string, error) {
	f := NormalizeFormat(want)
	if f == "" {
		f = NormalizeFormat(input)
		if _, ok := writable[f]; !ok {
			return "png", nil
		}
		return f, nil
	}
	if _, ok := writable[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, want)
	}
	return f, nil
}

// NormalizeFormat lowercases a format name or extension and maps aliases.
func NormalizeFormat(name string) string {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	switch f {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}

// Extension returns the file extension for a writable format.
func Extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "tiff":
		return ".tif"
	}
	return "." + format
}

// Encode writes img in format. quality applies to jpeg only.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	f, ok := writable[NormalizeFormat(format)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return imaging.Encode(w, img, f, imaging.JPEGQuality(quality))
}

// ContentType returns the MIME type of a writable format.
func ContentType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "tiff":
		return "image/tiff"
	case "bmp":
		return "image/bmp"
	}
	return "application/octet-stream"
}

// IsImageFile reports whether path has an extension Decode understands.
func IsImageFile(path string) bool {
	switch NormalizeFormat(filepath.Ext(path)) {
	case "jpeg", "png", "gif", "tiff", "bmp", "webp":
		return true
	}
	return false
}
