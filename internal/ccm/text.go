package ccm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadColors parses one 3-vector per line, comma separated, in buffer channel
// order. Blank lines and lines starting with '#' are skipped and a trailing
// comma is tolerated.
func ReadColors(r io.Reader) ([]Vec3, error) {
	out := make([]Vec3, 0, 24)
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		vals, err := parseRow(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(vals) != 3 {
			return nil, fmt.Errorf("line %d: %d values, want 3", line, len(vals))
		}
		out = append(out, Vec3{vals[0], vals[1], vals[2]})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadMatrix parses the three-line CSV form of a matrix.
func ReadMatrix(r io.Reader) (Matrix, error) {
	rows := make([][]float64, 0, 3)
	s := bufio.NewScanner(r)
	for s.Scan() {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		vals, err := parseRow(text)
		if err != nil {
			return Matrix{}, fmt.Errorf("%w: %v", ErrInvalidMatrix, err)
		}
		rows = append(rows, vals)
	}
	if err := s.Err(); err != nil {
		return Matrix{}, err
	}
	return MatrixFromRows(rows)
}

// WriteMatrix writes one row per line with a trailing comma after every value,
// using the shortest representation that parses back to the same float64.
func WriteMatrix(w io.Writer, m Matrix) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for i := range m {
		for j := range m[i] {
			bw.WriteString(strconv.FormatFloat(m[i][j], 'g', -1, 64))
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// LoadMatrixFile reads a matrix from path.
func LoadMatrixFile(path string) (Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return Matrix{}, err
	}
	defer f.Close()
	return ReadMatrix(f)
}

// SaveMatrixFile writes m to path, creating parent directories. The file is
// written to a temporary name first and renamed into place.
func SaveMatrixFile(path string, m Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := WriteMatrix(f, m); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadColorsFile reads a reference chart from path.
func LoadColorsFile(path string) ([]Vec3, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadColors(f)
}

func parseRow(text string) ([]float64, error) {
	parts := strings.Split(text, ",")
	if strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
