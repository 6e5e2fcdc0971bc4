// Command gradeimages runs every image under a directory through a grading
// pipeline and writes the results to a mirror directory tree.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/config"
	"color-grade-agent/internal/frame"
	"color-grade-agent/internal/imageio"
	"color-grade-agent/internal/parallel"
	"color-grade-agent/internal/pipeline"
	"color-grade-agent/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	inDir := flag.String("in", "", "input directory")
	outDir := flag.String("out", "", "output directory")
	presetID := flag.String("preset", cfg.DefaultPreset, "builtin preset id")
	stagesPath := flag.String("stages", "", "JSON file with a stage list, overrides -preset")
	ccmPath := flag.String("ccm", cfg.CCMPath, "CSV color correction matrix")
	format := flag.String("format", "", "output format (jpeg, png, tiff, bmp, gif); empty keeps the input's")
	quality := flag.Int("quality", cfg.JPEGQuality, "jpeg quality")
	pixelWorkers := flag.Int("workers", cfg.PixelWorkers, "pixel workers per image, 0 for one per CPU")
	frameWorkers := flag.Int("frames", cfg.FrameWorkers, "images processed concurrently")
	verbose := flag.Bool("v", false, "log per-stage timings")
	flag.Parse()

	if *inDir == "" || *outDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	specs, err := service.LoadStages(cfg, *presetID, *stagesPath)
	if err != nil {
		log.Fatalf("load stages: %v", err)
	}
	var m *ccm.Matrix
	if pipeline.NeedsMatrix(specs) {
		loaded, err := ccm.LoadMatrixFile(*ccmPath)
		if err != nil {
			log.Fatalf("load ccm: %v", err)
		}
		m = &loaded
	}
	stages, err := pipeline.Build(specs, m)
	if err != nil {
		log.Fatalf("build pipeline: %v", err)
	}

	files, err := listImages(*inDir)
	if err != nil {
		log.Fatalf("list images: %v", err)
	}
	if len(files) == 0 {
		log.Printf("no images under %s", *inDir)
		return
	}

	pool := parallel.NewPool(*pixelWorkers)
	defer pool.Close()
	opts := []pipeline.Option{pipeline.WithPool(pool), pipeline.WithFrameWorkers(*frameWorkers)}
	if *verbose {
		opts = append(opts, pipeline.WithStageHook(func(i int, name string, d time.Duration) {
			log.Printf("  stage %d %s: %dms", i, name, d.Milliseconds())
		}))
	}
	p := pipeline.New(stages, opts...)

	src := &dirSource{root: *inDir, files: files, want: *format, formats: make([]string, len(files))}
	idx := 0
	sink := pipeline.SinkFunc(func(buf *frame.Buffer) error {
		rel := files[idx]
		dst := filepath.Join(*outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+imageio.Extension(src.formats[idx]))
		if err := writeImage(dst, buf, src.formats[idx], *quality); err != nil {
			return err
		}
		log.Printf("graded %s -> %s", rel, dst)
		idx++
		return nil
	})

	start := time.Now()
	n, err := p.Run(src, sink)
	if err != nil {
		log.Fatalf("grade: %v (%d of %d written)", err, n, len(files))
	}
	log.Printf("graded %d images with [%s] in %dms", n, strings.Join(p.Names(), ", "), time.Since(start).Milliseconds())
}

func listImages(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageio.IsImageFile(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	sort.Strings(out)
	return out, err
}

type dirSource struct {
	root    string
	files   []string
	want    string
	formats []string
	next    int
}

func (s *dirSource) Next() (*frame.Buffer, error) {
	if s.next >= len(s.files) {
		return nil, io.EOF
	}
	rel := s.files[s.next]
	b, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		return nil, err
	}
	img, format, err := imageio.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	out, err := imageio.OutputFormat(s.want, format)
	if err != nil {
		return nil, err
	}
	s.formats[s.next] = out
	s.next++
	return frame.FromImage(img), nil
}

func writeImage(path string, buf *frame.Buffer, format string, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imageio.Encode(f, buf.ToImage(), format, quality); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
