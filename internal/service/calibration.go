package service

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/config"
	"color-grade-agent/internal/imageio"
	"color-grade-agent/internal/model"
	"color-grade-agent/internal/sampling"
	"color-grade-agent/internal/storage"
	"color-grade-agent/internal/ws"
	"github.com/google/uuid"
)

// chartRows and chartCols describe the patch layout of the reference chart
// when no regions are supplied.
const (
	chartRows = 4
	chartCols = 6
)

type CalibrationService struct {
	cfg       config.Config
	store     *storage.Store
	hub       *ws.Hub
	reference []ccm.Vec3
}

// NewCalibrationService loads the reference chart and, when the store holds no
// matrix yet, imports the one saved at cfg.CCMPath.
func NewCalibrationService(cfg config.Config, store *storage.Store, hub *ws.Hub) (*CalibrationService, error) {
	reference := ccm.ReferenceChart()
	if cfg.ReferenceChartPath != "" {
		colors, err := ccm.LoadColorsFile(cfg.ReferenceChartPath)
		if err != nil {
			return nil, fmt.Errorf("load reference chart: %w", err)
		}
		reference = colors
	}
	s := &CalibrationService{cfg: cfg, store: store, hub: hub, reference: reference}

	if store.GetLatestCCM() == nil && cfg.CCMPath != "" {
		m, err := ccm.LoadMatrixFile(cfg.CCMPath)
		switch {
		case err == nil:
			rec := model.CCMRecord{
				ID:        uuid.NewString(),
				UserID:    "system",
				Source:    model.SourceUpload,
				Matrix:    m,
				CreatedAt: time.Now().UnixMilli(),
			}
			if err := store.RecordCCM(rec); err != nil {
				return nil, err
			}
			log.Printf("imported ccm from %s", cfg.CCMPath)
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("load ccm: %w", err)
		}
	}
	return s, nil
}

// Reference returns a copy of the reference chart colors in buffer order.
func (s *CalibrationService) Reference() []ccm.Vec3 {
	return append([]ccm.Vec3(nil), s.reference...)
}

// Calibrate measures the chart patches in a photo and fits a matrix mapping
// them onto the reference chart. With no regions the chart is assumed to
// fill the frame in its standard grid.
func (s *CalibrationService) Calibrate(userID string, imageBytes []byte, regions []sampling.Region) (model.CCMRecord, error) {
	img, _, err := imageio.Decode(imageBytes)
	if err != nil {
		return model.CCMRecord{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(regions) == 0 {
		if len(s.reference) != chartRows*chartCols {
			return model.CCMRecord{}, fmt.Errorf("%w: regions are required for a %d-color reference", ErrInvalidRequest, len(s.reference))
		}
		b := img.Bounds()
		inset := min(b.Dx()/chartCols, b.Dy()/chartRows) / 4
		regions = sampling.Grid(b, chartRows, chartCols, inset)
	}
	measured, err := sampling.Measure(img, regions, s.cfg.MinROISize)
	if err != nil {
		return model.CCMRecord{}, err
	}
	return s.fit(userID, model.SourceCalibrate, measured, s.reference)
}

// FitSamples fits a matrix from colors measured elsewhere. reference may be
// nil to use the configured chart.
func (s *CalibrationService) FitSamples(userID string, measured, reference []ccm.Vec3) (model.CCMRecord, error) {
	if reference == nil {
		reference = s.reference
	}
	return s.fit(userID, model.SourceFit, measured, reference)
}

// ImportMatrix stores a matrix read from its CSV form.
func (s *CalibrationService) ImportMatrix(userID string, r io.Reader) (model.CCMRecord, error) {
	m, err := ccm.ReadMatrix(r)
	if err != nil {
		return model.CCMRecord{}, err
	}
	rec := model.CCMRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    model.SourceUpload,
		Matrix:    m,
		CreatedAt: time.Now().UnixMilli(),
	}
	return rec, s.record(rec)
}

func (s *CalibrationService) fit(userID string, source model.CCMSource, measured, reference []ccm.Vec3) (model.CCMRecord, error) {
	samples, err := ccm.Pair(measured, reference)
	if err != nil {
		return model.CCMRecord{}, err
	}
	start := time.Now()
	m, err := ccm.Fit(samples)
	if err != nil {
		return model.CCMRecord{}, err
	}
	rec := model.CCMRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    source,
		Matrix:    m,
		Samples:   len(samples),
		Report:    ccm.Evaluate(m, samples),
		CreatedAt: time.Now().UnixMilli(),
	}
	log.Printf("ccm fitted from %d samples in %dms: mean dE00 %.2f -> %.2f",
		len(samples), time.Since(start).Milliseconds(), rec.Report.MeanBefore, rec.Report.MeanAfter)
	return rec, s.record(rec)
}

func (s *CalibrationService) record(rec model.CCMRecord) error {
	if err := s.store.RecordCCM(rec); err != nil {
		return err
	}
	if s.cfg.CCMPath != "" {
		if err := ccm.SaveMatrixFile(s.cfg.CCMPath, rec.Matrix); err != nil {
			return fmt.Errorf("save ccm: %w", err)
		}
	}
	s.hub.BroadcastEvent(model.NewEvent(model.EventCCMFitted, rec))
	return nil
}

// Latest returns the most recent matrix record, or nil.
func (s *CalibrationService) Latest() *model.CCMRecord {
	return s.store.GetLatestCCM()
}

// LatestMatrix returns the most recent matrix or ErrNoCCM.
func (s *CalibrationService) LatestMatrix() (ccm.Matrix, error) {
	rec := s.store.GetLatestCCM()
	if rec == nil {
		return ccm.Matrix{}, ErrNoCCM
	}
	return rec.Matrix, nil
}

// History returns stored calibrations, newest first.
func (s *CalibrationService) History() []model.CCMRecord {
	return s.store.ListCalibrations()
}
