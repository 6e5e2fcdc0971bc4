package api

import (
	"net/http"

	"color-grade-agent/internal/config"
	"color-grade-agent/internal/service"
	"color-grade-agent/internal/ws"
	"github.com/gorilla/websocket"
)

func NewRouter(
	cfg config.Config,
	hub *ws.Hub,
	jobs *ws.JobHub,
	calibSvc *service.CalibrationService,
	gradeSvc *service.GradeService,
	presetSvc *service.PresetService,
) http.Handler {
	h := &Handler{
		cfg:       cfg,
		hub:       hub,
		jobs:      jobs,
		calibSvc:  calibSvc,
		gradeSvc:  gradeSvc,
		presetSvc: presetSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/v1/ws", h.WebSocket)
	mux.HandleFunc("/v1/jobs/ws", h.JobWebSocket)
	mux.HandleFunc("/v1/jobs", h.Job)
	mux.HandleFunc("/v1/jobs/output", h.JobOutput)
	mux.HandleFunc("/v1/ccm/calibrate", h.Calibrate)
	mux.HandleFunc("/v1/ccm/fit", h.FitSamples)
	mux.HandleFunc("/v1/ccm/latest", h.LatestCCM)
	mux.HandleFunc("/v1/ccm/latest.csv", h.LatestCCMText)
	mux.HandleFunc("/v1/ccm/history", h.CCMHistory)
	mux.HandleFunc("/v1/ccm/reference", h.ReferenceChart)
	mux.HandleFunc("/v1/grade/image", h.GradeImage)
	mux.HandleFunc("/v1/grade/batch", h.GradeBatch)
	mux.HandleFunc("/v1/presets", h.Presets)

	return limitBody(cfg.MaxUploadSizeBytes, mux)
}

func limitBody(maxSize int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		next.ServeHTTP(w, r)
	})
}
