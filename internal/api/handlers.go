package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"color-grade-agent/internal/adjust"
	"color-grade-agent/internal/ccm"
	"color-grade-agent/internal/config"
	"color-grade-agent/internal/imageio"
	"color-grade-agent/internal/model"
	"color-grade-agent/internal/pipeline"
	"color-grade-agent/internal/sampling"
	"color-grade-agent/internal/service"
	"color-grade-agent/internal/storage"
	"color-grade-agent/internal/ws"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Handler struct {
	cfg       config.Config
	hub       *ws.Hub
	jobs      *ws.JobHub
	calibSvc  *service.CalibrationService
	gradeSvc  *service.GradeService
	presetSvc *service.PresetService
	upgrader  websocket.Upgrader
}

type apiError struct {
	Error string `json:"error"`
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, errors.New("websocket requires GET"))
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		writeErr(w, http.StatusBadRequest, errors.New("websocket upgrade required"))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: remote=%s uri=%s err=%v", r.RemoteAddr, r.RequestURI, err)
		return
	}
	client := ws.NewClient(h.hub, conn, eventTypes(r.URL.Query().Get("events"))...)
	h.hub.Register(client)
	h.hub.BroadcastEvent(model.NewEvent("ws.client_connected", map[string]string{"id": uuid.NewString()}))
	go client.WritePump()
	go client.ReadPump()
}

// eventTypes splits a comma-separated events query value.
func eventTypes(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (h *Handler) JobWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, errors.New("websocket requires GET"))
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		writeErr(w, http.StatusBadRequest, errors.New("websocket upgrade required"))
		return
	}
	jobID := strings.TrimSpace(r.URL.Query().Get("job_id"))
	if jobID == "" {
		writeErr(w, http.StatusBadRequest, errors.New("job_id required"))
		return
	}
	job, err := h.gradeSvc.Job(jobID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("job ws upgrade failed: remote=%s uri=%s err=%v", r.RemoteAddr, r.RequestURI, err)
		return
	}
	client := h.jobs.Subscribe(jobID, conn)
	go client.WritePump()
	go client.ReadPump()
	// replay the current state; a finished job closes right away
	if latest, err := h.gradeSvc.Job(jobID); err == nil {
		job = latest
	}
	h.jobs.Publish(jobID, model.NewEvent(model.EventBatchProgress, job))
	if job.Status == model.JobDone || job.Status == model.JobFailed {
		h.jobs.Finish(jobID)
	}
}

func (h *Handler) Calibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSizeBytes); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	userID := firstOr(r.FormValue("user_id"), userIDFromRequest(r))

	var regions []sampling.Region
	if raw := strings.TrimSpace(r.FormValue("regions")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &regions); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
	}
	b, err := readUpload(r, "image")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.calibSvc.Calibrate(userID, b, regions)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) FitSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		UserID    string     `json:"user_id"`
		Measured  []ccm.Vec3 `json:"measured"`
		Reference []ccm.Vec3 `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" {
		req.UserID = userIDFromRequest(r)
	}
	rec, err := h.calibSvc.FitSamples(req.UserID, req.Measured, req.Reference)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) LatestCCM(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rec := h.calibSvc.Latest()
	if rec == nil {
		writeErr(w, http.StatusNotFound, service.ErrNoCCM)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// LatestCCMText serves the latest matrix as CSV on GET and replaces it from a
// CSV body on PUT.
func (h *Handler) LatestCCMText(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m, err := h.calibSvc.LatestMatrix()
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		if err := ccm.WriteMatrix(w, m); err != nil {
			log.Printf("write ccm csv: %v", err)
		}
	case http.MethodPut:
		rec, err := h.calibSvc.ImportMatrix(userIDFromRequest(r), r.Body)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) CCMHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"calibrations": h.calibSvc.History()})
}

func (h *Handler) ReferenceChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"colors": h.calibSvc.Reference()})
}

func (h *Handler) GradeImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSizeBytes); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	req, err := gradeRequestFromForm(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	b, err := readUpload(r, "image")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	out, res, err := h.gradeSvc.GradeImage(req, b)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	w.Header().Set("Content-Type", imageio.ContentType(res.Format))
	w.Header().Set("X-Stages", strings.Join(res.Stages, ","))
	w.Header().Set("X-Elapsed-MS", strconv.FormatInt(res.ElapsedMS, 10))
	_, _ = w.Write(out)
}

func (h *Handler) GradeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSizeBytes); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	req, err := gradeRequestFromForm(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		writeErr(w, http.StatusBadRequest, errors.New("images required"))
		return
	}
	inputs := make([]service.BatchInput, 0, len(headers))
	for _, fh := range headers {
		b, err := readFileHeader(fh)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		inputs = append(inputs, service.BatchInput{Name: fh.Filename, Data: b})
	}

	job, err := h.gradeSvc.StartBatch(req, inputs)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	job, err := h.gradeSvc.Job(strings.TrimSpace(r.URL.Query().Get("id")))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) JobOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	path, err := h.gradeSvc.OutputPath(q.Get("id"), q.Get("name"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (h *Handler) Presets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
			p, err := h.presetSvc.Get(id)
			if err != nil {
				writeServiceErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, p)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"presets": h.presetSvc.List()})
	case http.MethodPost:
		var p model.Preset
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		saved, err := h.presetSvc.Upsert(p)
		if err != nil {
			writeServiceErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	case http.MethodDelete:
		if err := h.presetSvc.Delete(strings.TrimSpace(r.URL.Query().Get("id"))); err != nil {
			writeServiceErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func gradeRequestFromForm(r *http.Request) (service.GradeRequest, error) {
	req := service.GradeRequest{
		UserID:   firstOr(r.FormValue("user_id"), userIDFromRequest(r)),
		PresetID: strings.TrimSpace(r.FormValue("preset_id")),
		Format:   strings.TrimSpace(r.FormValue("format")),
	}
	if raw := strings.TrimSpace(r.FormValue("stages")); raw != "" {
		var specs []pipeline.Spec
		if err := json.Unmarshal([]byte(raw), &specs); err != nil {
			return req, err
		}
		req.Stages = specs
	}
	return req, nil
}

func readUpload(r *http.Request, field string) ([]byte, error) {
	f, fh, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	_ = f.Close()
	return readFileHeader(fh)
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	if err := validateImageUpload(fh); err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func validateImageUpload(header *multipart.FileHeader) error {
	if !imageio.IsImageFile(header.Filename) {
		return errors.New("unsupported image format")
	}
	return nil
}

func writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case service.IsNotFound(err):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrNoCCM), errors.Is(err, storage.ErrPresetBuiltin):
		writeErr(w, http.StatusConflict, err)
	case errors.Is(err, ccm.ErrDegenerateFit):
		writeErr(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, sampling.ErrROITooSmall),
		errors.Is(err, sampling.ErrROIOutside),
		errors.Is(err, ccm.ErrSampleMismatch),
		errors.Is(err, ccm.ErrInvalidMatrix),
		errors.Is(err, adjust.ErrInvalidBand),
		errors.Is(err, imageio.ErrUnsupportedFormat):
		writeErr(w, http.StatusBadRequest, err)
	default:
		log.Printf("request failed: %v", err)
		writeErr(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, apiError{Error: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func firstOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func userIDFromRequest(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v != "" {
		return v
	}
	return "anon"
}
