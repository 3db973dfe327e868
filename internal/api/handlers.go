package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/maltedev/regional-product-extractor/internal/jobs"
	"github.com/maltedev/regional-product-extractor/internal/models"
	"github.com/maltedev/regional-product-extractor/internal/resolver"
	"github.com/maltedev/regional-product-extractor/internal/scraper"
	"github.com/maltedev/regional-product-extractor/internal/session"
	"github.com/maltedev/regional-product-extractor/internal/sink"
)

type Handlers struct {
	extractor scraper.Extractor
	jobs      *jobs.Manager
	sink      sink.Sink
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewHandlers(extractor scraper.Extractor, jm *jobs.Manager, s sink.Sink, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		extractor: extractor,
		jobs:      jm,
		sink:      s,
		validate:  validator.New(),
		logger:    logger.With("component", "api"),
	}
}

// ExtractRequest asks for one URL. Text may carry a shared message instead
// of a bare URL; the first link in it is used.
type ExtractRequest struct {
	URL      string               `json:"url" validate:"required_without=Text,max=2048"`
	Text     string               `json:"text" validate:"required_without=URL,max=4096"`
	Region   *models.RegionConfig `json:"region,omitempty"`
	Device   string               `json:"device" validate:"omitempty,oneof=desktop mobile"`
	Category string               `json:"category" validate:"omitempty,max=100"`
	Priority int                  `json:"priority" validate:"min=0,max=10"`
}

type ExtractResponse struct {
	RequestID string                   `json:"request_id"`
	Result    *models.ExtractionResult `json:"result,omitempty"`
	Error     *models.ExtractionError  `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request) (ExtractRequest, string, bool) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return req, "", false
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return req, "", false
	}

	target := req.URL
	if target == "" {
		found, ok := resolver.ExtractURL(req.Text)
		if !ok {
			h.respondError(w, http.StatusBadRequest, "no URL found in text")
			return req, "", false
		}
		target = found
	}
	return req, target, true
}

// Extract runs an extraction synchronously and delivers the result to the sinks.
func (h *Handlers) Extract(w http.ResponseWriter, r *http.Request) {
	req, target, ok := h.decode(w, r)
	if !ok {
		return
	}

	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}

	opts := []scraper.Option{scraper.WithSnapshotPrefix(requestID)}
	if req.Device != "" {
		opts = append(opts, scraper.WithDevice(session.Device(req.Device)))
	}
	if req.Category != "" {
		opts = append(opts, scraper.WithCategory(req.Category))
	}

	result, err := h.extractor.Extract(r.Context(), target, req.Region, opts...)
	if err != nil {
		var ee *models.ExtractionError
		if !errors.As(err, &ee) {
			ee = models.NewError(models.ErrInternal, "extraction failed", err)
		}
		h.logger.Warn("extraction failed", "request_id", requestID, "url", target, "kind", ee.Kind, "error", err)
		h.respondJSON(w, statusFor(ee.Kind), ExtractResponse{RequestID: requestID, Result: ee.Partial, Error: ee})
		return
	}

	if h.sink != nil {
		if err := h.sink.Deliver(r.Context(), sink.Delivery{RequestID: requestID, Result: result}); err != nil {
			h.logger.Error("failed to deliver result", "request_id", requestID, "error", err)
		}
	}

	h.respondJSON(w, http.StatusOK, ExtractResponse{RequestID: requestID, Result: result})
}

// CreateJob queues an extraction and answers 202 with the job to poll.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "job queue disabled")
		return
	}
	req, target, ok := h.decode(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.Submit(jobs.Request{
		URL:      target,
		Region:   req.Region,
		Device:   req.Device,
		Category: req.Category,
		Priority: req.Priority,
	})
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "job queue unavailable")
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+job.ID)
	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "job queue disabled")
		return
	}
	job, err := h.jobs.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.ErrInvalidURL, models.ErrInvalidRegion:
		return http.StatusBadRequest
	case models.ErrRetriesExhausted, models.ErrBlockedByAntiAutomation:
		return http.StatusUnprocessableEntity
	case models.ErrNavigationTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}
