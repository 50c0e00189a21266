package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/songify/reporter/internal/config"
	"github.com/songify/reporter/internal/metrics"
	"github.com/songify/reporter/internal/models"
	"github.com/songify/reporter/internal/services"
)

// ReportHandler serves report submission, the scrub dry run and report lookups.
type ReportHandler struct {
	reports *services.ReportService
	cfg     *config.Config
	metrics *metrics.Metrics
}

// NewReportHandler creates a ReportHandler backed by the report service.
// m may be nil.
func NewReportHandler(reports *services.ReportService, cfg *config.Config, m *metrics.Metrics) *ReportHandler {
	return &ReportHandler{reports: reports, cfg: cfg, metrics: m}
}

// Submit scrubs and stores a report. The response carries the reference a
// user can quote to support.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitReportRequest
	if status, ok := decodeJSON(w, r, h.cfg.MaxReportBytes, &req); !ok {
		h.metrics.ReportRejected(rejectReason(status))
		return
	}

	in := services.SubmitInput{
		Project:     req.Project,
		Level:       req.Level,
		Message:     req.Message,
		ScrubFields: req.ScrubFields,
	}
	if req.Params != nil {
		in.Params = req.Params
	}

	report, err := h.reports.Submit(r.Context(), in)
	if err != nil {
		h.metrics.ReportRejected(rejectReason(writeServiceError(r.Context(), w, err)))
		return
	}
	h.metrics.ReportSubmitted(report.Project, report.Level)

	writeJSON(w, http.StatusCreated, models.SubmitReportResponse{
		ID:            report.ID,
		Reference:     report.Reference,
		SentryEventID: report.SentryEventID,
	})
}

// Scrub returns what Submit would store for the given params without storing it.
func (h *ReportHandler) Scrub(w http.ResponseWriter, r *http.Request) {
	var req models.ScrubRequest
	if _, ok := decodeJSON(w, r, h.cfg.MaxReportBytes, &req); !ok {
		return
	}
	h.metrics.ScrubRequested()

	var params any
	if req.Params != nil {
		params = req.Params
	}

	scrubbed, err := h.reports.Scrub(params, req.ScrubFields)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ScrubResponse{Params: scrubbed})
}

// List returns the newest reports of a project. ?limit= is capped by the
// configured list limit.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	limit := h.cfg.ReportListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	reports, err := h.reports.List(r.Context(), project, limit)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	resp := models.ListReportsResponse{Reports: make([]models.ReportResponse, 0, len(reports))}
	for _, report := range reports {
		resp.Reports = append(resp.Reports, toReportResponse(report))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single report by ID.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

// GetByReference returns a single report by its human-readable reference.
func (h *ReportHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

// Delete removes a report. Admin only.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.reports.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func rejectReason(status int) string {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusBadRequest:
		return "invalid"
	default:
		return "internal"
	}
}

func toReportResponse(r *services.Report) models.ReportResponse {
	return models.ReportResponse{
		ID:            r.ID,
		Reference:     r.Reference,
		Project:       r.Project,
		Level:         r.Level,
		Message:       r.Message,
		Params:        r.Params,
		SentryEventID: r.SentryEventID,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}
