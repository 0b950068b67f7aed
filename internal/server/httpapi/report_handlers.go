package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/car2chain/inspections/internal/common"
	"github.com/car2chain/inspections/internal/server/models"
	"github.com/car2chain/inspections/internal/server/repositories/reports"
	"github.com/car2chain/inspections/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type imagePayload struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type attachmentResponse struct {
	ID          string `json:"id"`
	Position    int    `json:"position"`
	StorageKey  string `json:"storageKey"`
	ContentHash string `json:"contentHash"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mimeType"`
	URL         string `json:"url,omitempty"`
}

type reportResponse struct {
	ID          string               `json:"id"`
	CreatedBy   string               `json:"createdBy"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	Fields      json.RawMessage      `json:"fields"`
	Attachments []attachmentResponse `json:"attachments"`
}

func (s *Server) renderReport(r *models.InspectionReport) reportResponse {
	resp := reportResponse{
		ID:          r.ID,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Fields:      r.Fields,
		Attachments: make([]attachmentResponse, 0, len(r.Attachments)),
	}
	for _, a := range r.Attachments {
		ar := attachmentResponse{
			ID:          a.ID,
			Position:    a.Position,
			StorageKey:  a.StorageKey,
			ContentHash: a.ContentHash,
			Size:        a.Size,
			MimeType:    a.MimeType,
		}
		if s.uploadsDir != "" {
			ar.URL = "/uploads/" + a.StorageKey
		}
		resp.Attachments = append(resp.Attachments, ar)
	}
	return resp
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req struct {
		Fields json.RawMessage `json:"fields"`
		Images []imagePayload  `json:"images"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw := make([]services.RawAttachment, 0, len(req.Images))
	for _, img := range req.Images {
		raw = append(raw, services.RawAttachment{Data: img.Data, MimeType: img.MimeType})
	}

	report, err := s.reports.Create(r.Context(), p.ID, req.Fields, raw)
	if err != nil {
		if errors.Is(err, common.ErrMalformedPayload) {
			writeError(w, http.StatusBadRequest, "malformed attachment")
			return
		}
		s.logger.Error(r.Context(), "create report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info(r.Context(), "report created", "report_id", report.ID, "attachments", len(report.Attachments))
	writeJSON(w, http.StatusCreated, s.renderReport(report))
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := s.reports.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		s.logger.Error(r.Context(), "get report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, s.renderReport(report))
}

// handleListReports streams the point-in-time result set as one JSON array.
// A cursor failure after the first element can only be logged; the array is
// closed and the client sees a truncated but valid document.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	f := reports.Filter{
		CreatedBy: r.URL.Query().Get("created_by"),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		f.Since = since
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		f.Limit = limit
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	first := true
	if _, err := w.Write([]byte("[")); err != nil {
		return
	}
	for report, err := range s.reports.List(r.Context(), f) {
		if err != nil {
			s.logger.Error(r.Context(), "list reports failed", "error", err)
			break
		}
		if !first {
			if _, err := w.Write([]byte(",")); err != nil {
				return
			}
		}
		first = false
		if err := enc.Encode(s.renderReport(report)); err != nil {
			return
		}
	}
	_, _ = w.Write([]byte("]"))
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	id := chi.URLParam(r, "id")

	var req struct {
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := s.reports.Update(r.Context(), p.ID, id, req.Fields)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, "report not found")
		case errors.Is(err, common.ErrForbidden):
			writeError(w, http.StatusForbidden, "not the report owner")
		default:
			s.logger.Error(r.Context(), "update report failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, s.renderReport(report))
}
