package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vorn/vorn/internal/catalog"
	"github.com/vorn/vorn/internal/explain"
	"github.com/vorn/vorn/internal/models"
	"github.com/vorn/vorn/internal/observability/logging"
	"github.com/vorn/vorn/internal/pipeline"
	"github.com/vorn/vorn/internal/store"
)

// ErrPersistence is the envelope error for a result that could not be stored.
const ErrPersistence = "persistence failed"

type processRequest struct {
	CSVContent *string `json:"csv_content"`
	Filename   string  `json:"filename"`
}

// processResponse is the FileResult plus the id it was stored under. Error is
// set on this envelope only.
type processResponse struct {
	models.FileResult
	FileID *string `json:"file_id"`
}

type explainRequest struct {
	Before models.RowInput   `json:"before"`
	After  *models.RowOutput `json:"after"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.From(ctx)

	if !isJSON(r) {
		respondError(w, http.StatusBadRequest, "invalid_content_type", "Expected application/json")
		return
	}

	maxBytes := s.processor.Options().MaxBytes
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+bodySlack)
	}

	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Payload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "csv_content is required")
		return
	}
	if req.CSVContent == nil || strings.TrimSpace(*req.CSVContent) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "csv_content is required")
		return
	}

	res, err := s.processor.Process(ctx, pipeline.Request{Filename: req.Filename, Content: *req.CSVContent})
	if err != nil {
		status, code, msg := classify(err)
		if status == http.StatusInternalServerError {
			log.Error("http", "process failed", "error", err.Error())
		}
		respondError(w, status, code, msg)
		return
	}

	out := processResponse{FileResult: *res}
	if s.store != nil {
		id, err := s.store.SaveFile(ctx, *res)
		if err != nil {
			log.Error("http", "persist failed", "error", err.Error(), "filename", res.Filename)
			if s.metrics != nil {
				s.metrics.PersistenceErrors.Inc()
			}
			out.Error = ErrPersistence
		} else {
			out.FileID = &id
		}
	}

	log.Info("http", "file processed",
		"total_rows", res.TotalRows,
		"duration_ms", res.ProcessingDurationMS,
		"persisted", out.FileID != nil,
	)
	respondJSON(w, http.StatusOK, out)
}

// classify maps pipeline errors onto a status, code and client-safe message.
func classify(err error) (int, string, string) {
	var limit *pipeline.LimitError
	switch {
	case errors.Is(err, pipeline.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large", "Payload too large"
	case errors.Is(err, pipeline.ErrRowLimitExceeded):
		msg := "Row count exceeds limit"
		if errors.As(err, &limit) {
			msg = fmt.Sprintf("Row count exceeds limit of %d", limit.Limit)
		}
		return http.StatusRequestEntityTooLarge, "row_limit_exceeded", msg
	case errors.Is(err, pipeline.ErrInputFormat):
		return http.StatusBadRequest, "input_format", "csv_content is required"
	case errors.Is(err, pipeline.ErrEmptyDataset):
		return http.StatusBadRequest, "empty_dataset", "CSV contains no data rows"
	default:
		return http.StatusInternalServerError, "internal", "Internal server error"
	}
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusOK, []store.FileSummary{})
		return
	}

	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	files, err := s.store.ListFiles(r.Context(), store.ClampLimit(limit))
	if err != nil {
		logging.From(r.Context()).Error("http", "list files failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "Missing id")
		return
	}
	if s.store == nil {
		respondError(w, http.StatusNotFound, "not_found", "File not found")
		return
	}

	rec, err := s.store.GetFile(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "File not found")
		return
	}
	if err != nil {
		logging.From(r.Context()).Error("http", "get file failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		respondError(w, http.StatusBadRequest, "invalid_content_type", "Expected application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodySlack)

	var req explainRequest
	if err := decodeJSON(r, &req); err != nil || req.Before == nil || req.After == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid payload: before and after are required")
		return
	}

	resp, err := explain.Describe(r.Context(), s.explainer, req.Before, *req.After)
	if err != nil {
		// The explanation itself is still usable without a patch.
		logging.From(r.Context()).Warn("http", "explain diff failed", "error", err.Error())
	}
	if s.metrics != nil {
		s.metrics.Explanations.WithLabelValues(resp.Source).Inc()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	cat := s.catalog()
	respondJSON(w, http.StatusOK, map[string]any{
		"version": cat.Version(),
		"rules":   cat.Rules(),
	})
}

func (s *Server) catalog() *catalog.Catalog {
	return s.processor.Engine().Catalog()
}
