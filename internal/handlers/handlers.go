package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/craigvandotcom/eatzone/internal/models"
	"github.com/craigvandotcom/eatzone/internal/storage"
	"github.com/craigvandotcom/eatzone/internal/validate"
)

// AnalysisService is the slice of the analysis layer the HTTP surface needs.
type AnalysisService interface {
	AnalyzeImages(ctx context.Context, images []string, provider, model string) (*models.AnalysisResult, error)
}

type Handler struct {
	store           *storage.Store
	analysisService AnalysisService
}

func New(store *storage.Store, service AnalysisService) *Handler {
	return &Handler{
		store:           store,
		analysisService: service,
	}
}

// Routes registers all endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/analyze", h.HandleAnalyze)
	mux.HandleFunc("POST /api/validate", h.HandleValidate)
	mux.HandleFunc("GET /api/entries", h.HandleListEntries)
	mux.HandleFunc("GET /api/entries/{id}", h.HandleGetEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", h.HandleDeleteEntry)
	mux.HandleFunc("GET /healthcheck", h.HandleHealthcheck)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeError emits the structured error envelope clients key their
// retry behavior off of.
func (h *Handler) writeError(w http.ResponseWriter, message, code string, status int) {
	slog.Error(message, "code", code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	envelope := map[string]any{
		"error": map[string]string{
			"message": message,
			"code":    code,
		},
	}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		slog.Error("Unable to encode error response", "err", err)
	}
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	if verr, ok := err.(*validate.Error); ok {
		h.writeError(w, verr.Message, verr.Code, http.StatusBadRequest)
		return
	}
	h.writeError(w, err.Error(), validate.CodeValidationError, http.StatusBadRequest)
}
