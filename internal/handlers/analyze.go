package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/craigvandotcom/eatzone/internal/validate"
)

// analyzeRequest accepts either a single image or a batch. Exactly one of
// the two fields must be set.
type analyzeRequest struct {
	Image    string   `json:"image,omitempty"`
	Images   []string `json:"images,omitempty"`
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
}

func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), validate.CodeValidationError, http.StatusBadRequest)
		return
	}

	images := req.Images
	if req.Image != "" {
		if len(images) > 0 {
			h.writeError(w, "provide either image or images, not both", validate.CodeValidationError, http.StatusBadRequest)
			return
		}
		images = []string{req.Image}
	}
	if len(images) == 0 {
		h.writeError(w, "at least one image is required", validate.CodeValidationError, http.StatusBadRequest)
		return
	}

	if outcome := validate.Batch(images); !outcome.Valid {
		h.writeValidationError(w, outcome.Err)
		return
	}

	start := time.Now()
	result, err := h.analysisService.AnalyzeImages(r.Context(), images, req.Provider, req.Model)
	if err != nil {
		h.writeError(w, "Analysis failed: "+err.Error(), "ANALYSIS_FAILED", http.StatusBadGateway)
		return
	}
	slog.Info("Analysis complete",
		"images", len(images),
		"ingredients", len(result.Ingredients),
		"duration", time.Since(start))

	h.writeJSON(w, result)
}
