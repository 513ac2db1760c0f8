package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/craigvandotcom/eatzone/internal/models"
	"github.com/craigvandotcom/eatzone/internal/storage"
)

func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, "limit must be a non-negative integer", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.store.ListEntries(r.Context(), limit)
	if err != nil {
		h.writeError(w, "Failed to list entries: "+err.Error(), "STORAGE_ERROR", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.Entry{}
	}
	h.writeJSON(w, entries)
}

func (h *Handler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.store.GetEntry(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, "Entry not found", "NOT_FOUND", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to load entry: "+err.Error(), "STORAGE_ERROR", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, entry)
}

func (h *Handler) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteEntry(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, "Entry not found", "NOT_FOUND", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to delete entry: "+err.Error(), "STORAGE_ERROR", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]string{"status": "deleted"})
}
