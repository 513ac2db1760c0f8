package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/craigvandotcom/eatzone/internal/validate"
)

type validateRequest struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	Base64Data string `json:"base64Data"`
}

type validateResponse struct {
	Valid bool            `json:"valid"`
	Error *validate.Error `json:"error,omitempty"`
}

// HandleValidate performs server-side re-validation of an upload the
// client already checked. A failed check is a 200 with valid=false, not
// an HTTP error, so callers can distinguish bad uploads from bad requests.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), validate.CodeValidationError, http.StatusBadRequest)
		return
	}

	outcome := validate.File(req.Filename, req.MimeType, req.Size, req.Base64Data)
	h.writeJSON(w, validateResponse{Valid: outcome.Valid, Error: outcome.Err})
}
