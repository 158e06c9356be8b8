package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

// handleSign handles POST /v1/sign.
func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		h.writeError(w, r, http.StatusUnsupportedMediaType, domain.ErrUnsupportedMediaType.Code,
			"Content-Type must be application/json", nil)
		return
	}

	var req SignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, domain.ErrInvalidArgument.Code, "request body too large", nil)
			return
		}
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid JSON body", nil)
		return
	}
	if req.Data == "" {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrMissingArgument.Code, "data is required", nil)
		return
	}

	signature, err := h.bridge.Sign(r.Context(), req.Data)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, SignResponse{
		Signature: signature,
		RequestID: getRequestID(r),
	})
}

// isJSON reports whether the body is declared as JSON. Browsers send
// text/plain and form bodies cross-origin without a preflight, so those
// never reach the agent.
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// handleAgentStatus handles GET /v1/agent. It reports the connection state
// without connecting.
func (h *Handler) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.bridge.Status())
}
