package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/server/bridge"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// Bridge is the signing backend behind the handlers.
type Bridge interface {
	Sign(ctx context.Context, data string) (string, error)
	Ready(ctx context.Context) error
	Status() bridge.Status
}

// Handler serves the bridge API.
type Handler struct {
	bridge Bridge
	mux    *http.ServeMux
}

// New creates a new Handler.
func New(b Bridge) *Handler {
	h := &Handler{
		bridge: b,
		mux:    http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("POST /v1/sign", h.handleSign)
	h.mux.HandleFunc("GET /v1/agent", h.handleAgentStatus)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	response := NewResponse(getRequestID(r), data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.L(r.Context()).Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	response := NewErrorResponse(getRequestID(r), code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// getRequestID returns the request ID set by the RequestID middleware.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts bridge errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.L(r.Context())

	switch {
	case errors.Is(err, context.Canceled):
		log.Info("request cancelled by client")
		h.writeError(w, r, StatusClientClosedRequest, domain.ErrBadRequest.Code, "request cancelled", nil)
		return
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, r, http.StatusGatewayTimeout, domain.ErrSignTimeout.Code, domain.ErrSignTimeout.Message, nil)
		return
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		status := errorCodeToHTTPStatus(de.Code)
		if status >= 500 {
			log.Warn("signing failed", "error", err)
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	log.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, "internal server error", nil)
}

// StatusClientClosedRequest is written when the caller went away before
// the agent answered.
const StatusClientClosedRequest = 499

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.ErrBadRequest.Code:
		return http.StatusBadRequest
	case domain.ErrRateLimited.Code:
		return http.StatusTooManyRequests
	case domain.ErrUnsupportedMediaType.Code:
		return http.StatusUnsupportedMediaType
	case domain.ErrSignTimeout.Code:
		return http.StatusGatewayTimeout
	case domain.ErrServiceUnavailable.Code:
		return http.StatusServiceUnavailable
	}

	switch domain.Category(code) {
	case domain.CategoryArgument:
		return http.StatusBadRequest
	case domain.CategoryAuth:
		return http.StatusUnauthorized
	case domain.CategoryAgent, domain.CategoryProtocol, domain.CategoryPortal:
		return http.StatusBadGateway
	case domain.CategoryConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
