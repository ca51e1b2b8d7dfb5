package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON and responder.writeError, so all
// error responses share one shape:
//
//	{"error": "not_found", "message": "post not found with id abc123"}
//
// The SPA reads "message" for toasts and treats any 401/403 as "sign out".

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/auth"
)

// maxBodyBytes caps request bodies; the largest payload is a post description.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// writeJSON sets headers and status before the body; changes after the first
// Write are ignored by net/http.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// responder carries what error rendering depends on: the logger and whether
// raw error text may be shown to the caller.
type responder struct {
	logger     *zap.Logger
	production bool
}

func newResponder(logger *zap.Logger, production bool) responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return responder{logger: logger, production: production}
}

// writeError maps a domain error to its HTTP status.
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrForbidden    → 403
//	ErrNotFound     → 404
//	ErrConflict     → 409
//	anything else   → 500
//
// A 500 carries the raw error text outside production and a generic message
// in production; the raw error is always logged.
func (rs responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
		return
	}

	rs.logger.Error("unhandled error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))

	message := "An internal error occurred"
	if !rs.production {
		message = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "request body too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// pathParam returns the first non-empty chi URL parameter among names.
// Routes that share a pattern across methods use a neutral name ("ref").
func pathParam(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := chi.URLParam(r, name); v != "" {
			return v
		}
	}
	return ""
}

// actor is the session email, or "" for an anonymous request.
func actor(r *http.Request) string {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return id.Email
	}
	return ""
}
