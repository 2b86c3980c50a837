package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/hay-kot/criterio"

	"github.com/commune/backend/internal/logging"
	"github.com/commune/backend/internal/middleware"
	"github.com/commune/backend/internal/models"
	"github.com/commune/backend/internal/services"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// validator is implemented by request models.
type validator interface {
	Validate() error
}

// writeJSON serializes data as JSON and writes it to the response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response. If no context/error provided, just writes the response.
// For simple client errors (400-level), use: writeError(w, status, msg)
// For server errors with cause, use: writeErrorWithCause(ctx, w, status, msg, err)
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// writeErrorWithCause writes an error response and logs the error with stack trace.
// Server errors are also reported to Sentry when a hub is attached to ctx.
func writeErrorWithCause(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	writeError(w, status, message)

	// Don't log 401/403 - handled by security event logging
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return
	}

	if status >= 400 && err != nil {
		wrappedErr := logging.WrapError(err, message)
		logging.LogErrorWithStatus(ctx, status, "error response", wrappedErr)

		if status >= 500 {
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.CaptureException(wrappedErr)
			}
		}
	}
}

// writeValidationError writes a 400 listing every field error in err.
func writeValidationError(w http.ResponseWriter, err error) {
	resp := models.ErrorResponse{Error: "invalid request"}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		resp.Errors = make(map[string][]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			field := fe.Field
			if field == "" {
				// Form-level errors replace the generic message.
				resp.Error = fe.Err.Error()
				continue
			}
			resp.Errors[field] = append(resp.Errors[field], fe.Err.Error())
		}
		if len(resp.Errors) == 0 {
			resp.Errors = nil
		}
	} else {
		resp.Error = err.Error()
	}

	writeJSON(w, http.StatusBadRequest, resp)
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the 400 response itself and returns false when the body is unusable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst validator) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	if err := dst.Validate(); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// writeServiceError maps service sentinel errors to HTTP statuses. Anything
// unrecognised is a 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, services.ErrAlreadyFriends):
		writeError(w, http.StatusConflict, "user is already your friend")
	case errors.Is(err, services.ErrSelfAction):
		writeError(w, http.StatusBadRequest, "this action cannot target yourself")
	case errors.Is(err, services.ErrNothingToUpdate):
		writeError(w, http.StatusBadRequest, "provide at least one field to update")
	case errors.Is(err, services.ErrEmptyMessage):
		writeValidationError(w, criterio.NewFieldErrors("body", err))
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	default:
		writeErrorWithCause(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

// currentUserID returns the authenticated user's id. Routes using it sit
// behind AuthMiddleware, so claims are always present.
func currentUserID(r *http.Request) string {
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		return claims.UserID()
	}
	return ""
}
