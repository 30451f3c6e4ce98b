package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/models"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":  err.Error(),
			"status": status,
		})
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, detail string, code errors.ErrorCode) {
	s.respondJSON(w, status, models.ErrorResponse{Detail: detail, Code: string(code)})
}

// respondFailure maps a handler error onto a status code and error body.
func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	detail := err.Error()
	var code errors.ErrorCode
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = stdErr.Code
		detail = stdErr.Message
		if status == http.StatusBadRequest && stdErr.Details != "" {
			detail = stdErr.Details
		}
	}

	fields := map[string]interface{}{
		"operation": op,
		"status":    status,
		"error":     err.Error(),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", fields)
	} else {
		s.logger.Warn("Request rejected", fields)
	}
	s.respondError(w, status, detail, code)
}

func statusFor(err error) int {
	if stderrors.Is(err, errors.ErrNotFound) {
		return http.StatusNotFound
	}
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch stdErr.Code {
	case errors.ErrCodeInvalidDocument, errors.ErrCodeApplicationValidation:
		return http.StatusBadRequest
	case errors.ErrCodeConnectionUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
