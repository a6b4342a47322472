package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/model"
)

// envelope is the standard success response shape.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// errorBody is the standard failure response shape.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("api: write response", zap.Error(err))
	}
}

func respondSuccess(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusOK, envelope{Status: "success", Message: message, Data: data})
}

func respondError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Error(err))
	}
	respondJSON(w, code, errorBody{StatusCode: code, Message: publicMessage(err, code)})
}

func respondValidation(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusUnprocessableEntity, errorBody{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    message,
	})
}

// statusFor maps the error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, model.ErrIllegalState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internals on 5xx; 4xx messages are already meant
// for the caller.
func publicMessage(err error, code int) string {
	if code == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
