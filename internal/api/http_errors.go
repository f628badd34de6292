package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eduflow-ai/eduflow/internal/core"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    "INTERNAL",
			Message: err.Error(),
		}})
		return
	}

	status := http.StatusInternalServerError
	switch domErr.Category {
	case core.ErrCatValidation:
		status = http.StatusBadRequest
	case core.ErrCatNotFound:
		status = http.StatusNotFound
	case core.ErrCatState, core.ErrCatConflict:
		status = http.StatusConflict
	case core.ErrCatTimeout:
		status = http.StatusGatewayTimeout
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    domErr.Code,
		Message: domErr.Message,
		Details: domErr.Details,
	}})
}
