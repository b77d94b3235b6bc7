package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/supportchat/supportchat/internal/knowledge"
	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/session"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code. The body is
// encoded into a buffer first so headers are only sent after a successful
// encode and a failure can still produce a proper 500.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("failed to write response body", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}}, logger)
}

// writeDomainError maps a domain error to an HTTP status and stable error
// code. Unknown errors become an opaque 500.
func writeDomainError(w http.ResponseWriter, err error, logger log.Logger) {
	switch {
	case errors.Is(err, session.ErrNoDocuments):
		writeError(w, http.StatusBadRequest, "no_documents", "upload at least one document before starting a session", logger)
	case errors.Is(err, session.ErrActive):
		writeError(w, http.StatusConflict, "session_active", "a session is already active; reset it first", logger)
	case errors.Is(err, session.ErrInactive):
		writeError(w, http.StatusConflict, "session_inactive", "no active session", logger)
	case errors.Is(err, session.ErrTurnInFlight):
		writeError(w, http.StatusConflict, "turn_in_flight", "a response is still being generated", logger)
	case errors.Is(err, session.ErrBlankMessage):
		writeError(w, http.StatusBadRequest, "blank_message", "message must not be blank", logger)
	case errors.Is(err, session.ErrInit):
		writeError(w, http.StatusBadGateway, "session_init_failed", err.Error(), logger)
	case errors.Is(err, knowledge.ErrEmptyName):
		writeError(w, http.StatusBadRequest, "invalid_request", "name must not be empty", logger)
	case errors.Is(err, knowledge.ErrNoDocuments):
		writeError(w, http.StatusBadRequest, "no_documents", "nothing to save: the document list is empty", logger)
	case errors.Is(err, knowledge.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "knowledge base not found", logger)
	case errors.Is(err, knowledge.ErrQuotaExceeded):
		writeError(w, http.StatusInsufficientStorage, "quota_exceeded", "storage quota exceeded; delete a knowledge base and retry", logger)
	default:
		logger.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}
