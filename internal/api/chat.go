package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/supportchat/supportchat/internal/chat"
	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/session"
)

// SSE event types emitted by the chat stream endpoint.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

type chunkPayload struct {
	Text string `json:"text"`
}

type donePayload struct {
	Message session.Message `json:"message"`
	Usage   usagePayload    `json:"usage"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type chatInput struct {
	Message string `json:"message"`
}

type chatHandler struct {
	turns    *chat.Handler
	sessions *session.Manager
	rates    pricing
	logger   log.Logger
}

// stream runs one turn over SSE: chunk events carry reply fragments in
// order, a done event carries the finalized message plus updated usage, and
// an error event replaces done when the turn cannot complete.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	// Validate the body before committing to SSE so a malformed request
	// gets an ordinary 400 instead of a 200 with an error event.
	var input chatInput
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	msg, err := h.turns.SendTurn(r.Context(), input.Message, func(text string) error {
		return writeEvent(w, flusher, EventChunk, chunkPayload{Text: text})
	})
	if err != nil {
		_ = writeEvent(w, flusher, EventError, errorPayload{
			Code:    turnErrorCode(err),
			Message: err.Error(),
		})
		return
	}

	if msg.IsError {
		_ = writeEvent(w, flusher, EventError, errorPayload{
			Code:    "stream_error",
			Message: msg.Text,
		})
		return
	}

	u := h.sessions.Usage()
	_ = writeEvent(w, flusher, EventDone, donePayload{
		Message: msg,
		Usage: usagePayload{
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			Cost:         h.rates.cost(u),
		},
	})
}

// turnErrorCode maps turn precondition failures to stable SSE error codes.
func turnErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrInactive):
		return "session_inactive"
	case errors.Is(err, session.ErrTurnInFlight):
		return "turn_in_flight"
	case errors.Is(err, session.ErrBlankMessage):
		return "blank_message"
	default:
		return "internal_error"
	}
}

// writeEvent writes one SSE frame: "event: <type>\ndata: <json>\n\n".
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
