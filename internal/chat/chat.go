// Package chat drives one request/response turn against the active session:
// it streams reply fragments to the caller as they arrive, finalizes the
// accumulated text into the transcript, and reconciles token usage.
package chat

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/provider"
	"github.com/supportchat/supportchat/internal/session"
)

// FragmentFunc receives each reply fragment in arrival order. A callback
// error aborts the turn (typically the client went away).
type FragmentFunc func(text string) error

// Handler executes streaming turns.
type Handler struct {
	sessions *session.Manager
	logger   log.Logger
}

// NewHandler creates a turn handler bound to a session manager.
func NewHandler(sessions *session.Manager, logger log.Logger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

// SendTurn runs one exchange. Precondition violations (no active session,
// blank text, a turn already in flight) are returned as errors before any
// state changes beyond appending the user message. Stream failures do not
// return an error: they finalize as an error-flagged model message with a
// user-facing diagnostic, leaving the token counters untouched. The returned
// message is the finalized model message either way. If the session was
// reset while the turn streamed, the finalization is discarded and SendTurn
// reports ErrInactive.
func (h *Handler) SendTurn(ctx context.Context, text string, onFragment FragmentFunc) (session.Message, error) {
	conv, generation, err := h.sessions.BeginTurn(text)
	if err != nil {
		return session.Message{}, err
	}

	var (
		reply strings.Builder
		usage *provider.Usage
	)
	for chunk, err := range conv.SendStream(ctx, text) {
		if err != nil {
			h.logger.Error("stream failed", "error", err)
			return h.failTurn(generation, err)
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk.Text == "" {
			continue
		}
		reply.WriteString(chunk.Text)
		if onFragment != nil {
			if err := onFragment(chunk.Text); err != nil {
				h.logger.Warn("fragment delivery aborted", "error", err)
				return h.failTurn(generation, err)
			}
		}
	}

	msg, ok := h.sessions.CompleteTurn(generation, reply.String(), usage)
	if !ok {
		return session.Message{}, session.ErrInactive
	}
	return msg, nil
}

func (h *Handler) failTurn(generation uint64, cause error) (session.Message, error) {
	msg, ok := h.sessions.FailTurn(generation, diagnose(cause))
	if !ok {
		return session.Message{}, session.ErrInactive
	}
	return msg, nil
}

// diagnose turns a stream failure into a user-facing message. Network-level
// failures and opaque "unknown" transport statuses get a connectivity
// diagnosis; everything else gets a generic failure notice.
func diagnose(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) || strings.Contains(strings.ToLower(err.Error()), "unknown") {
		return "A connection error occurred while contacting the model service. Please check your network and try again."
	}
	return "Something went wrong while generating a response. Please try again."
}
