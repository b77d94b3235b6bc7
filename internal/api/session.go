package api

import (
	"net/http"

	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/session"
)

// pricing converts cumulative token counts into an estimated cost using two
// fixed per-million-token rates.
type pricing struct {
	InputPerM  float64
	OutputPerM float64
}

func (p pricing) cost(u session.Usage) float64 {
	return float64(u.InputTokens)/1e6*p.InputPerM + float64(u.OutputTokens)/1e6*p.OutputPerM
}

type usagePayload struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
}

type sessionState struct {
	Active        bool              `json:"active"`
	DocumentCount int               `json:"documentCount"`
	Usage         usagePayload      `json:"usage"`
	Messages      []session.Message `json:"messages"`
}

type sessionHandler struct {
	sessions *session.Manager
	rates    pricing
	logger   log.Logger
}

func (h *sessionHandler) state() sessionState {
	u := h.sessions.Usage()
	return sessionState{
		Active:        h.sessions.Active(),
		DocumentCount: len(h.sessions.Documents()),
		Usage: usagePayload{
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			Cost:         h.rates.cost(u),
		},
		Messages: h.sessions.Messages(),
	}
}

// start opens a session over the uploaded documents.
func (h *sessionHandler) start(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Start(r.Context()); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, h.state(), h.logger)
}

// reset tears down the session. With ?full=true the document workspace is
// cleared as well.
func (h *sessionHandler) reset(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("full") == "true" {
		h.sessions.FullReset()
	} else {
		h.sessions.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}

// get reports the current session state, transcript, and running cost.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state(), h.logger)
}
