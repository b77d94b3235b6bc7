package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/supportchat/supportchat/internal/knowledge"
	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/session"
)

// baseSummary is the wire shape of a saved knowledge base. Document contents
// stay server-side; the panel only lists names and counts.
type baseSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	DocumentCount int       `json:"documentCount"`
}

func summarizeBase(b knowledge.Base) baseSummary {
	return baseSummary{
		ID:            b.ID,
		Name:          b.Name,
		CreatedAt:     b.CreatedAt,
		DocumentCount: len(b.Documents),
	}
}

type knowledgeHandler struct {
	store    *knowledge.Store
	sessions *session.Manager
	logger   log.Logger
}

// save snapshots the current workspace documents under a user-supplied name.
func (h *knowledgeHandler) save(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name string `json:"name"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	base, err := h.store.Save(input.Name, h.sessions.Documents())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, summarizeBase(*base), h.logger)
}

// list returns saved knowledge bases in insertion order.
func (h *knowledgeHandler) list(w http.ResponseWriter, r *http.Request) {
	bases := h.store.List()
	summaries := make([]baseSummary, 0, len(bases))
	for _, b := range bases {
		summaries = append(summaries, summarizeBase(b))
	}
	writeJSON(w, http.StatusOK, struct {
		KnowledgeBases []baseSummary `json:"knowledgeBases"`
	}{KnowledgeBases: summaries}, h.logger)
}

// get returns one saved knowledge base with its document metadata.
func (h *knowledgeHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, b := range h.store.List() {
		if b.ID == id {
			writeJSON(w, http.StatusOK, struct {
				baseSummary
				Documents []documentSummary `json:"documents"`
			}{
				baseSummary: summarizeBase(b),
				Documents:   summarize(b.Documents),
			}, h.logger)
			return
		}
	}
	writeDomainError(w, knowledge.ErrNotFound, h.logger)
}

// load replaces the workspace document list with a saved snapshot. An
// active session must be reset first; the workspace is never swapped out
// from under a running conversation.
func (h *knowledgeHandler) load(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.Load(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if err := h.sessions.ReplaceDocuments(docs); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Documents []documentSummary `json:"documents"`
	}{Documents: summarize(docs)}, h.logger)
}

// remove deletes a saved knowledge base.
func (h *knowledgeHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("id")); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
