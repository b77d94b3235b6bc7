package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/supportchat/supportchat/internal/ingest"
	"github.com/supportchat/supportchat/internal/knowledge"
	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/session"
)

// documentSummary is the wire shape of a document. Content stays server-side;
// the client only needs metadata for the upload panel.
type documentSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int    `json:"size"`
	MediaType string `json:"mediaType"`
}

func summarize(docs []knowledge.Document) []documentSummary {
	out := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentSummary{ID: d.ID, Name: d.Name, Size: d.Size, MediaType: d.MediaType})
	}
	return out
}

type documentHandler struct {
	sessions       *session.Manager
	logger         log.Logger
	maxUploadBytes int64
}

// upload accepts a multipart batch under the "files" field, normalizes it,
// and appends the resulting documents to the workspace. Inputs that produce
// no document are reported back, not failed.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "upload exceeds the size limit", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "expected multipart form data", h.logger)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Debug("multipart cleanup failed", "error", err)
		}
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no files provided", h.logger)
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, hdr := range headers {
		f, err := hdr.Open()
		if err != nil {
			h.logger.Warn("cannot open upload part", "file", hdr.Filename, "error", err)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.logger.Warn("cannot read upload part", "file", hdr.Filename, "error", err)
			continue
		}
		files = append(files, ingest.File{
			Name:      hdr.Filename,
			MediaType: hdr.Header.Get("Content-Type"),
			Data:      data,
		})
	}

	result := ingest.Normalize(r.Context(), files, h.logger)
	h.sessions.AddDocuments(result.Documents)

	h.logger.Info("documents uploaded",
		"accepted", len(result.Documents),
		"skipped", len(result.Skipped),
	)
	writeJSON(w, http.StatusOK, struct {
		Documents []documentSummary `json:"documents"`
		Skipped   []ingest.Skipped  `json:"skipped,omitempty"`
	}{
		Documents: summarize(result.Documents),
		Skipped:   result.Skipped,
	}, h.logger)
}

// list returns the current workspace documents.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Documents []documentSummary `json:"documents"`
	}{Documents: summarize(h.sessions.Documents())}, h.logger)
}

// clear empties the workspace document list.
func (h *documentHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearDocuments(); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// remove deletes one workspace document by id.
func (h *documentHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.RemoveDocument(id); err != nil {
		if errors.Is(err, session.ErrActive) {
			writeDomainError(w, err, h.logger)
			return
		}
		writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
