// Package knowledge provides the knowledge-base document model, the context
// assembly that turns documents into a system instruction, and the persisted
// record store for named knowledge-base snapshots.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Document is a single ingested text document. Immutable once created; it is
// owned exclusively by whichever collection currently holds it (the live
// upload list or a persisted knowledge-base record).
//
// Name may contain path separators to represent archive-internal directory
// structure (e.g. "src/main.py"), which the UI uses to group documents.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Size      int    `json:"size"`
	MediaType string `json:"mediaType"`
}

// NewDocument creates a Document with a generated id.
func NewDocument(name, content, mediaType string) Document {
	return Document{
		ID:        uuid.NewString(),
		Name:      name,
		Content:   content,
		Size:      len(content),
		MediaType: mediaType,
	}
}

// Base is a persisted knowledge-base record: a named snapshot of the live
// document list taken at save time. Documents is a value copy — later
// mutation of the live list never affects a saved record, and the stored
// order determines context assembly order on reload.
type Base struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	Documents []Document `json:"documents"`
}

// CopyDocuments returns an independent copy of docs. Used wherever a document
// list crosses an ownership boundary so the two collections never share
// backing storage.
func CopyDocuments(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	copy(out, docs)
	return out
}
