// Package ingest normalizes uploaded files into knowledge-base documents.
//
// Plain text files are decoded directly; zip archives are expanded entry by
// entry. Non-text content is filtered out: an extension allow-list covers
// recognized text and source formats, and unknown files fall back to a
// best-effort decode with a null-byte heuristic. Individual unreadable items
// are logged and skipped — a batch never aborts because one item is bad.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/supportchat/supportchat/internal/knowledge"
	"github.com/supportchat/supportchat/internal/log"
)

// decodeConcurrency bounds how many archive entries are decoded at once.
// Output order is archive enumeration order, not decode-completion order.
const decodeConcurrency = 8

// macOSMetadataDir is the resource-fork directory macOS embeds in zip files.
const macOSMetadataDir = "__MACOSX"

// textExtensions is the allow-list of recognized text and source-code
// extensions. Files and archive entries outside this list are only accepted
// through the best-effort heuristic (plain files) or dropped (archive
// entries).
var textExtensions = map[string]bool{
	".bash": true, ".c": true, ".cfg": true, ".conf": true, ".cpp": true,
	".cs": true, ".css": true, ".csv": true, ".dart": true, ".go": true,
	".h": true, ".hpp": true, ".htm": true, ".html": true, ".ini": true,
	".java": true, ".js": true, ".json": true, ".jsx": true, ".kt": true,
	".less": true, ".log": true, ".lua": true, ".markdown": true, ".md": true,
	".php": true, ".pl": true, ".py": true, ".r": true, ".rb": true,
	".rs": true, ".rst": true, ".scala": true, ".scss": true, ".sh": true,
	".sql": true, ".svelte": true, ".swift": true, ".toml": true,
	".ts": true, ".tsx": true, ".tsv": true, ".txt": true, ".vue": true,
	".xml": true, ".yaml": true, ".yml": true,
}

// File is one raw uploaded blob as received from the host environment.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Skipped reports one input that produced no document.
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of normalizing one upload batch.
type Result struct {
	Documents []knowledge.Document
	Skipped   []Skipped
}

// Normalize converts an upload batch into an ordered document list.
// Document order follows the input order; archive entries keep their
// enumeration order and their archive-internal path as the document name.
func Normalize(ctx context.Context, files []File, logger log.Logger) Result {
	var res Result
	for _, f := range files {
		if isArchive(f.Name, f.MediaType) {
			docs, err := expandArchive(ctx, f, logger)
			if err != nil {
				logger.Warn("skipping unreadable archive", "file", f.Name, "error", err)
				res.Skipped = append(res.Skipped, Skipped{Name: f.Name, Reason: "unreadable archive"})
				continue
			}
			res.Documents = append(res.Documents, docs...)
			continue
		}

		doc, ok := normalizeFile(f, logger)
		if !ok {
			res.Skipped = append(res.Skipped, Skipped{Name: f.Name, Reason: "not recognized as text"})
			continue
		}
		res.Documents = append(res.Documents, doc)
	}
	return res
}

// isArchive reports whether the blob should be treated as a zip container.
func isArchive(name, mediaType string) bool {
	if strings.EqualFold(path.Ext(name), ".zip") {
		return true
	}
	switch mediaType {
	case "application/zip", "application/x-zip-compressed":
		return true
	}
	return false
}

// expandArchive opens a zip blob and normalizes its entries. Entries are
// decoded concurrently; the returned order is the archive's enumeration
// order. Individual entry failures are logged and omitted; only a container
// that cannot be opened at all is an error.
func expandArchive(ctx context.Context, f File, logger log.Logger) ([]knowledge.Document, error) {
	r, err := zip.NewReader(bytes.NewReader(f.Data), int64(len(f.Data)))
	if err != nil {
		return nil, err
	}

	var entries []*zip.File
	for _, entry := range r.File {
		if keepEntry(entry) {
			entries = append(entries, entry)
		}
	}

	// Slot per entry keeps enumeration order regardless of which decode
	// finishes first.
	slots := make([]*knowledge.Document, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(decodeConcurrency)
	for i, entry := range entries {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			content, err := readEntry(entry)
			if err != nil {
				logger.Debug("skipping archive entry", "archive", f.Name, "entry", entry.Name, "error", err)
				return nil
			}
			if !utf8.ValidString(content) {
				logger.Debug("skipping non-UTF-8 archive entry", "archive", f.Name, "entry", entry.Name)
				return nil
			}
			doc := knowledge.NewDocument(entry.Name, content, mediaTypeFor(entry.Name, ""))
			slots[i] = &doc
			return nil
		})
	}
	// Workers never return errors; failures are per-entry and swallowed.
	_ = g.Wait()

	docs := make([]knowledge.Document, 0, len(entries))
	for _, doc := range slots {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

// keepEntry filters structural noise out of an archive: directories, macOS
// metadata, hidden files, and extensions outside the allow-list.
func keepEntry(entry *zip.File) bool {
	if entry.FileInfo().IsDir() {
		return false
	}
	if strings.Contains(entry.Name, macOSMetadataDir) {
		return false
	}
	if strings.HasPrefix(path.Base(entry.Name), ".") {
		return false
	}
	return textExtensions[strings.ToLower(path.Ext(entry.Name))]
}

func readEntry(entry *zip.File) (string, error) {
	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// normalizeFile converts a single non-archive blob into a document. Files
// outside the allow-list get a best-effort decode and are rejected when the
// content looks binary (contains a null byte) or is not valid UTF-8.
func normalizeFile(f File, logger log.Logger) (knowledge.Document, bool) {
	content := string(f.Data)

	recognized := textExtensions[strings.ToLower(path.Ext(f.Name))] ||
		strings.HasPrefix(f.MediaType, "text/")
	if !recognized && strings.ContainsRune(content, '\x00') {
		logger.Debug("skipping binary file", "file", f.Name)
		return knowledge.Document{}, false
	}
	if !utf8.ValidString(content) {
		logger.Debug("skipping non-UTF-8 file", "file", f.Name)
		return knowledge.Document{}, false
	}

	return knowledge.NewDocument(f.Name, content, mediaTypeFor(f.Name, f.MediaType)), true
}

// mediaTypeFor resolves a document media type from the declared type or the
// file extension, defaulting to plain text.
func mediaTypeFor(name, declared string) string {
	if declared != "" {
		return declared
	}
	if mt := mime.TypeByExtension(path.Ext(name)); mt != "" {
		return mt
	}
	return "text/plain"
}
