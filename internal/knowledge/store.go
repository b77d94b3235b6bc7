package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for store operations. Check with errors.Is().
var (
	// ErrEmptyName indicates a save was attempted with a blank name.
	ErrEmptyName = errors.New("knowledge base name must not be empty")

	// ErrNoDocuments indicates a save was attempted with no documents.
	ErrNoDocuments = errors.New("knowledge base must contain at least one document")

	// ErrNotFound indicates the requested knowledge base does not exist.
	ErrNotFound = errors.New("knowledge base not found")

	// ErrQuotaExceeded indicates durable storage rejected the write for
	// capacity reasons, distinguished from generic write failures so the UI
	// can tell the user to free up space.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Store persists named knowledge-base snapshots in a single JSON file: one
// slot holding the array of all records, read fully on open and rewritten
// fully on every save or delete.
//
// The in-memory index is only updated after a durable write succeeds, so the
// store never claims a mutation happened when the write failed.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	records []Base
}

// OpenStore opens the record file at path, creating parent directories as
// needed. A missing file is not an error — the store starts empty.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Store{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading knowledge base file: %w", err)
	}

	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("parsing knowledge base file: %w", err)
	}

	logger.Debug("loaded knowledge bases", "count", len(s.records), "path", path)
	return s, nil
}

// Save creates a new record from a value copy of docs, writes the complete
// updated record set to disk, and only then updates the in-memory index.
// On failure no record is added and no partial state is visible. The name is
// trimmed and must not be blank.
func (s *Store) Save(name string, docs []Document) (*Base, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Base{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		Documents: CopyDocuments(docs),
	}

	updated := make([]Base, 0, len(s.records)+1)
	updated = append(updated, s.records...)
	updated = append(updated, rec)

	if err := s.write(updated); err != nil {
		return nil, err
	}
	s.records = updated

	s.logger.Debug("saved knowledge base", "id", rec.ID, "name", rec.Name, "documents", len(rec.Documents))
	return &rec, nil
}

// List returns all persisted records in insertion order. The returned slice
// and its document lists are copies.
func (s *Store) List() []Base {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Base, len(s.records))
	for i, rec := range s.records {
		out[i] = rec
		out[i].Documents = CopyDocuments(rec.Documents)
	}
	return out
}

// Load returns a value copy of the document list of the record with the
// given id.
func (s *Store) Load(id string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return CopyDocuments(rec.Documents), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes exactly one record by id, writing the updated set to disk
// before touching the in-memory index. A write failure leaves the prior
// state fully intact.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, rec := range s.records {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := make([]Base, 0, len(s.records)-1)
	updated = append(updated, s.records[:idx]...)
	updated = append(updated, s.records[idx+1:]...)

	if err := s.write(updated); err != nil {
		return err
	}
	s.records = updated

	s.logger.Debug("deleted knowledge base", "id", id)
	return nil
}

// write serializes records and replaces the slot file atomically
// (temp file + rename).
func (s *Store) write(records []Base) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding knowledge bases: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return classifyWriteError(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return classifyWriteError(err)
	}
	return nil
}

// classifyWriteError maps capacity failures to ErrQuotaExceeded and wraps
// everything else as a generic storage error.
func classifyWriteError(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return fmt.Errorf("writing knowledge base file: %w", err)
}
