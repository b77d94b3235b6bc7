// Package session owns the live workspace: the uploaded document list, the
// active model conversation, the chat transcript, and the cumulative token
// counters. Exactly one session is active at a time and all state is guarded
// by a single mutex.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supportchat/supportchat/internal/knowledge"
	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/provider"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one finalized entry in the chat transcript. The transcript is
// append-only; messages are never mutated after creation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"isError,omitempty"`
}

// Usage is the cumulative token accounting for the active session.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Manager coordinates document state and the session lifecycle.
type Manager struct {
	client provider.Client
	logger log.Logger

	mu          sync.Mutex
	docs        []knowledge.Document
	active      bool
	busy        bool
	instruction string
	conv        provider.Conversation
	usage       Usage
	messages    []Message

	// generation identifies the current session instance. Turn finalization
	// carries the generation captured at BeginTurn; a reset in between
	// invalidates it so a stale turn can never touch a later session's
	// transcript or counters.
	generation uint64
}

// NewManager creates a manager with no documents and no active session.
func NewManager(client provider.Client, logger log.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// AddDocuments appends documents to the workspace. Additions while a session
// is active do not alter the running session's instruction; they take effect
// on the next start.
func (m *Manager) AddDocuments(docs []knowledge.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, knowledge.CopyDocuments(docs)...)
}

// ReplaceDocuments swaps the workspace document list, as when loading a
// saved knowledge base. It refuses while a session is active; callers reset
// first.
func (m *Manager) ReplaceDocuments(docs []knowledge.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrActive
	}
	m.docs = knowledge.CopyDocuments(docs)
	return nil
}

// ClearDocuments empties the workspace document list. It refuses while a
// session is active.
func (m *Manager) ClearDocuments() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrActive
	}
	m.docs = nil
	return nil
}

// RemoveDocument deletes one document from the workspace by id. It refuses
// while a session is active.
func (m *Manager) RemoveDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrActive
	}
	for i, d := range m.docs {
		if d.ID == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("document %q not found", id)
}

// Documents returns a value copy of the workspace document list.
func (m *Manager) Documents() []knowledge.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return knowledge.CopyDocuments(m.docs)
}

// Start opens a new session over the current document list. The instruction
// is assembled from the documents, an initial token estimate is requested
// (a counting failure is non-fatal and falls back to zero), and the
// transcript is seeded with a greeting. On provider failure no partial
// session state is left behind.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return ErrActive
	}
	if len(m.docs) == 0 {
		m.mu.Unlock()
		return ErrNoDocuments
	}
	docs := knowledge.CopyDocuments(m.docs)
	m.mu.Unlock()

	instruction := knowledge.BuildInstruction(docs)

	estimate, err := m.client.CountTokens(ctx, instruction)
	if err != nil {
		m.logger.Warn("token estimate unavailable, assuming zero", "error", err)
		estimate = 0
	}

	conv, err := m.client.StartChat(ctx, instruction)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInit, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrActive
	}
	m.instruction = instruction
	m.conv = conv
	m.usage = Usage{InputTokens: estimate}
	m.messages = []Message{newMessage(RoleModel, greeting(len(docs)), false)}
	m.active = true

	m.logger.Info("session started", "documents", len(docs), "instruction_tokens", estimate)
	return nil
}

// Reset tears down the active session: conversation handle, transcript, and
// counters are discarded. Uploaded documents are kept.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// FullReset tears down the session and clears the document workspace.
func (m *Manager) FullReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.docs = nil
}

func (m *Manager) resetLocked() {
	m.active = false
	m.busy = false
	m.instruction = ""
	m.conv = nil
	m.usage = Usage{}
	m.messages = nil
	m.generation++
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Usage returns the cumulative token counters for the active session.
func (m *Manager) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// Messages returns a copy of the transcript.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// BeginTurn validates preconditions for one exchange, appends the user
// message to the transcript, and marks the session busy. The returned
// conversation is used for the stream and the generation ties the turn to
// this session instance; the caller must finish the turn with CompleteTurn
// or FailTurn, passing the generation back.
func (m *Manager) BeginTurn(text string) (provider.Conversation, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return nil, 0, ErrInactive
	}
	if m.busy {
		return nil, 0, ErrTurnInFlight
	}
	if strings.TrimSpace(text) == "" {
		return nil, 0, ErrBlankMessage
	}
	m.messages = append(m.messages, newMessage(RoleUser, text, false))
	m.busy = true
	return m.conv, m.generation, nil
}

// CompleteTurn finalizes a successful exchange: the accumulated reply joins
// the transcript and the counters grow by the reported usage. Counters never
// decrease; a missing or negative report counts as zero. A generation that
// no longer matches means the session was reset while the turn streamed: the
// finalization is discarded and ok is false.
func (m *Manager) CompleteTurn(generation uint64, text string, usage *provider.Usage) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || generation != m.generation {
		m.logger.Debug("discarding stale turn completion")
		return Message{}, false
	}
	msg := newMessage(RoleModel, text, false)
	m.messages = append(m.messages, msg)
	if usage != nil {
		m.usage.InputTokens += max(usage.InputTokens, 0)
		m.usage.OutputTokens += max(usage.OutputTokens, 0)
	}
	m.busy = false
	return msg, true
}

// FailTurn finalizes a failed exchange with an error-flagged model message.
// Counters are left unchanged. Like CompleteTurn, a stale generation is
// discarded.
func (m *Manager) FailTurn(generation uint64, diagnostic string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || generation != m.generation {
		m.logger.Debug("discarding stale turn failure")
		return Message{}, false
	}
	msg := newMessage(RoleModel, diagnostic, true)
	m.messages = append(m.messages, msg)
	m.busy = false
	return msg, true
}

func newMessage(role Role, text string, isError bool) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
		IsError:   isError,
	}
}

func greeting(docCount int) string {
	noun := "documents"
	if docCount == 1 {
		noun = "document"
	}
	return fmt.Sprintf("Hello! I've reviewed the %d %s you provided. How can I help you today?", docCount, noun)
}
