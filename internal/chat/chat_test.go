package chat

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/supportchat/supportchat/internal/knowledge"
	"github.com/supportchat/supportchat/internal/log"
	"github.com/supportchat/supportchat/internal/provider"
	"github.com/supportchat/supportchat/internal/session"
)

// scriptedConversation yields a fixed chunk sequence, optionally ending in
// an error.
type scriptedConversation struct {
	chunks   []provider.Chunk
	finalErr error
}

func (c *scriptedConversation) SendStream(context.Context, string) iter.Seq2[provider.Chunk, error] {
	return func(yield func(provider.Chunk, error) bool) {
		for _, chunk := range c.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if c.finalErr != nil {
			yield(provider.Chunk{}, c.finalErr)
		}
	}
}

type scriptedClient struct {
	conv *scriptedConversation
}

func (c *scriptedClient) CountTokens(context.Context, string) (int, error) { return 500, nil }

func (c *scriptedClient) StartChat(context.Context, string) (provider.Conversation, error) {
	return c.conv, nil
}

func newHandler(t *testing.T, conv *scriptedConversation) (*Handler, *session.Manager) {
	t.Helper()
	m := session.NewManager(&scriptedClient{conv: conv}, log.NewNop())
	m.AddDocuments([]knowledge.Document{knowledge.NewDocument("guide.md", "setup steps", "text/markdown")})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return NewHandler(m, log.NewNop()), m
}

func TestSendTurnStreamsFragmentsInOrder(t *testing.T) {
	t.Parallel()

	conv := &scriptedConversation{chunks: []provider.Chunk{
		{Text: "First "},
		{Text: "run the "},
		{Text: "installer."},
		{Usage: &provider.Usage{InputTokens: 30, OutputTokens: 12}},
	}}
	h, m := newHandler(t, conv)

	var got []string
	msg, err := h.SendTurn(context.Background(), "how do I install?", func(text string) error {
		got = append(got, text)
		return nil
	})
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}

	want := []string{"First ", "run the ", "installer."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fragments mismatch (-want +got):\n%s", diff)
	}
	if msg.Text != "First run the installer." || msg.IsError {
		t.Errorf("finalized message = %+v", msg)
	}
	if u := m.Usage(); u.InputTokens != 530 || u.OutputTokens != 12 {
		t.Errorf("Usage() = %+v, want {530 12}", u)
	}
}

func TestSendTurnWithoutUsageReport(t *testing.T) {
	t.Parallel()

	conv := &scriptedConversation{chunks: []provider.Chunk{{Text: "answer"}}}
	h, m := newHandler(t, conv)

	if _, err := h.SendTurn(context.Background(), "question", nil); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if u := m.Usage(); u.InputTokens != 500 || u.OutputTokens != 0 {
		t.Errorf("Usage() = %+v, want counters unchanged by zero-usage turn", u)
	}
}

func TestSendTurnStreamFailure(t *testing.T) {
	t.Parallel()

	conv := &scriptedConversation{
		chunks:   []provider.Chunk{{Text: "partial "}},
		finalErr: errors.New("rpc error: code = Unknown desc = stream terminated"),
	}
	h, m := newHandler(t, conv)

	msg, err := h.SendTurn(context.Background(), "question", nil)
	if err != nil {
		t.Fatalf("SendTurn() error = %v, failures must surface as messages", err)
	}
	if !msg.IsError {
		t.Fatalf("finalized message = %+v, want error-flagged", msg)
	}
	if msg.Text == "" || msg.Text == "partial " {
		t.Errorf("diagnostic = %q, want user-facing text, not the partial reply", msg.Text)
	}

	if u := m.Usage(); u.InputTokens != 500 || u.OutputTokens != 0 {
		t.Errorf("Usage() = %+v, counters must not change on failure", u)
	}

	msgs := m.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want greeting + user + error", len(msgs))
	}
	if msgs[1].Role != session.RoleUser || msgs[1].Text != "question" {
		t.Errorf("user message = %+v, want retained", msgs[1])
	}

	// The session recovers for the next turn.
	conv.finalErr = nil
	conv.chunks = []provider.Chunk{{Text: "recovered"}}
	if _, err := h.SendTurn(context.Background(), "retry", nil); err != nil {
		t.Errorf("SendTurn() after failure error = %v", err)
	}
}

func TestSendTurnResetMidStream(t *testing.T) {
	t.Parallel()

	conv := &scriptedConversation{chunks: []provider.Chunk{
		{Text: "first "},
		{Text: "second"},
		{Usage: &provider.Usage{InputTokens: 40, OutputTokens: 25}},
	}}
	h, m := newHandler(t, conv)

	// The client tears the session down while fragments are still arriving.
	_, err := h.SendTurn(context.Background(), "question", func(string) error {
		m.Reset()
		return nil
	})
	if !errors.Is(err, session.ErrInactive) {
		t.Fatalf("SendTurn() error = %v, want ErrInactive for a reset-out turn", err)
	}

	if got := m.Usage(); got != (session.Usage{}) {
		t.Errorf("Usage() = %+v after mid-stream reset, want zero", got)
	}
	if msgs := m.Messages(); len(msgs) != 0 {
		t.Errorf("messages = %v after mid-stream reset, want empty", msgs)
	}
}

func TestSendTurnPreconditions(t *testing.T) {
	t.Parallel()

	h, m := newHandler(t, &scriptedConversation{})

	if _, err := h.SendTurn(context.Background(), "  ", nil); !errors.Is(err, session.ErrBlankMessage) {
		t.Errorf("blank SendTurn() error = %v, want ErrBlankMessage", err)
	}

	m.Reset()
	if _, err := h.SendTurn(context.Background(), "hello", nil); !errors.Is(err, session.ErrInactive) {
		t.Errorf("inactive SendTurn() error = %v, want ErrInactive", err)
	}
}

func TestDiagnose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		connectivity bool
	}{
		{"unknown status", errors.New("rpc error: code = Unknown"), true},
		{"generic failure", errors.New("model overloaded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := diagnose(tt.err)
			isConnectivity := got == diagnose(errors.New("unknown"))
			if isConnectivity != tt.connectivity {
				t.Errorf("diagnose(%v) = %q, connectivity = %v, want %v", tt.err, got, isConnectivity, tt.connectivity)
			}
		})
	}
}
