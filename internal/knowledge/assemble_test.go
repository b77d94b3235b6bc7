package knowledge

import (
	"strings"
	"testing"
)

func TestBuildContext_OrderAndDelimiters(t *testing.T) {
	t.Parallel()

	docs := []Document{
		NewDocument("readme.md", "Hello", "text/markdown"),
		NewDocument("guide.txt", "World", "text/plain"),
	}

	got := BuildContext(docs)

	if !strings.Contains(got, "--- Document: readme.md ---\nHello") {
		t.Errorf("missing first document block:\n%s", got)
	}
	if !strings.Contains(got, "--- Document: guide.txt ---\nWorld") {
		t.Errorf("missing second document block:\n%s", got)
	}
	if strings.Index(got, "Hello") > strings.Index(got, "World") {
		t.Errorf("documents out of upload order:\n%s", got)
	}
}

func TestBuildContext_Deterministic(t *testing.T) {
	t.Parallel()

	docs := []Document{
		NewDocument("a.md", "alpha", "text/markdown"),
		NewDocument("b.md", "beta", "text/markdown"),
	}

	first := BuildContext(docs)
	second := BuildContext(docs)
	if first != second {
		t.Error("BuildContext is not deterministic for equal input")
	}

	// Equal by value, different ids: output must still be identical.
	clone := []Document{
		NewDocument("a.md", "alpha", "text/markdown"),
		NewDocument("b.md", "beta", "text/markdown"),
	}
	if BuildContext(clone) != first {
		t.Error("BuildContext output depends on more than name/content")
	}
}

func TestBuildContext_Empty(t *testing.T) {
	t.Parallel()

	if got := BuildContext(nil); got != "" {
		t.Errorf("BuildContext(nil) = %q, want empty", got)
	}
}

func TestBuildInstruction(t *testing.T) {
	t.Parallel()

	docs := []Document{NewDocument("faq.md", "Q: when? A: now.", "text/markdown")}
	got := BuildInstruction(docs)

	start := strings.Index(got, ContextStartMarker)
	end := strings.Index(got, ContextEndMarker)
	if start < 0 || end < 0 {
		t.Fatalf("instruction missing context markers:\n%s", got)
	}
	if start > end {
		t.Fatal("context markers out of order")
	}

	embedded := got[start+len(ContextStartMarker) : end]
	if !strings.Contains(embedded, "Q: when? A: now.") {
		t.Error("document content not embedded verbatim between markers")
	}
	if !strings.Contains(got, FallbackReply) {
		t.Error("instruction missing fallback reply policy")
	}
	if !strings.Contains(got, "Answer ONLY from the knowledge base") {
		t.Error("instruction missing context-only constraint")
	}
}
