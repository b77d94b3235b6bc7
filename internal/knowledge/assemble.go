package knowledge

import (
	"fmt"
	"strings"
)

// Markers delimiting the embedded context inside the system instruction.
const (
	ContextStartMarker = "=== KNOWLEDGE BASE START ==="
	ContextEndMarker   = "=== KNOWLEDGE BASE END ==="
)

// FallbackReply is the reply policy for questions the knowledge base does not
// cover. The model may paraphrase it but must keep the meaning.
const FallbackReply = "I'm sorry, but I can't help with that based on the " +
	"provided documentation. Please contact our support team for further assistance."

// BuildContext concatenates the documents, in order, into one delimited
// context string. Pure and deterministic: equal document lists produce
// identical output.
func BuildContext(docs []Document) string {
	var b strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&b, "--- Document: %s ---\n", doc.Name)
		b.WriteString(doc.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// BuildInstruction wraps the assembled context in the fixed support-agent
// instruction template. Recomputed fresh at every session start so
// knowledge-base edits are always reflected.
func BuildInstruction(docs []Document) string {
	var b strings.Builder

	b.WriteString("You are a technical support agent for a software product. ")
	b.WriteString("Your sole purpose is to help users by answering questions ")
	b.WriteString("about the product documentation provided below.\n\n")

	b.WriteString(ContextStartMarker)
	b.WriteString("\n")
	b.WriteString(BuildContext(docs))
	b.WriteString(ContextEndMarker)
	b.WriteString("\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Answer ONLY from the knowledge base between the markers above.\n")
	b.WriteString("2. If the answer is not in the knowledge base, reply with: \"")
	b.WriteString(FallbackReply)
	b.WriteString("\" You may rephrase this, but keep its meaning.\n")
	b.WriteString("3. Never invent features, behaviors, or facts the knowledge base does not support.\n")
	b.WriteString("4. Be professional, friendly, and concise.\n")

	return b.String()
}
