package provider

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// GeminiConfig carries the settings the Gemini backend needs.
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	Temperature float32
}

// Gemini talks to the Gemini API through the official SDK.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
}

var _ Client = (*Gemini)(nil)

// NewGemini creates a Gemini-backed client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

// CountTokens returns the model's token count for text.
func (g *Gemini) CountTokens(ctx context.Context, text string) (int, error) {
	resp, err := g.client.Models.CountTokens(ctx, g.cfg.ModelName, genai.Text(text), nil)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return int(resp.TotalTokens), nil
}

// StartChat opens a conversation with the system instruction applied.
func (g *Gemini) StartChat(ctx context.Context, instruction string) (Conversation, error) {
	chat, err := g.client.Chats.Create(ctx, g.cfg.ModelName, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Temperature),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &geminiConversation{chat: chat}, nil
}

type geminiConversation struct {
	chat *genai.Chat
}

// SendStream forwards one message and adapts the SDK stream into chunks.
// Usage metadata is attached only to the final chunk that carries it, so
// consumers see at most one authoritative Usage per turn.
func (c *geminiConversation) SendStream(ctx context.Context, text string) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for resp, err := range c.chat.SendMessageStream(ctx, genai.Part{Text: text}) {
			if err != nil {
				yield(Chunk{}, fmt.Errorf("stream message: %w", err))
				return
			}
			chunk := Chunk{Text: resp.Text()}
			if md := resp.UsageMetadata; md != nil {
				chunk.Usage = &Usage{
					InputTokens:  int(md.PromptTokenCount),
					OutputTokens: int(md.CandidatesTokenCount),
				}
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
