package story

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/pkg/anthropic"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1024
	defaultTimeout   = 30 * time.Second
)

const systemPrompt = `You rewrite supply-chain product stories. Keep every fact, number, ` +
	`place and name from the draft exactly as given and do not invent new ones. ` +
	`Write in the first person as the product, warm and concise, in plain text ` +
	`paragraphs. Reply with the story only.`

// Narrator polishes template stories through an LLM. A nil Narrator or a
// Narrator without a client returns the template story unchanged.
type Narrator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// NarratorOption configures a Narrator.
type NarratorOption func(*Narrator)

// WithModel sets the model used for narration.
func WithModel(model string) NarratorOption {
	return func(n *Narrator) {
		if model != "" {
			n.model = model
		}
	}
}

// WithTimeout bounds each narration call.
func WithTimeout(d time.Duration) NarratorOption {
	return func(n *Narrator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// NewNarrator creates a Narrator backed by client.
func NewNarrator(client anthropic.Client, opts ...NarratorOption) *Narrator {
	n := &Narrator{
		client:    client,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		timeout:   defaultTimeout,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Tell returns the product story, polished by the LLM when one is
// configured. The second result reports whether the LLM text was used; any
// LLM failure falls back to the template story.
func (n *Narrator) Tell(ctx context.Context, productID string, events []model.TimelineEvent) (string, bool, error) {
	draft, err := Generate(productID, events)
	if err != nil {
		return "", false, err
	}
	if n == nil || n.client == nil {
		return draft, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	resp, err := n.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       n.model,
		MaxTokens:   n.maxTokens,
		System:      systemPrompt,
		CacheSystem: true,
		Prompt:      draft,
	})
	if err != nil {
		zap.L().Warn("story: narration failed, using template",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return draft, false, nil
	}
	resp.Usage.Log(n.model, "story")

	text := resp.Text
	if text == "" {
		return draft, false, nil
	}
	return text, true, nil
}
