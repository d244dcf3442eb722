package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGenerationFailed = errors.New("answer generation failed")
)

// Generator produces answers from an already-assembled system prompt.
// It must not perform retrieval or prompt construction.
type Generator struct {
	completer Completer
	config    LLMConfig
}

// NewGenerator creates a generator with the given Completer implementation.
func NewGenerator(completer Completer, config LLMConfig) *Generator {
	return &Generator{
		completer: completer,
		config:    config,
	}
}

// Model returns the configured chat model.
func (g *Generator) Model() string {
	return g.config.Model
}

// Conversation builds the two-message exchange: grounded system prompt, then the user's message.
func Conversation(systemPrompt, userMessage string) []Message {
	return []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: userMessage},
	}
}

// Stream starts the completion for userMessage under systemPrompt.
func (g *Generator) Stream(ctx context.Context, systemPrompt, userMessage string) (<-chan Fragment, error) {
	if g.completer == nil {
		return nil, fmt.Errorf("%w: completer is required", ErrGenerationFailed)
	}
	if systemPrompt == "" {
		return nil, fmt.Errorf("%w: system prompt is required", ErrGenerationFailed)
	}
	if userMessage == "" {
		return nil, fmt.Errorf("%w: user message is required", ErrGenerationFailed)
	}

	fragments, err := g.completer.Stream(ctx, Conversation(systemPrompt, userMessage))
	if err != nil {
		return nil, fmt.Errorf("%w: completion failed: %w", ErrGenerationFailed, err)
	}
	return fragments, nil
}

// Generate runs Stream and collects the full answer.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	fragments, err := g.Stream(ctx, systemPrompt, userMessage)
	if err != nil {
		return "", err
	}
	return Collect(fragments)
}

// Collect drains fragments and concatenates their content. It stops at the
// first error fragment.
func Collect(fragments <-chan Fragment) (string, error) {
	var b strings.Builder
	for f := range fragments {
		if f.Err != nil {
			return b.String(), f.Err
		}
		b.WriteString(f.Content)
	}
	return b.String(), nil
}
