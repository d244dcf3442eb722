// Package narrative turns retrieved context into a grounded chat conversation
// and streams the model's answer. It defines a provider-agnostic Completer
// with an OpenAI implementation and a deterministic mock for testing.
package narrative

import (
	"context"
	"errors"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Fragment is one piece of streamed model output. A fragment with Err set is
// the last value sent before the channel closes.
type Fragment struct {
	Content string
	Err     error
}

// Completer streams chat completions.
// Implementations must be stateless and safe for concurrent use.
type Completer interface {
	// Stream starts a completion and returns a channel of fragments in arrival
	// order. The channel is closed when the completion ends, fails or ctx is
	// cancelled. An error is returned only if the request could not be started.
	Stream(ctx context.Context, messages []Message) (<-chan Fragment, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "gpt-4o-mini")
	Model string

	// Temperature controls randomness (0 = provider default)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string

	// BaseURL points the client at an OpenAI-compatible endpoint
	BaseURL string
}

// DefaultLLMConfig returns the model settings used for chat answers.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0, // model default
	}
}
