package narrative

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAICompleter implements Completer using OpenAI's streaming chat API.
type OpenAICompleter struct {
	client openai.Client
	config LLMConfig
}

// NewOpenAICompleter creates an OpenAI-backed Completer. Failed requests are not retried.
func NewOpenAICompleter(config LLMConfig) (*OpenAICompleter, error) {
	// Use config API key or fall back to environment variable
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set OPENAI_API_KEY or provide in config)", ErrInvalidConfig)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAICompleter{
		client: openai.NewClient(opts...),
		config: config,
	}, nil
}

// Stream sends the conversation with stream=true and relays each delta.
// The channel is unbuffered: the reader sets the pace of the upstream read.
func (o *OpenAICompleter) Stream(ctx context.Context, messages []Message) (<-chan Fragment, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrInvalidConfig)
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.config.Model),
		Messages: toOpenAIMessages(messages),
	}

	// Set optional parameters if configured
	if o.config.Temperature > 0 {
		params.Temperature = openai.Float(float64(o.config.Temperature))
	}
	if o.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.config.MaxTokens))
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)

	// The first Next performs the HTTP request, so connection and status
	// failures surface here instead of inside the stream.
	if !stream.Next() {
		err := stream.Err()
		stream.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLLMFailed, err)
		}
		out := make(chan Fragment)
		close(out)
		return out, nil
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 {
				if !send(ctx, out, Fragment{Content: chunk.Choices[0].Delta.Content}) {
					return
				}
			}
			if !stream.Next() {
				break
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			send(ctx, out, Fragment{Err: fmt.Errorf("%w: %w", ErrLLMFailed, err)})
		}
	}()

	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// send delivers f unless ctx is cancelled first.
func send(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
