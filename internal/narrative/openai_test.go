package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkEvent(content string) string {
	data, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"delta":         map[string]any{"content": content},
			"finish_reason": nil,
		}},
	})
	return fmt.Sprintf("data: %s\n\n", data)
}

func fakeChatServer(t *testing.T, fragments []string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			_ = json.Unmarshal(body, captured)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			_, _ = io.WriteString(w, chunkEvent(f))
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
}

func TestNewOpenAICompleter_Config(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAICompleter(LLMConfig{Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOpenAICompleter(LLMConfig{APIKey: "sk-test"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenAICompleter_Stream(t *testing.T) {
	var captured map[string]any
	srv := fakeChatServer(t, []string{"Hel", "", "lo"}, &captured)
	defer srv.Close()

	completer, err := NewOpenAICompleter(LLMConfig{Model: "gpt-4o-mini", APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	fragments, err := completer.Stream(context.Background(), Conversation("grounded prompt", "What is X?"))
	require.NoError(t, err)

	var got []string
	for f := range fragments {
		require.NoError(t, f.Err)
		got = append(got, f.Content)
	}
	assert.Equal(t, []string{"Hel", "", "lo"}, got)

	assert.Equal(t, true, captured["stream"])
	assert.Equal(t, "gpt-4o-mini", captured["model"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "grounded prompt", messages[0].(map[string]any)["content"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAICompleter_StartFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	completer, err := NewOpenAICompleter(LLMConfig{Model: "gpt-4o-mini", APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	_, err = completer.Stream(context.Background(), Conversation("sys", "user"))
	assert.ErrorIs(t, err, ErrLLMFailed)
	assert.Equal(t, 1, calls, "requests must not be retried")
}

func TestOpenAICompleter_EmptyMessages(t *testing.T) {
	completer, err := NewOpenAICompleter(LLMConfig{Model: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)

	_, err = completer.Stream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
