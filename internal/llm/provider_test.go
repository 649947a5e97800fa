package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortex-emotion/internal/config"
)

var testSchema = &JSONSchema{
	Name:   "emotion_analysis",
	Schema: map[string]any{"type": "object"},
}

func testRequest() *ChatRequest {
	return &ChatRequest{
		SystemPrompt: "classify",
		Messages:     []Message{{Role: "user", Content: "I'm thrilled!"}},
		Schema:       testSchema,
	}
}

func TestOllamaChat(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:           "llama3.2",
			Message:         ollamaMessage{Role: "assistant", Content: `{"primaryEmotion":"excited"}`},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 12,
			EvalCount:       8,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(&ProviderConfig{Endpoint: server.URL, Model: "llama3.2"})
	resp, err := p.Chat(context.Background(), testRequest())
	require.NoError(t, err)

	assert.False(t, got.Stream)
	assert.Equal(t, "llama3.2", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "classify", got.Messages[0].Content)
	assert.Equal(t, "object", got.Format["type"])
	assert.Equal(t, 512, got.Options.NumPredict)

	assert.Equal(t, `{"primaryEmotion":"excited"}`, resp.Content)
	assert.Equal(t, 20, resp.TokensUsed)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestOllamaChatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p := NewOllamaProvider(&ProviderConfig{Endpoint: server.URL})
	_, err := p.Chat(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaChatHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := NewOllamaProvider(&ProviderConfig{Endpoint: server.URL})
	_, err := p.Chat(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func tagsServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOllamaAvailable(t *testing.T) {
	withModels := tagsServer(t, `{"models":[{"name":"llama3.2"}]}`)
	assert.True(t, NewOllamaProvider(&ProviderConfig{Endpoint: withModels.URL}).Available())

	empty := tagsServer(t, `{"models":[]}`)
	assert.False(t, NewOllamaProvider(&ProviderConfig{Endpoint: empty.URL}).Available())
}

func TestIsRemoteEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		remote   bool
	}{
		{"http://127.0.0.1:11434", false},
		{"http://localhost:11434", false},
		{"http://[::1]:11434", false},
		{"http://gpu-box.lan:11434", true},
		{"://bad", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.remote, isRemoteEndpoint(tt.endpoint), tt.endpoint)
	}
}

func TestOpenAIChat(t *testing.T) {
	var got openAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`)
	}))
	defer server.Close()

	p := NewOpenAIProvider(&ProviderConfig{Endpoint: server.URL, APIKey: "sk-test"})
	assert.True(t, p.Available())
	assert.Equal(t, "openai", p.Name())

	resp, err := p.Chat(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	assert.True(t, got.ResponseFormat.JSONSchema.Strict)
	assert.Equal(t, "emotion_analysis", got.ResponseFormat.JSONSchema.Name)

	assert.Equal(t, "{}", resp.Content)
	assert.Equal(t, 12, resp.TokensUsed)
	assert.Equal(t, 10, resp.PromptTokens)
}

func TestOpenAIChatFailures(t *testing.T) {
	p := NewOpenAIProvider(&ProviderConfig{})
	assert.False(t, p.Available())
	_, err := p.Chat(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoAPIKey)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"model":"x","choices":[]}`)
	}))
	defer server.Close()

	p = NewGroqProvider(&ProviderConfig{Endpoint: server.URL, APIKey: "k"})
	assert.Equal(t, "groq", p.Name())
	_, err = p.Chat(context.Background(), testRequest())
	assert.ErrorContains(t, err, "no choices")
}

func TestResponsesChat(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/responses"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "resp_1",
			"object": "response",
			"created_at": 0,
			"model": "gpt-4o-mini",
			"status": "completed",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "text": "{\"primaryEmotion\":\"calm\"}", "annotations": []}]
			}],
			"usage": {
				"input_tokens": 5,
				"output_tokens": 3,
				"total_tokens": 8,
				"input_tokens_details": {"cached_tokens": 0},
				"output_tokens_details": {"reasoning_tokens": 0}
			}
		}`)
	}))
	defer server.Close()

	p := NewResponsesProvider(&ProviderConfig{Endpoint: server.URL, APIKey: "sk-test"})
	assert.Equal(t, "openai-responses", p.Name())

	resp, err := p.Chat(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "classify", body["instructions"])
	text, ok := body["text"].(map[string]any)
	require.True(t, ok)
	format, ok := text["format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "emotion_analysis", format["name"])

	assert.Equal(t, `{"primaryEmotion":"calm"}`, resp.Content)
	assert.Equal(t, 8, resp.TokensUsed)
	assert.Equal(t, "completed", resp.FinishReason)
}

func TestResponsesChatWithoutKey(t *testing.T) {
	p := NewResponsesProvider(&ProviderConfig{})
	assert.False(t, p.Available())
	_, err := p.Chat(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := config.Default().LLM
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	cfg.DefaultProvider = "openai"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	mp, ok := p.(*MetricsProvider)
	require.True(t, ok)
	assert.True(t, mp.Available(), "key comes from the environment")
	assert.IsType(t, &OpenAIProvider{}, mp.Unwrap())

	cfg.DefaultProvider = "missing"
	_, err = NewProvider(cfg)
	assert.Error(t, err)

	_, err = NewProviderByName("carrier-pigeon", DefaultConfig("carrier-pigeon"))
	assert.ErrorContains(t, err, "unknown provider")
}

type failingProvider struct{}

func (failingProvider) Chat(context.Context, *ChatRequest) (*ChatResponse, error) {
	return nil, errors.New("boom")
}
func (failingProvider) Name() string    { return "failing" }
func (failingProvider) Available() bool { return false }

func TestMetricsProviderPassesErrorsThrough(t *testing.T) {
	p := NewMetricsProvider(failingProvider{})
	assert.Equal(t, "failing", p.Name())
	assert.False(t, p.Available())

	_, err := p.Chat(context.Background(), &ChatRequest{})
	assert.EqualError(t, err, "boom")
}

func TestWithDefaults(t *testing.T) {
	cfg := withDefaults(&ProviderConfig{Model: "custom"}, "groq")
	assert.Equal(t, "groq", cfg.Name)
	assert.Equal(t, "custom", cfg.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Timeout)

	assert.Equal(t, "ollama", withDefaults(nil, "ollama").Name)
}
