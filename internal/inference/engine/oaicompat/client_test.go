package oaicompat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestAdapter(t *testing.T, h http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{
		Name:    "openai",
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Models:  engine.NewModelSet("gpt-4o-mini"),
	})
}

func TestGenerateResponse(t *testing.T) {
	var got capturedRequest
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Hello!"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}}`)
	})

	resp, err := a.GenerateResponse(t.Context(), engine.Params{
		Prompt:       "Hi",
		Context:      []string{"USER: earlier", "ASSISTANT: reply"},
		SystemPrompt: "be brief",
		Model:        "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.Equal(t, &engine.Response{Content: "Hello!", TokensUsed: 12, Model: "gpt-4o-mini", FinishReason: "stop"}, resp)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "Hi", got.Messages[3].Content)
}

func TestGenerateResponseEstimatesMissingUsage(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"abcd"},"finish_reason":"stop"}]}`)
	})
	resp, err := a.GenerateResponse(t.Context(), engine.Params{Prompt: "abcd", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TokensUsed)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
}

func TestGenerateResponseNoChoices(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	})
	_, err := a.GenerateResponse(t.Context(), engine.Params{Prompt: "x", Model: "gpt-4o-mini"})
	require.Error(t, err)
}

func TestGenerateResponseVendorError(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	})
	_, err := a.GenerateResponse(t.Context(), engine.Params{Prompt: "x", Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestStreamResponse(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range []string{
			`{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var text string
	var done bool
	for chunk, err := range a.StreamResponse(t.Context(), engine.Params{Prompt: "Hi", Model: "gpt-4o-mini"}) {
		require.NoError(t, err)
		text += chunk.Content
		done = chunk.Done
	}
	assert.Equal(t, "Hello", text)
	assert.True(t, done)
}

func TestConfigured(t *testing.T) {
	assert.False(t, New(Options{Name: "groq"}).IsConfigured())
	a := New(Options{Name: "groq", APIKey: " k ", Models: engine.NewModelSet("m")})
	assert.True(t, a.IsConfigured())
	assert.True(t, a.ValidateConfig("m"))
	assert.False(t, a.ValidateConfig("other"))
	assert.Equal(t, "groq", a.Name())
}

func TestGenerateResponseKeepsExplicitZeroTemperature(t *testing.T) {
	var raw map[string]any
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	})

	zero := 0.0
	_, err := a.GenerateResponse(t.Context(), engine.Params{Prompt: "hi", Model: "gpt-4o-mini", Temperature: &zero})
	require.NoError(t, err)

	temp, ok := raw["temperature"]
	require.True(t, ok, "temperature missing from request body: %v", raw)
	assert.InDelta(t, 0, temp, 1e-6)
}
