package router

import (
	"net/http"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/catalog"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/anthropic"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/cohere"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/google"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/groq"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/llama"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/mistral"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/openai"
)

// Credentials holds vendor keys and endpoint overrides from the environment.
type Credentials struct {
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	GroqKey       string
	GoogleKey     string
	MistralKey    string
	CohereKey     string
	LlamaBaseURL  string
	LlamaKey      string
}

// BuildAdapters constructs the seven vendor adapters. Catalog entries extend model
// allow-lists and may override base URLs; disabled providers are left out.
func BuildAdapters(creds Credentials, cat *catalog.Catalog, httpClient *http.Client) []engine.Adapter {
	all := []engine.Adapter{
		openai.New(openai.Config{
			APIKey:      creds.OpenAIKey,
			BaseURL:     cat.BaseURL(openai.Name, creds.OpenAIBaseURL),
			ExtraModels: cat.Models(openai.Name),
			HTTPClient:  httpClient,
		}),
		anthropic.New(anthropic.Config{
			APIKey:      creds.AnthropicKey,
			BaseURL:     cat.BaseURL(anthropic.Name, ""),
			ExtraModels: cat.Models(anthropic.Name),
			HTTPClient:  httpClient,
		}),
		groq.New(groq.Config{
			APIKey:      creds.GroqKey,
			BaseURL:     cat.BaseURL(groq.Name, groq.DefaultBaseURL),
			ExtraModels: cat.Models(groq.Name),
			HTTPClient:  httpClient,
		}),
		google.New(google.Config{
			APIKey:      creds.GoogleKey,
			BaseURL:     cat.BaseURL(google.Name, ""),
			ExtraModels: cat.Models(google.Name),
			HTTPClient:  httpClient,
		}),
		mistral.New(mistral.Config{
			APIKey:      creds.MistralKey,
			BaseURL:     cat.BaseURL(mistral.Name, mistral.DefaultBaseURL),
			ExtraModels: cat.Models(mistral.Name),
			HTTPClient:  httpClient,
		}),
		cohere.New(cohere.Config{
			APIKey:      creds.CohereKey,
			BaseURL:     cat.BaseURL(cohere.Name, cohere.DefaultBaseURL),
			ExtraModels: cat.Models(cohere.Name),
			HTTPClient:  httpClient,
		}),
		llama.New(llama.Config{
			APIKey:      creds.LlamaKey,
			BaseURL:     cat.BaseURL(llama.Name, creds.LlamaBaseURL),
			ExtraModels: cat.Models(llama.Name),
			HTTPClient:  httpClient,
		}),
	}
	out := make([]engine.Adapter, 0, len(all))
	for _, a := range all {
		if cat.Disabled(a.Name()) {
			continue
		}
		out = append(out, a)
	}
	return out
}
