// Package oaicompat implements engine.Adapter for vendors that speak the OpenAI
// chat-completions protocol (OpenAI itself, Groq, Mistral).
package oaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
)

type Options struct {
	Name       string
	APIKey     string
	BaseURL    string
	Models     engine.ModelSet
	HTTPClient *http.Client
}

type Adapter struct {
	name   string
	apiKey string
	models engine.ModelSet
	client *openai.Client
}

func New(o Options) *Adapter {
	cfg := openai.DefaultConfig(o.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(o.BaseURL), "/"); base != "" {
		cfg.BaseURL = base
	}
	if o.HTTPClient != nil {
		cfg.HTTPClient = o.HTTPClient
	}
	models := o.Models
	if models == nil {
		models = engine.NewModelSet()
	}
	return &Adapter{
		name:   o.Name,
		apiKey: strings.TrimSpace(o.APIKey),
		models: models,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) IsConfigured() bool { return a.apiKey != "" }

func (a *Adapter) ValidateConfig(model string) bool { return a.models.Has(model) }

func (a *Adapter) EstimateTokens(text string) int { return engine.EstimateTokens(text) }

func (a *Adapter) Models() []string { return a.models.List() }

func (a *Adapter) request(p engine.Params, stream bool) openai.ChatCompletionRequest {
	// go-openai omits a zero temperature; the smallest float keeps an explicit 0 on the wire.
	temp := float32(p.TemperatureOrDefault())
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    Messages(p),
		Temperature: temp,
		MaxTokens:   p.MaxTokensOrDefault(),
		Stream:      stream,
	}
}

// Messages renders a leading system message, the alternated context and the prompt.
func Messages(p engine.Params) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(p.Context)+2)
	if strings.TrimSpace(p.SystemPrompt) != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.SystemPrompt})
	}
	for _, t := range engine.Turns(p) {
		role := openai.ChatMessageRoleUser
		if t.Assistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return out
}

func (a *Adapter) GenerateResponse(ctx context.Context, p engine.Params) (*engine.Response, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.request(p, false))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: completion returned no choices", a.name)
	}
	choice := resp.Choices[0]
	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = engine.EstimateTokens(p.Prompt + choice.Message.Content)
	}
	model := resp.Model
	if model == "" {
		model = p.Model
	}
	return &engine.Response{
		Content:      choice.Message.Content,
		TokensUsed:   tokens,
		Model:        model,
		FinishReason: string(choice.FinishReason),
	}, nil
}

func (a *Adapter) StreamResponse(ctx context.Context, p engine.Params) iter.Seq2[engine.Chunk, error] {
	return func(yield func(engine.Chunk, error) bool) {
		stream, err := a.client.CreateChatCompletionStream(ctx, a.request(p, true))
		if err != nil {
			yield(engine.Chunk{}, err)
			return
		}
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				yield(engine.Chunk{Done: true}, nil)
				return
			}
			if err != nil {
				yield(engine.Chunk{}, err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			done := resp.Choices[0].FinishReason != ""
			if delta == "" && !done {
				continue
			}
			if !yield(engine.Chunk{Content: delta, Done: done}, nil) || done {
				return
			}
		}
	}
}
