package anthropic

import (
	"context"
	"iter"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
)

const Name = "anthropic"

var DefaultModels = []string{
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
	"claude-3-7-sonnet-20250219",
	"claude-3-opus-20240229",
	"claude-3-sonnet-20240229",
	"claude-3-haiku-20240307",
}

type Config struct {
	APIKey      string
	BaseURL     string
	ExtraModels []string
	HTTPClient  *http.Client
}

type Adapter struct {
	apiKey string
	models engine.ModelSet
	client sdk.Client
}

func New(cfg Config) *Adapter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	models := engine.NewModelSet(DefaultModels...)
	models.Add(cfg.ExtraModels...)
	return &Adapter{
		apiKey: strings.TrimSpace(cfg.APIKey),
		models: models,
		client: sdk.NewClient(opts...),
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) IsConfigured() bool { return a.apiKey != "" }

func (a *Adapter) ValidateConfig(model string) bool { return a.models.Has(model) }

func (a *Adapter) EstimateTokens(text string) int { return engine.EstimateTokens(text) }

func (a *Adapter) Models() []string { return a.models.List() }

// params puts the system prompt in the dedicated System field.
func params(p engine.Params) sdk.MessageNewParams {
	turns := engine.Turns(p)
	msgs := make([]sdk.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.Assistant {
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(t.Content)))
			continue
		}
		msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(t.Content)))
	}
	out := sdk.MessageNewParams{
		Model:       sdk.Model(p.Model),
		MaxTokens:   int64(p.MaxTokensOrDefault()),
		Messages:    msgs,
		Temperature: sdk.Float(p.TemperatureOrDefault()),
	}
	if strings.TrimSpace(p.SystemPrompt) != "" {
		out.System = []sdk.TextBlockParam{{Text: p.SystemPrompt}}
	}
	return out
}

func (a *Adapter) GenerateResponse(ctx context.Context, p engine.Params) (*engine.Response, error) {
	resp, err := a.client.Messages.New(ctx, params(p))
	if err != nil {
		return nil, err
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	if tokens == 0 {
		tokens = engine.EstimateTokens(p.Prompt + text.String())
	}
	model := string(resp.Model)
	if model == "" {
		model = p.Model
	}
	return &engine.Response{
		Content:      text.String(),
		TokensUsed:   tokens,
		Model:        model,
		FinishReason: string(resp.StopReason),
	}, nil
}

func (a *Adapter) StreamResponse(ctx context.Context, p engine.Params) iter.Seq2[engine.Chunk, error] {
	return func(yield func(engine.Chunk, error) bool) {
		stream := a.client.Messages.NewStreaming(ctx, params(p))
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case sdk.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
					if !yield(engine.Chunk{Content: delta.Text}, nil) {
						return
					}
				}
			case sdk.MessageStopEvent:
				yield(engine.Chunk{Done: true}, nil)
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(engine.Chunk{}, err)
			return
		}
		yield(engine.Chunk{Done: true}, nil)
	}
}
