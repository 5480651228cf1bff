package google

import (
	"context"
	"iter"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
)

const Name = "google"

var DefaultModels = []string{
	"gemini-2.0-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
	"gemini-1.0-pro",
}

type Config struct {
	APIKey      string
	BaseURL     string
	ExtraModels []string
	HTTPClient  *http.Client
}

type Adapter struct {
	cfg    Config
	models engine.ModelSet

	mu     sync.Mutex
	client *genai.Client
}

func New(cfg Config) *Adapter {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	models := engine.NewModelSet(DefaultModels...)
	models.Add(cfg.ExtraModels...)
	return &Adapter{cfg: cfg, models: models}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) IsConfigured() bool { return a.cfg.APIKey != "" }

func (a *Adapter) ValidateConfig(model string) bool { return a.models.Has(model) }

func (a *Adapter) EstimateTokens(text string) int { return engine.EstimateTokens(text) }

func (a *Adapter) Models() []string { return a.models.List() }

// genai.NewClient needs a context, so the client is built on first use.
func (a *Adapter) getClient(ctx context.Context) (*genai.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:     a.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: a.cfg.HTTPClient,
	}
	if a.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: a.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

// Contents maps turns to user/model roles.
func Contents(p engine.Params) []*genai.Content {
	turns := engine.Turns(p)
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.RoleUser
		if t.Assistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(t.Content)},
		})
	}
	return out
}

func generationConfig(p engine.Params) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.TemperatureOrDefault())),
		MaxOutputTokens: int32(p.MaxTokensOrDefault()),
	}
	if strings.TrimSpace(p.SystemPrompt) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.SystemPrompt, genai.RoleUser)
	}
	return cfg
}

func (a *Adapter) GenerateResponse(ctx context.Context, p engine.Params) (*engine.Response, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := client.Models.GenerateContent(ctx, p.Model, Contents(p), generationConfig(p))
	if err != nil {
		return nil, err
	}
	text := resp.Text()
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if tokens == 0 {
		tokens = engine.EstimateTokens(p.Prompt + text)
	}
	finish := ""
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		finish = string(resp.Candidates[0].FinishReason)
	}
	model := resp.ModelVersion
	if model == "" {
		model = p.Model
	}
	return &engine.Response{
		Content:      text,
		TokensUsed:   tokens,
		Model:        model,
		FinishReason: finish,
	}, nil
}

func (a *Adapter) StreamResponse(ctx context.Context, p engine.Params) iter.Seq2[engine.Chunk, error] {
	return func(yield func(engine.Chunk, error) bool) {
		client, err := a.getClient(ctx)
		if err != nil {
			yield(engine.Chunk{}, err)
			return
		}
		for resp, err := range client.Models.GenerateContentStream(ctx, p.Model, Contents(p), generationConfig(p)) {
			if err != nil {
				yield(engine.Chunk{}, err)
				return
			}
			if text := resp.Text(); text != "" {
				if !yield(engine.Chunk{Content: text}, nil) {
					return
				}
			}
		}
		yield(engine.Chunk{Done: true}, nil)
	}
}
