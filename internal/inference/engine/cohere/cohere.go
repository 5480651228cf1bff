package cohere

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
)

const (
	Name           = "cohere"
	DefaultBaseURL = "https://api.cohere.com"
)

var DefaultModels = []string{
	"command-r-plus",
	"command-r",
	"command-r7b-12-2024",
	"command",
	"command-light",
}

type Config struct {
	APIKey      string
	BaseURL     string
	ExtraModels []string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type Adapter struct {
	apiKey string
	models engine.ModelSet
	http   *resty.Client
}

func New(cfg Config) *Adapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New()
	}
	client.
		SetBaseURL(base).
		SetAuthToken(strings.TrimSpace(cfg.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	models := engine.NewModelSet(DefaultModels...)
	models.Add(cfg.ExtraModels...)
	return &Adapter{apiKey: strings.TrimSpace(cfg.APIKey), models: models, http: client}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) IsConfigured() bool { return a.apiKey != "" }

func (a *Adapter) ValidateConfig(model string) bool { return a.models.Has(model) }

func (a *Adapter) EstimateTokens(text string) int { return engine.EstimateTokens(text) }

func (a *Adapter) Models() []string { return a.models.List() }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream,omitempty"`
}

type tokenCounts struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}

type usage struct {
	BilledUnits tokenCounts `json:"billed_units"`
	Tokens      tokenCounts `json:"tokens"`
}

type chatResponse struct {
	ID           string `json:"id"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Usage usage `json:"usage"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Message struct {
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"delta"`
}

func request(p engine.Params, stream bool) chatRequest {
	msgs := make([]chatMessage, 0, len(p.Context)+2)
	if strings.TrimSpace(p.SystemPrompt) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.SystemPrompt})
	}
	for _, t := range engine.Turns(p) {
		role := "user"
		if t.Assistant {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: t.Content})
	}
	return chatRequest{
		Model:       p.Model,
		Messages:    msgs,
		Temperature: p.TemperatureOrDefault(),
		MaxTokens:   p.MaxTokensOrDefault(),
		Stream:      stream,
	}
}

func (a *Adapter) GenerateResponse(ctx context.Context, p engine.Params) (*engine.Response, error) {
	var out chatResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(request(p, false)).
		SetResult(&out).
		Post("/v2/chat")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &engine.HTTPError{Provider: Name, StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var text strings.Builder
	for _, c := range out.Message.Content {
		if c.Type == "" || c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	tokens := int(out.Usage.Tokens.InputTokens + out.Usage.Tokens.OutputTokens)
	if tokens == 0 {
		tokens = int(out.Usage.BilledUnits.InputTokens + out.Usage.BilledUnits.OutputTokens)
	}
	if tokens == 0 {
		tokens = engine.EstimateTokens(p.Prompt + text.String())
	}
	return &engine.Response{
		Content:      text.String(),
		TokensUsed:   tokens,
		Model:        p.Model,
		FinishReason: strings.ToLower(out.FinishReason),
	}, nil
}

// StreamResponse consumes the v2 server-sent event stream.
func (a *Adapter) StreamResponse(ctx context.Context, p engine.Params) iter.Seq2[engine.Chunk, error] {
	return func(yield func(engine.Chunk, error) bool) {
		resp, err := a.http.R().
			SetContext(ctx).
			SetBody(request(p, true)).
			SetHeader("Accept", "text/event-stream").
			SetDoNotParseResponse(true).
			Post("/v2/chat")
		if err != nil {
			yield(engine.Chunk{}, err)
			return
		}
		body := resp.RawBody()
		defer body.Close()
		if resp.IsError() {
			raw, _ := io.ReadAll(io.LimitReader(body, 4096))
			yield(engine.Chunk{}, &engine.HTTPError{Provider: Name, StatusCode: resp.StatusCode(), Body: string(raw)})
			return
		}

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}
			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				yield(engine.Chunk{}, err)
				return
			}
			switch ev.Type {
			case "content-delta":
				if text := ev.Delta.Message.Content.Text; text != "" {
					if !yield(engine.Chunk{Content: text}, nil) {
						return
					}
				}
			case "message-end":
				yield(engine.Chunk{Done: true}, nil)
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(engine.Chunk{}, err)
			return
		}
		yield(engine.Chunk{Done: true}, nil)
	}
}
