// Package llama talks to a self-hosted Llama runtime exposing an Ollama style
// /api/chat endpoint. Streaming replies are newline-delimited JSON objects.
package llama

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
	Name           = "llama"
	DefaultBaseURL = "http://localhost:11434"
)

var DefaultModels = []string{
	"llama3.3",
	"llama3.2",
	"llama3.1",
	"llama3",
	"llama2",
	"codellama",
}

type Config struct {
	// APIKey is optional; local runtimes usually accept anonymous calls.
	APIKey      string
	BaseURL     string
	ExtraModels []string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type Adapter struct {
	models engine.ModelSet
	http   *resty.Client
}

func New(cfg Config) *Adapter {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
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
	client.SetBaseURL(base).SetHeader("Content-Type", "application/json").SetTimeout(timeout)
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		client.SetAuthToken(key)
	}
	models := engine.NewModelSet(DefaultModels...)
	models.Add(cfg.ExtraModels...)
	return &Adapter{models: models, http: client}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) ValidateConfig(model string) bool { return a.models.Has(model) }

func (a *Adapter) EstimateTokens(text string) int { return engine.EstimateTokens(text) }

func (a *Adapter) Models() []string { return a.models.List() }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatReply struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error"`
}

// request has no system role: the system prompt is prepended to the final user prompt.
func request(p engine.Params, stream bool) chatRequest {
	turns := engine.Turns(p)
	msgs := make([]chatMessage, 0, len(turns))
	for i, t := range turns {
		role := "user"
		if t.Assistant {
			role = "assistant"
		}
		content := t.Content
		if i == len(turns)-1 && strings.TrimSpace(p.SystemPrompt) != "" {
			content = p.SystemPrompt + "\n\n" + content
		}
		msgs = append(msgs, chatMessage{Role: role, Content: content})
	}
	return chatRequest{
		Model:    p.Model,
		Messages: msgs,
		Stream:   stream,
		Options: chatOptions{
			Temperature: p.TemperatureOrDefault(),
			NumPredict:  p.MaxTokensOrDefault(),
		},
	}
}

func (a *Adapter) GenerateResponse(ctx context.Context, p engine.Params) (*engine.Response, error) {
	var out chatReply
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(request(p, false)).
		SetResult(&out).
		Post("/api/chat")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &engine.HTTPError{Provider: Name, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	tokens := out.PromptEvalCount + out.EvalCount
	if tokens == 0 {
		tokens = engine.EstimateTokens(p.Prompt + out.Message.Content)
	}
	model := out.Model
	if model == "" {
		model = p.Model
	}
	finish := out.DoneReason
	if finish == "" && out.Done {
		finish = "stop"
	}
	return &engine.Response{
		Content:      out.Message.Content,
		TokensUsed:   tokens,
		Model:        model,
		FinishReason: finish,
	}, nil
}

func (a *Adapter) StreamResponse(ctx context.Context, p engine.Params) iter.Seq2[engine.Chunk, error] {
	return func(yield func(engine.Chunk, error) bool) {
		resp, err := a.http.R().
			SetContext(ctx).
			SetBody(request(p, true)).
			SetDoNotParseResponse(true).
			Post("/api/chat")
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
			if line == "" {
				continue
			}
			var part chatReply
			if err := json.Unmarshal([]byte(line), &part); err != nil {
				yield(engine.Chunk{}, err)
				return
			}
			if part.Error != "" {
				yield(engine.Chunk{}, &engine.HTTPError{Provider: Name, StatusCode: http.StatusOK, Body: part.Error})
				return
			}
			if part.Message.Content != "" || part.Done {
				if !yield(engine.Chunk{Content: part.Message.Content, Done: part.Done}, nil) || part.Done {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			yield(engine.Chunk{}, err)
			return
		}
		yield(engine.Chunk{Done: true}, nil)
	}
}
