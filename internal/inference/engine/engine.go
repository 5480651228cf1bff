package engine

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sort"
	"strings"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/pointers"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Params is the uniform completion request.
type Params struct {
	Prompt       string
	Context      []string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    *int
	Model        string
}

func (p Params) TemperatureOrDefault() float64 {
	return pointers.Deref(p.Temperature, DefaultTemperature)
}

func (p Params) MaxTokensOrDefault() int {
	if p.MaxTokens == nil || *p.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return *p.MaxTokens
}

type Response struct {
	Content      string `json:"content"`
	TokensUsed   int    `json:"tokensUsed"`
	Model        string `json:"model"`
	FinishReason string `json:"finishReason"`
}

type Chunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// Adapter normalises one vendor API. Adapters return vendor errors unchanged.
type Adapter interface {
	Name() string
	GenerateResponse(ctx context.Context, p Params) (*Response, error)
	// StreamResponse issues the vendor request when iteration starts. Each range over
	// the returned sequence starts a new request.
	StreamResponse(ctx context.Context, p Params) iter.Seq2[Chunk, error]
	ValidateConfig(model string) bool
	EstimateTokens(text string) int
}

// Configurable is implemented by adapters that need credentials.
type Configurable interface {
	IsConfigured() bool
}

// EstimateTokens is the provider agnostic heuristic ceil(len/4).
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / 4.0))
}

// Turn is one entry of a reconstructed conversation.
type Turn struct {
	Assistant bool
	Content   string
}

// Turns maps the context list by position: even entries are user turns, odd entries
// assistant turns. The final user prompt is appended last.
func Turns(p Params) []Turn {
	out := make([]Turn, 0, len(p.Context)+1)
	for i, c := range p.Context {
		out = append(out, Turn{Assistant: i%2 == 1, Content: c})
	}
	out = append(out, Turn{Content: p.Prompt})
	return out
}

// ModelSet is an adapter's allow-list of model identifiers.
type ModelSet map[string]struct{}

func NewModelSet(models ...string) ModelSet {
	s := ModelSet{}
	s.Add(models...)
	return s
}

func (s ModelSet) Add(models ...string) {
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			s[m] = struct{}{}
		}
	}
}

func (s ModelSet) Has(model string) bool {
	_, ok := s[strings.TrimSpace(model)]
	return ok
}

func (s ModelSet) List() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// HTTPError is a non-2xx vendor reply surfaced by the HTTP based adapters.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream http error: status=%d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: upstream http error: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

// ErrorStream yields err once.
func ErrorStream(err error) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		yield(Chunk{}, err)
	}
}
