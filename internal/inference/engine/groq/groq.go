package groq

import (
	"net/http"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/oaicompat"
)

const (
	Name           = "groq"
	DefaultBaseURL = "https://api.groq.com/openai/v1"
)

var DefaultModels = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-70b-versatile",
	"llama-3.1-8b-instant",
	"llama3-70b-8192",
	"llama3-8b-8192",
	"mixtral-8x7b-32768",
	"gemma2-9b-it",
}

type Config struct {
	APIKey      string
	BaseURL     string
	ExtraModels []string
	HTTPClient  *http.Client
}

func New(cfg Config) *oaicompat.Adapter {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	models := engine.NewModelSet(DefaultModels...)
	models.Add(cfg.ExtraModels...)
	return oaicompat.New(oaicompat.Options{
		Name:       Name,
		APIKey:     cfg.APIKey,
		BaseURL:    base,
		Models:     models,
		HTTPClient: cfg.HTTPClient,
	})
}
