package openai

import (
	"net/http"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/oaicompat"
)

const Name = "openai"

var DefaultModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-3.5-turbo",
}

type Config struct {
	APIKey      string
	BaseURL     string
	ExtraModels []string
	HTTPClient  *http.Client
}

// New returns the OpenAI adapter. An empty BaseURL targets api.openai.com.
func New(cfg Config) *oaicompat.Adapter {
	models := engine.NewModelSet(DefaultModels...)
	models.Add(cfg.ExtraModels...)
	return oaicompat.New(oaicompat.Options{
		Name:       Name,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Models:     models,
		HTTPClient: cfg.HTTPClient,
	})
}
