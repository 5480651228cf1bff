package mistral

import (
	"net/http"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/oaicompat"
)

const (
	Name           = "mistral"
	DefaultBaseURL = "https://api.mistral.ai/v1"
)

var DefaultModels = []string{
	"mistral-large-latest",
	"mistral-medium-latest",
	"mistral-small-latest",
	"open-mistral-7b",
	"open-mixtral-8x7b",
	"open-mixtral-8x22b",
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
