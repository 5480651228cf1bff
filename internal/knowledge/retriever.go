// Package knowledge fetches context snippets from the knowledge-base service.
package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	DefaultTopK    = 5
	DefaultTimeout = 5 * time.Second
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	http *resty.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		rc.SetAuthToken(key)
	}
	return &Client{http: rc}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK"`
}

type searchResponse struct {
	Results []struct {
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search returns up to topK snippet texts ranked by the service.
func (c *Client) Search(ctx context.Context, knowledgeBaseID uuid.UUID, query string, topK int) ([]string, error) {
	if knowledgeBaseID == uuid.Nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", knowledgeBaseID.String()).
		SetBody(searchRequest{Query: query, TopK: topK}).
		SetResult(&out).
		Post("/knowledge-bases/{id}/search")
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("knowledge search: status %d", resp.StatusCode())
	}
	snippets := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		if text := strings.TrimSpace(r.Content); text != "" {
			snippets = append(snippets, text)
		}
		if len(snippets) == topK {
			break
		}
	}
	return snippets, nil
}
