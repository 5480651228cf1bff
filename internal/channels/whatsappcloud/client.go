// Package whatsappcloud sends text messages through the Meta Graph API.
package whatsappcloud

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v21.0"
	DefaultTimeout    = 10 * time.Second
)

type Config struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	http    *resty.Client
	version string
}

func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	version := strings.Trim(strings.TrimSpace(cfg.APIVersion), "/")
	if version == "" {
		version = DefaultAPIVersion
	}
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
	rc.SetBaseURL(base).SetHeader("Content-Type", "application/json").SetTimeout(timeout)
	return &Client{http: rc, version: version}
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type graphError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// APIError is a non-2xx Graph API reply.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp cloud: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// SendText delivers text to the recipient and returns the Graph message id.
func (c *Client) SendText(ctx context.Context, phoneNumberID, accessToken, to, text string) (string, error) {
	if phoneNumberID == "" || accessToken == "" {
		return "", fmt.Errorf("whatsapp cloud: phone number id and access token required")
	}
	var out sendResponse
	var apiErr graphError
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetPathParam("version", c.version).
		SetPathParam("phoneNumberID", phoneNumberID).
		SetBody(sendRequest{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               strings.TrimPrefix(strings.TrimSpace(to), "+"),
			Type:             "text",
			Text:             textBody{Body: text},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/{version}/{phoneNumberID}/messages")
	if err != nil {
		return "", fmt.Errorf("whatsapp cloud: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", &APIError{StatusCode: resp.StatusCode(), Code: apiErr.Error.Code, Message: msg}
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp cloud: reply carried no message id")
	}
	return out.Messages[0].ID, nil
}
