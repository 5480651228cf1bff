// Package whatsappqr talks to the paired-device gateway that owns QR sessions.
package whatsappqr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 10 * time.Second

// ErrNotConnected is returned when the gateway reports the session is not paired.
var ErrNotConnected = errors.New("whatsapp qr: session not connected")

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
		rc.SetHeader("X-Api-Key", key)
	}
	return &Client{http: rc}
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func (c *Client) SendText(ctx context.Context, sessionID, to, text string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("whatsapp qr: session id required")
	}
	var out sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("sessionID", sessionID).
		SetBody(sendRequest{To: to, Text: text}).
		SetResult(&out).
		SetError(&out).
		Post("/sessions/{sessionID}/messages")
	if err != nil {
		return "", fmt.Errorf("whatsapp qr: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusConflict:
		return "", ErrNotConnected
	case resp.IsError():
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", fmt.Errorf("whatsapp qr: status %d: %s", resp.StatusCode(), msg)
	case out.MessageID == "":
		return "", fmt.Errorf("whatsapp qr: reply carried no message id")
	}
	return out.MessageID, nil
}
