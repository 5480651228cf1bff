package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

type submitted struct {
	Kind      string
	ChatbotID uuid.UUID
	Key       string
	From      string
	Content   string
	MessageID string
}

type fakeIngress struct {
	mu    sync.Mutex
	calls []submitted
	err   error
	// errFor fails only submissions whose content matches.
	errFor string
}

var _ services.Ingress = (*fakeIngress)(nil)

func (f *fakeIngress) record(s submitted) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && (f.errFor == "" || f.errFor == s.Content) {
		return uuid.Nil, f.err
	}
	f.calls = append(f.calls, s)
	return uuid.New(), nil
}

func (f *fakeIngress) Submit(_ context.Context, in services.InboundMessage) (uuid.UUID, error) {
	return f.record(submitted{Kind: string(in.Channel), ChatbotID: in.ChatbotID, From: in.ExternalUserID, Content: in.Content})
}

func (f *fakeIngress) SubmitWidget(_ context.Context, chatbotID uuid.UUID, sessionID, content string) (uuid.UUID, error) {
	return f.record(submitted{Kind: "widget", ChatbotID: chatbotID, Key: sessionID, Content: content})
}

func (f *fakeIngress) SubmitCloud(_ context.Context, phoneNumberID, from, text, channelMessageID string) (uuid.UUID, error) {
	return f.record(submitted{Kind: "cloud", Key: phoneNumberID, From: from, Content: text, MessageID: channelMessageID})
}

func (f *fakeIngress) SubmitQR(_ context.Context, sessionID, from, text string) (uuid.UUID, error) {
	return f.record(submitted{Kind: "qr", Key: sessionID, From: from, Content: text})
}

func (f *fakeIngress) Calls() []submitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submitted(nil), f.calls...)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
