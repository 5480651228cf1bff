package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/circuit"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/enginetest"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/router"
)

type aiFixture struct {
	stub    *enginetest.Stub
	breaker *circuit.Breaker
	clock   time.Time
	engine  *gin.Engine
}

func newAIFixture(t *testing.T) *aiFixture {
	t.Helper()
	f := &aiFixture{
		stub:  enginetest.New("openai", "gpt-4o-mini"),
		clock: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.breaker = circuit.New(circuit.Config{
		FailureThreshold: 2,
		ResetTimeout:     30 * time.Second,
		Now:              func() time.Time { return f.clock },
	}, nil)
	rt := router.New(f.breaker, nil, []engine.Adapter{f.stub})
	h := NewAIHandler(nil, rt, f.breaker)
	h.now = func() time.Time { return f.clock }
	f.engine = gin.New()
	f.engine.POST("/generate", h.Generate)
	return f
}

func TestGenerateReturnsResponse(t *testing.T) {
	f := newAIFixture(t)
	f.stub.Set(&engine.Response{Content: "hola", TokensUsed: 7, Model: "gpt-4o-mini", FinishReason: "stop"}, nil)

	w := do(t, f.engine, http.MethodPost, "/generate",
		`{"provider":"openai","model":"gpt-4o-mini","prompt":"hi","context":["a","b"],"temperature":0.2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out engine.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "hola", out.Content)
	assert.Equal(t, 7, out.TokensUsed)
	assert.Equal(t, []string{"a", "b"}, f.stub.LastParams.Context)
	require.NotNil(t, f.stub.LastParams.Temperature)
	assert.InDelta(t, 0.2, *f.stub.LastParams.Temperature, 1e-9)
}

func TestGenerateErrorStatuses(t *testing.T) {
	f := newAIFixture(t)

	w := do(t, f.engine, http.MethodPost, "/generate", `{"provider":"nope","model":"m","prompt":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, f.engine, http.MethodPost, "/generate", `{"provider":"openai","model":"gpt-99","prompt":"hi"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_model")

	f.stub.Configured = false
	w = do(t, f.engine, http.MethodPost, "/generate", `{"provider":"openai","model":"gpt-4o-mini","prompt":"hi"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	f.stub.Configured = true

	f.stub.Set(nil, errors.New("upstream 500"))
	w = do(t, f.engine, http.MethodPost, "/generate", `{"provider":"openai","model":"gpt-4o-mini","prompt":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(t, f.engine, http.MethodPost, "/generate", `{"provider":"openai"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateOpenCircuitSetsRetryAfter(t *testing.T) {
	f := newAIFixture(t)
	f.breaker.RecordFailure("openai", errors.New("boom"))
	f.breaker.RecordFailure("openai", errors.New("boom"))
	f.clock = f.clock.Add(10 * time.Second)

	w := do(t, f.engine, http.MethodPost, "/generate", `{"provider":"openai","model":"gpt-4o-mini","prompt":"hi"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "20", w.Header().Get("Retry-After"))

	var out unavailableResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "service_unavailable", out.Error.Code)
	assert.Equal(t, circuit.StateOpen, out.State)
	assert.Equal(t, f.breaker.FallbackResponse("openai"), out.Fallback)
	assert.Zero(t, f.stub.CallCount())
}

func TestGenerateStreamsChunks(t *testing.T) {
	f := newAIFixture(t)
	f.stub.Chunks = []engine.Chunk{{Content: "ho"}, {Content: "la"}}

	w := do(t, f.engine, http.MethodPost, "/generate",
		`{"provider":"openai","model":"gpt-4o-mini","prompt":"hi","stream":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, 3, strings.Count(body, "event:chunk"))
	assert.Contains(t, body, `"content":"ho"`)
	assert.Contains(t, body, `"done":true`)
}

func TestGenerateStreamRejectedBeforeFirstChunk(t *testing.T) {
	f := newAIFixture(t)
	w := do(t, f.engine, http.MethodPost, "/generate",
		`{"provider":"openai","model":"gpt-99","prompt":"hi","stream":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
