package router

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/catalog"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/circuit"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/enginetest"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

// countingGate wraps a real breaker and counts every call made on it.
type countingGate struct {
	inner *circuit.Breaker

	mu    sync.Mutex
	calls map[string]int
}

func newCountingGate(cfg circuit.Config) *countingGate {
	return &countingGate{inner: circuit.New(cfg, logger.Nop()), calls: map[string]int{}}
}

func (g *countingGate) count(op string) {
	g.mu.Lock()
	g.calls[op]++
	g.mu.Unlock()
}

func (g *countingGate) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *countingGate) get(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *countingGate) CanExecute(p string) bool { g.count("can"); return g.inner.CanExecute(p) }
func (g *countingGate) RecordSuccess(p string)   { g.count("success"); g.inner.RecordSuccess(p) }
func (g *countingGate) RecordFailure(p string, err error) {
	g.count("failure")
	g.inner.RecordFailure(p, err)
}
func (g *countingGate) State(p string) circuit.State { g.count("state"); return g.inner.State(p) }
func (g *countingGate) FallbackResponse(p string) string {
	g.count("fallback")
	return g.inner.FallbackResponse(p)
}

func setup(t *testing.T) (*Router, *countingGate, *enginetest.Stub) {
	t.Helper()
	gate := newCountingGate(circuit.Config{FailureThreshold: 2})
	stub := enginetest.New("openai", "gpt-4o-mini")
	other := enginetest.New("anthropic", "claude-3-haiku-20240307")
	r := New(gate, logger.Nop(), []engine.Adapter{stub, other})
	return r, gate, stub
}

func params() engine.Params {
	return engine.Params{Prompt: "Hi", Model: "gpt-4o-mini"}
}

func TestUnknownProviderNeverTouchesBreaker(t *testing.T) {
	r, gate, _ := setup(t)

	_, err := r.GenerateResponse(t.Context(), "nope", params())
	var unknown *UnknownProviderError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"anthropic", "openai"}, unknown.Valid)
	assert.Contains(t, err.Error(), "anthropic, openai")
	assert.Zero(t, gate.total())
	assert.True(t, IsConfigurationError(err))
	assert.False(t, IsRetryable(err))
}

func TestInvalidModelNeverTouchesBreaker(t *testing.T) {
	r, gate, stub := setup(t)

	p := params()
	p.Model = "gpt-9"
	_, err := r.GenerateResponse(t.Context(), "openai", p)
	var invalid *InvalidModelError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, gate.total())
	assert.Zero(t, stub.CallCount())
	assert.Equal(t, "invalid_model", Kind(err))
}

func TestNotConfiguredBeforeModelCheck(t *testing.T) {
	r, gate, stub := setup(t)
	stub.Configured = false

	p := params()
	p.Model = "gpt-9"
	_, err := r.GenerateResponse(t.Context(), "openai", p)
	var notConfigured *ProviderNotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
	assert.Zero(t, gate.total())
	assert.True(t, IsConfigurationError(err))
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	r, _, stub := setup(t)
	stub.Set(&engine.Response{Content: "Hello!", TokensUsed: 12, Model: "gpt-4o-mini", FinishReason: "stop"}, nil)

	resp, err := r.GenerateResponse(t.Context(), " OpenAI ", params())
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Content)
	assert.Equal(t, 1, stub.CallCount())
}

func TestSuccessRecorded(t *testing.T) {
	r, gate, stub := setup(t)
	stub.Set(&engine.Response{Content: "ok"}, nil)

	_, err := r.GenerateResponse(t.Context(), "openai", params())
	require.NoError(t, err)
	assert.Equal(t, 1, gate.get("can"))
	assert.Equal(t, 1, gate.get("success"))
	assert.Zero(t, gate.get("failure"))
}

func TestVendorErrorPassesThroughUnchanged(t *testing.T) {
	r, gate, stub := setup(t)
	vendorErr := &engine.HTTPError{Provider: "openai", StatusCode: 502}
	stub.Set(nil, vendorErr)

	_, err := r.GenerateResponse(t.Context(), "openai", params())
	assert.Same(t, vendorErr, err)
	assert.Equal(t, 1, gate.get("failure"))
	assert.True(t, IsRetryable(err))
}

func TestOpenCircuitRejectsWithFallback(t *testing.T) {
	r, _, stub := setup(t)
	stub.Set(nil, errors.New("boom"))

	for i := 0; i < 2; i++ {
		_, err := r.GenerateResponse(t.Context(), "openai", params())
		require.Error(t, err)
	}
	calls := stub.CallCount()

	_, err := r.GenerateResponse(t.Context(), "openai", params())
	var unavailable *ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, circuit.StateOpen, unavailable.State)
	assert.Contains(t, unavailable.Fallback, "openai")
	assert.Equal(t, calls, stub.CallCount())
	assert.True(t, IsRetryable(err))
	assert.False(t, IsConfigurationError(err))
	assert.Equal(t, "service_unavailable", Kind(err))

	// The other provider is unaffected.
	_, err = r.GenerateResponse(t.Context(), "anthropic", engine.Params{Prompt: "x", Model: "claude-3-haiku-20240307"})
	require.NoError(t, err)
}

func TestStreamRecordsSuccessOnce(t *testing.T) {
	r, gate, stub := setup(t)
	stub.Chunks = []engine.Chunk{{Content: "Hel"}, {Content: "lo"}, {Done: true}}

	var sb strings.Builder
	var sawDone bool
	for c, err := range r.StreamResponse(t.Context(), "openai", params()) {
		require.NoError(t, err)
		sb.WriteString(c.Content)
		sawDone = sawDone || c.Done
	}
	assert.Equal(t, "Hello", sb.String())
	assert.True(t, sawDone)
	assert.Equal(t, 1, gate.get("success"))
	assert.Zero(t, gate.get("failure"))
}

func TestStreamExhaustionWithoutDoneCountsAsSuccess(t *testing.T) {
	r, gate, stub := setup(t)
	stub.Chunks = []engine.Chunk{{Content: "a"}, {Content: "b"}}

	var got []engine.Chunk
	for c, err := range r.StreamResponse(t.Context(), "openai", params()) {
		require.NoError(t, err)
		got = append(got, c)
	}
	assert.Equal(t, []engine.Chunk{{Content: "a"}, {Content: "b"}, {Done: true}}, got)
	assert.Equal(t, 1, gate.get("success"))
}

func TestStreamErrorMidway(t *testing.T) {
	r, gate, stub := setup(t)
	boom := errors.New("connection reset")
	stub.Chunks = []engine.Chunk{{Content: "par"}}
	stub.StreamErr = boom

	var gotErr error
	var text string
	for c, err := range r.StreamResponse(t.Context(), "openai", params()) {
		if err != nil {
			gotErr = err
			continue
		}
		text += c.Content
	}
	assert.Equal(t, "par", text)
	assert.Same(t, boom, gotErr)
	assert.Equal(t, 1, gate.get("failure"))
	assert.Zero(t, gate.get("success"))
}

func TestStreamGateRunsBeforeVendor(t *testing.T) {
	r, gate, stub := setup(t)
	p := params()
	p.Model = "bogus"

	var gotErr error
	for _, err := range r.StreamResponse(t.Context(), "openai", p) {
		gotErr = err
	}
	assert.True(t, IsConfigurationError(gotErr))
	assert.Zero(t, stub.StreamCalls)
	assert.Zero(t, gate.total())
}

func TestStreamEarlyBreakRecordsNothing(t *testing.T) {
	r, gate, stub := setup(t)
	stub.Chunks = []engine.Chunk{{Content: "a"}, {Content: "b"}, {Done: true}}

	for range r.StreamResponse(t.Context(), "openai", params()) {
		break
	}
	assert.Zero(t, gate.get("success"))
	assert.Zero(t, gate.get("failure"))
}

func TestEstimateTokens(t *testing.T) {
	r, _, _ := setup(t)
	assert.Equal(t, 3, r.EstimateTokens("0123456789"))
}

func TestBuildAdaptersRegistersSeven(t *testing.T) {
	cat, err := catalog.Parse([]byte("providers:\n  openai:\n    models: [gpt-custom]\n"))
	require.NoError(t, err)

	r := New(nil, nil, BuildAdapters(Credentials{OpenAIKey: "k"}, cat, nil))
	assert.Equal(t, []string{"anthropic", "cohere", "google", "groq", "llama", "mistral", "openai"}, r.Providers())

	a, ok := r.Adapter("openai")
	require.True(t, ok)
	assert.True(t, a.ValidateConfig("gpt-custom"))

	_, err = r.GenerateResponse(t.Context(), "groq", engine.Params{Model: "llama3-8b-8192"})
	var notConfigured *ProviderNotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
}

func TestBuildAdaptersSkipsDisabled(t *testing.T) {
	cat, err := catalog.Parse([]byte("providers:\n  cohere:\n    disabled: true\n"))
	require.NoError(t, err)
	r := New(nil, nil, BuildAdapters(Credentials{}, cat, nil))
	_, ok := r.Adapter("cohere")
	assert.False(t, ok)
	assert.Len(t, r.Providers(), 6)
}
