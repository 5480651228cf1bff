// Package router is the single entry point for AI completions. It resolves a provider
// name to one of the statically registered adapters, runs the configuration checks and
// the circuit gate, then forwards the call.
package router

import (
	"context"
	"iter"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/circuit"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/observability"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

// CircuitGate is the part of circuit.Breaker the router depends on.
type CircuitGate interface {
	CanExecute(provider string) bool
	RecordSuccess(provider string)
	RecordFailure(provider string, err error)
	State(provider string) circuit.State
	FallbackResponse(provider string) string
}

type Router struct {
	adapters map[string]engine.Adapter
	names    []string
	gate     CircuitGate
	log      *logger.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

type Option func(*Router)

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// New registers adapters under their lower-cased Name. Later duplicates win.
func New(gate CircuitGate, baseLog *logger.Logger, adapters []engine.Adapter, opts ...Option) *Router {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	r := &Router{
		adapters: make(map[string]engine.Adapter, len(adapters)),
		gate:     gate,
		log:      baseLog.With("component", "AIRouter"),
		tracer:   observability.Tracer(),
	}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		r.adapters[strings.ToLower(strings.TrimSpace(a.Name()))] = a
	}
	for name := range r.adapters {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers lists the registered provider names, sorted.
func (r *Router) Providers() []string {
	return append([]string(nil), r.names...)
}

func (r *Router) Adapter(provider string) (engine.Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	return a, ok
}

func (r *Router) EstimateTokens(text string) int {
	return engine.EstimateTokens(text)
}

// resolve runs every check that precedes the vendor call. Configuration checks come
// before the circuit gate so they never count against provider health.
func (r *Router) resolve(provider, model string) (engine.Adapter, string, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	a, ok := r.adapters[name]
	if !ok {
		return nil, name, &UnknownProviderError{Provider: provider, Valid: r.Providers()}
	}
	if c, ok := a.(engine.Configurable); ok && !c.IsConfigured() {
		return nil, name, &ProviderNotConfiguredError{Provider: name}
	}
	if !a.ValidateConfig(model) {
		return nil, name, &InvalidModelError{Provider: name, Model: model}
	}
	if r.gate != nil && !r.gate.CanExecute(name) {
		return nil, name, &ServiceUnavailableError{
			Provider: name,
			State:    r.gate.State(name),
			Fallback: r.gate.FallbackResponse(name),
		}
	}
	return a, name, nil
}

func (r *Router) recordSuccess(name string) {
	if r.gate != nil {
		r.gate.RecordSuccess(name)
	}
}

func (r *Router) recordFailure(name string, err error) {
	if r.gate != nil {
		r.gate.RecordFailure(name, err)
	}
}

func (r *Router) startSpan(ctx context.Context, op, provider string, p engine.Params) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", p.Model),
		attribute.Int("ai.context_len", len(p.Context)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// GenerateResponse returns vendor errors unchanged after recording them on the circuit.
func (r *Router) GenerateResponse(ctx context.Context, provider string, p engine.Params) (*engine.Response, error) {
	a, name, err := r.resolve(provider, p.Model)
	if err != nil {
		r.metrics.ObserveAIRequest(name, "generate", Kind(err), 0)
		r.log.Warn("AI request rejected", "provider", provider, "model", p.Model, "reason", Kind(err))
		return nil, err
	}

	ctx, span := r.startSpan(ctx, "ai.generate", name, p)
	start := time.Now()
	resp, err := a.GenerateResponse(ctx, p)
	dur := time.Since(start)
	if err != nil {
		r.recordFailure(name, err)
		r.metrics.ObserveAIRequest(name, "generate", "error", dur)
		endSpan(span, err)
		return nil, err
	}
	r.recordSuccess(name)
	r.metrics.ObserveAIRequest(name, "generate", "success", dur)
	r.metrics.AddAITokens(name, resp.Model, resp.TokensUsed)
	span.SetAttributes(attribute.Int("ai.tokens_used", resp.TokensUsed))
	endSpan(span, nil)
	r.log.Debug("AI response generated", "provider", name, "model", resp.Model, "tokens", resp.TokensUsed, "duration_ms", dur.Milliseconds())
	return resp, nil
}

// StreamResponse gates lazily: checks run when iteration starts, so each range is a
// fresh attempt. Success is recorded once, after a Done chunk or normal exhaustion.
func (r *Router) StreamResponse(ctx context.Context, provider string, p engine.Params) iter.Seq2[engine.Chunk, error] {
	return func(yield func(engine.Chunk, error) bool) {
		a, name, err := r.resolve(provider, p.Model)
		if err != nil {
			r.metrics.ObserveAIRequest(name, "stream", Kind(err), 0)
			yield(engine.Chunk{}, err)
			return
		}

		ctx, span := r.startSpan(ctx, "ai.stream", name, p)
		start := time.Now()
		chunks := 0
		for chunk, err := range a.StreamResponse(ctx, p) {
			if err != nil {
				r.recordFailure(name, err)
				r.metrics.ObserveAIRequest(name, "stream", "error", time.Since(start))
				endSpan(span, err)
				yield(engine.Chunk{}, err)
				return
			}
			chunks++
			if chunk.Done {
				r.finishStream(name, span, start, chunks)
				yield(chunk, nil)
				return
			}
			if !yield(chunk, nil) {
				// Consumer stopped early; the vendor did not fail.
				span.SetAttributes(attribute.Bool("ai.stream_abandoned", true))
				span.End()
				return
			}
		}
		r.finishStream(name, span, start, chunks)
		yield(engine.Chunk{Done: true}, nil)
	}
}

func (r *Router) finishStream(name string, span trace.Span, start time.Time, chunks int) {
	r.recordSuccess(name)
	r.metrics.ObserveAIRequest(name, "stream", "success", time.Since(start))
	span.SetAttributes(attribute.Int("ai.chunks", chunks))
	endSpan(span, nil)
}
