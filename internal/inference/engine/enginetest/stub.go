// Package enginetest provides a scriptable engine.Adapter for tests.
package enginetest

import (
	"context"
	"iter"
	"sync"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
)

type Stub struct {
	AdapterName string
	Configured  bool
	Models      engine.ModelSet

	mu       sync.Mutex
	Response *engine.Response
	Err      error
	Chunks   []engine.Chunk
	// StreamErr is yielded after Chunks when set.
	StreamErr error

	Calls       int
	StreamCalls int
	LastParams  engine.Params
}

func New(name string, models ...string) *Stub {
	return &Stub{AdapterName: name, Configured: true, Models: engine.NewModelSet(models...)}
}

func (s *Stub) Name() string { return s.AdapterName }

func (s *Stub) IsConfigured() bool { return s.Configured }

func (s *Stub) ValidateConfig(model string) bool { return s.Models.Has(model) }

func (s *Stub) EstimateTokens(text string) int { return engine.EstimateTokens(text) }

func (s *Stub) GenerateResponse(_ context.Context, p engine.Params) (*engine.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	s.LastParams = p
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Response == nil {
		return &engine.Response{Model: p.Model}, nil
	}
	out := *s.Response
	return &out, nil
}

func (s *Stub) StreamResponse(_ context.Context, p engine.Params) iter.Seq2[engine.Chunk, error] {
	return func(yield func(engine.Chunk, error) bool) {
		s.mu.Lock()
		s.StreamCalls++
		s.LastParams = p
		chunks := append([]engine.Chunk(nil), s.Chunks...)
		streamErr := s.StreamErr
		s.mu.Unlock()

		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if streamErr != nil {
			yield(engine.Chunk{}, streamErr)
		}
	}
}

// Set replaces the scripted reply.
func (s *Stub) Set(resp *engine.Response, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Response = resp
	s.Err = err
}

func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}
