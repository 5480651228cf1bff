package handlers

import (
	"context"
	"errors"
	"iter"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/http/response"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/circuit"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/router"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

// AIRouter is the part of *router.Router the handler uses.
type AIRouter interface {
	GenerateResponse(ctx context.Context, provider string, p engine.Params) (*engine.Response, error)
	StreamResponse(ctx context.Context, provider string, p engine.Params) iter.Seq2[engine.Chunk, error]
}

// CircuitStatus is the part of *circuit.Breaker the handler uses.
type CircuitStatus interface {
	Status(provider string) (circuit.Status, bool)
}

type AIHandler struct {
	log     *logger.Logger
	router  AIRouter
	circuit CircuitStatus
	now     func() time.Time
}

func NewAIHandler(log *logger.Logger, r AIRouter, cs CircuitStatus) *AIHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AIHandler{log: log.With("handler", "AIHandler"), router: r, circuit: cs, now: time.Now}
}

type generateRequest struct {
	Provider     string   `json:"provider" binding:"required"`
	Model        string   `json:"model" binding:"required"`
	Prompt       string   `json:"prompt" binding:"required"`
	Context      []string `json:"context"`
	SystemPrompt string   `json:"systemPrompt"`
	Temperature  *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens    *int     `json:"maxTokens" binding:"omitempty,gt=0"`
	Stream       bool     `json:"stream"`
}

type unavailableResponse struct {
	Error    response.APIError `json:"error"`
	Fallback string            `json:"fallback"`
	State    circuit.State     `json:"state"`
}

// Generate POST /api/ai/generate
func (h *AIHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	params := engine.Params{
		Prompt:       req.Prompt,
		Context:      req.Context,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Model:        req.Model,
	}
	if req.Stream {
		h.stream(c, req.Provider, params)
		return
	}
	resp, err := h.router.GenerateResponse(c.Request.Context(), req.Provider, params)
	if err != nil {
		h.respondAIError(c, err)
		return
	}
	response.RespondOK(c, resp)
}

// stream relays chunks as SSE "chunk" events and always ends with a done chunk.
func (h *AIHandler) stream(c *gin.Context, provider string, params engine.Params) {
	next, stop := iter.Pull2(h.router.StreamResponse(c.Request.Context(), provider, params))
	defer stop()

	// errors before the first chunk still get a JSON status code
	first, err, ok := next()
	if ok && err != nil {
		h.respondAIError(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	done := false
	emit := func(chunk engine.Chunk) {
		c.SSEvent("chunk", chunk)
		c.Writer.Flush()
		done = done || chunk.Done
	}
	if ok {
		emit(first)
	}
	for !done {
		chunk, err, ok := next()
		if !ok {
			break
		}
		if err != nil {
			h.log.Warn("AI stream interrupted", "provider", provider, "error", err)
			c.SSEvent("error", response.APIError{Message: err.Error(), Code: router.Kind(err)})
			c.Writer.Flush()
			return
		}
		emit(chunk)
	}
	if !done {
		emit(engine.Chunk{Done: true})
	}
}

func (h *AIHandler) respondAIError(c *gin.Context, err error) {
	var unknown *router.UnknownProviderError
	var unavailable *router.ServiceUnavailableError
	kind := router.Kind(err)
	switch {
	case errors.As(err, &unavailable):
		c.Header("Retry-After", strconv.Itoa(h.retryAfter(unavailable.Provider)))
		c.JSON(http.StatusServiceUnavailable, unavailableResponse{
			Error:    response.APIError{Message: err.Error(), Code: kind},
			Fallback: unavailable.Fallback,
			State:    unavailable.State,
		})
	case errors.As(err, &unknown):
		response.RespondError(c, http.StatusBadRequest, kind, err)
	case router.IsConfigurationError(err):
		response.RespondError(c, http.StatusUnprocessableEntity, kind, err)
	default:
		h.log.Warn("AI provider call failed", "kind", kind, "error", err)
		response.RespondError(c, http.StatusBadGateway, kind, err)
	}
}

// retryAfter is the whole seconds until the circuit admits a probe, at least 1.
func (h *AIHandler) retryAfter(provider string) int {
	if h.circuit == nil {
		return int(circuit.DefaultResetTimeout.Seconds())
	}
	st, ok := h.circuit.Status(provider)
	if !ok || st.NextAttemptTime == nil {
		return int(circuit.DefaultResetTimeout.Seconds())
	}
	secs := int(math.Ceil(st.NextAttemptTime.Sub(h.now()).Seconds()))
	return max(secs, 1)
}
