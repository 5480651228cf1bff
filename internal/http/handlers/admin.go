package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/http/response"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/circuit"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

// CircuitAdmin is the part of *circuit.Breaker exposed to operators.
type CircuitAdmin interface {
	Status(provider string) (circuit.Status, bool)
	AllStatuses() map[string]circuit.Status
	Reset(provider string)
}

// QueueCounts returns job counts keyed by queue then status.
type QueueCounts func(ctx context.Context) (map[string]map[string]int64, error)

type AdminHandler struct {
	log      *logger.Logger
	circuits CircuitAdmin
	queues   QueueCounts
}

func NewAdminHandler(log *logger.Logger, circuits CircuitAdmin, queues QueueCounts) *AdminHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminHandler{log: log.With("handler", "AdminHandler"), circuits: circuits, queues: queues}
}

// ListCircuits GET /api/admin/circuits
func (h *AdminHandler) ListCircuits(c *gin.Context) {
	response.RespondOK(c, gin.H{"circuits": h.circuits.AllStatuses()})
}

// GetCircuit GET /api/admin/circuits/:provider
func (h *AdminHandler) GetCircuit(c *gin.Context) {
	provider := c.Param("provider")
	st, ok := h.circuits.Status(provider)
	if !ok {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("no circuit for provider"))
		return
	}
	response.RespondOK(c, st)
}

// ResetCircuit POST /api/admin/circuits/:provider/reset
func (h *AdminHandler) ResetCircuit(c *gin.Context) {
	provider := c.Param("provider")
	h.circuits.Reset(provider)
	h.log.Info("Circuit reset by operator", "provider", provider)
	st, _ := h.circuits.Status(provider)
	response.RespondOK(c, st)
}

// QueueStats GET /api/admin/queues
func (h *AdminHandler) QueueStats(c *gin.Context) {
	if h.queues == nil {
		response.RespondOK(c, gin.H{"queues": map[string]map[string]int64{}})
		return
	}
	counts, err := h.queues(c.Request.Context())
	if err != nil {
		h.log.Warn("Queue counts failed", "error", err)
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"queues": counts})
}
