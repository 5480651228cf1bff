package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/http/response"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

type WidgetHandler struct {
	log     *logger.Logger
	ingress services.Ingress
	hub     *realtime.SSEHub
}

func NewWidgetHandler(log *logger.Logger, ingress services.Ingress, hub *realtime.SSEHub) *WidgetHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WidgetHandler{log: log.With("handler", "WidgetHandler"), ingress: ingress, hub: hub}
}

type widgetMessageRequest struct {
	SessionID string `json:"sessionId" binding:"required,max=255"`
	Content   string `json:"content" binding:"required"`
}

type queuedResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status string    `json:"status"`
}

// PostMessage POST /api/widget/chatbots/:chatbotId/messages
func (h *WidgetHandler) PostMessage(c *gin.Context) {
	chatbotID, err := uuid.Parse(c.Param("chatbotId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_chatbot_id", err)
		return
	}
	var req widgetMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	jobID, err := h.ingress.SubmitWidget(c.Request.Context(), chatbotID, req.SessionID, req.Content)
	if err != nil {
		_ = c.Error(err)
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, queuedResponse{JobID: jobID, Status: "queued"})
}

// Stream GET /api/widget/conversations/:id/stream
func (h *WidgetHandler) Stream(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	client := h.hub.NewSSEClient()
	client.Logger = h.log.With("sse_client_id", client.ID, "conversation_id", conversationID)
	h.hub.AddChannel(client, realtime.ConversationChannel(conversationID))
	defer h.hub.CloseClient(client)

	client.Logger.Debug("SSE stream open")
	h.hub.ServeHTTP(c.Writer, c.Request, client)
	client.Logger.Debug("SSE stream closed")
}
