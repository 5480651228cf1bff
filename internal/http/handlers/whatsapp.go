package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/http/response"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

type WhatsAppHandler struct {
	log         *logger.Logger
	ingress     services.Ingress
	verifyToken string
}

func NewWhatsAppHandler(log *logger.Logger, ingress services.Ingress, verifyToken string) *WhatsAppHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WhatsAppHandler{log: log.With("handler", "WhatsAppHandler"), ingress: ingress, verifyToken: verifyToken}
}

// VerifyCloud GET /api/webhooks/whatsapp/cloud answers Meta's subscription handshake.
func (h *WhatsAppHandler) VerifyCloud(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")
	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		h.log.Warn("WhatsApp Cloud verification rejected", "mode", mode)
		c.Status(http.StatusForbidden)
		return
	}
	c.String(http.StatusOK, challenge)
}

type cloudNotification struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ReceiveCloud POST /api/webhooks/whatsapp/cloud. Meta redelivers on any non-200, so
// per-message failures are logged and the call still succeeds.
func (h *WhatsAppHandler) ReceiveCloud(c *gin.Context) {
	var body cloudNotification
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	accepted, skipped := 0, 0
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			phoneNumberID := change.Value.Metadata.PhoneNumberID
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text.Body == "" {
					skipped++
					continue
				}
				if _, err := h.ingress.SubmitCloud(c.Request.Context(), phoneNumberID, m.From, m.Text.Body, m.ID); err != nil {
					h.log.Warn("WhatsApp Cloud message not accepted", "phone_number_id", phoneNumberID, "channel_message_id", m.ID, "error", err)
					skipped++
					continue
				}
				accepted++
			}
		}
	}
	response.RespondOK(c, gin.H{"accepted": accepted, "skipped": skipped})
}

type qrInboundRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	From      string `json:"from" binding:"required"`
	Text      string `json:"text" binding:"required"`
}

// ReceiveQR POST /api/webhooks/whatsapp/qr
func (h *WhatsAppHandler) ReceiveQR(c *gin.Context) {
	var req qrInboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	jobID, err := h.ingress.SubmitQR(c.Request.Context(), req.SessionID, req.From, req.Text)
	if err != nil {
		h.log.Warn("WhatsApp QR message not accepted", "session_id", req.SessionID, "error", err)
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, queuedResponse{JobID: jobID, Status: "queued"})
}
