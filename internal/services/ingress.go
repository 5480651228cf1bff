package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/data/repos"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/ctxutil"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	apperr "github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/errors"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

const MaxContentRunes = 4096

// SanitizeContent trims, drops control characters other than newline and tab,
// and caps the result at MaxContentRunes.
func SanitizeContent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if r == unicode.ReplacementChar || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			continue
		}
		if n == MaxContentRunes {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

type InboundMessage struct {
	ChatbotID      uuid.UUID
	ExternalUserID string
	Content        string
	Channel        types.Channel
	Metadata       map[string]any
}

// Ingress normalises inbound channel traffic into Incoming jobs.
type Ingress interface {
	Submit(ctx context.Context, in InboundMessage) (uuid.UUID, error)
	SubmitWidget(ctx context.Context, chatbotID uuid.UUID, sessionID, content string) (uuid.UUID, error)
	SubmitCloud(ctx context.Context, phoneNumberID, from, text, channelMessageID string) (uuid.UUID, error)
	SubmitQR(ctx context.Context, sessionID, from, text string) (uuid.UUID, error)
}

type ingress struct {
	chatbots repos.ChatbotRepo
	whatsapp repos.WhatsAppRepo
	jobs     queue.Enqueuer
	log      *logger.Logger
}

func NewIngress(chatbots repos.ChatbotRepo, whatsapp repos.WhatsAppRepo, jobs queue.Enqueuer, baseLog *logger.Logger) Ingress {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &ingress{
		chatbots: chatbots,
		whatsapp: whatsapp,
		jobs:     jobs,
		log:      baseLog.With("service", "Ingress"),
	}
}

func (s *ingress) Submit(ctx context.Context, in InboundMessage) (uuid.UUID, error) {
	content := SanitizeContent(in.Content)
	user := strings.TrimSpace(in.ExternalUserID)
	switch {
	case in.ChatbotID == uuid.Nil:
		return uuid.Nil, fmt.Errorf("%w: chatbot id required", apperr.ErrInvalidArgument)
	case user == "":
		return uuid.Nil, fmt.Errorf("%w: external user id required", apperr.ErrInvalidArgument)
	case content == "":
		return uuid.Nil, fmt.Errorf("%w: content required", apperr.ErrInvalidArgument)
	case !in.Channel.Valid():
		return uuid.Nil, fmt.Errorf("%w: unknown channel %q", apperr.ErrInvalidArgument, in.Channel)
	}

	bot, err := s.chatbots.GetByID(dbctx.Context{Ctx: ctx}, in.ChatbotID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load chatbot: %w", err)
	}
	if bot == nil || !bot.IsActive {
		return uuid.Nil, fmt.Errorf("%w: chatbot %s", apperr.ErrNotFound, in.ChatbotID)
	}

	job := jobtypes.IncomingMessageJob{
		ChatbotID:      bot.ID,
		ExternalUserID: user,
		Content:        content,
		Channel:        string(in.Channel),
		RequestID:      ctxutil.RequestID(ctx),
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: metadata: %v", apperr.ErrInvalidArgument, err)
		}
		job.Metadata = raw
	}
	id, err := s.jobs.Enqueue(ctx, jobtypes.QueueIncoming, job)
	if err != nil {
		return uuid.Nil, err
	}
	s.log.Debug("Inbound message queued", "chatbot_id", bot.ID, "channel", in.Channel, "job_id", id)
	return id, nil
}

func (s *ingress) SubmitWidget(ctx context.Context, chatbotID uuid.UUID, sessionID, content string) (uuid.UUID, error) {
	return s.Submit(ctx, InboundMessage{
		ChatbotID:      chatbotID,
		ExternalUserID: sessionID,
		Content:        content,
		Channel:        types.ChannelWidget,
	})
}

func (s *ingress) SubmitCloud(ctx context.Context, phoneNumberID, from, text, channelMessageID string) (uuid.UUID, error) {
	acct, err := s.whatsapp.GetCloudAccountByPhoneNumberID(dbctx.Context{Ctx: ctx}, strings.TrimSpace(phoneNumberID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("load cloud account: %w", err)
	}
	if acct == nil || !acct.IsActive {
		return uuid.Nil, fmt.Errorf("%w: whatsapp cloud account for %s", apperr.ErrNotFound, phoneNumberID)
	}
	var meta map[string]any
	if channelMessageID != "" {
		meta = map[string]any{"inboundChannelMessageId": channelMessageID}
	}
	return s.Submit(ctx, InboundMessage{
		ChatbotID:      acct.ChatbotID,
		ExternalUserID: from,
		Content:        text,
		Channel:        types.ChannelWhatsAppCloud,
		Metadata:       meta,
	})
}

func (s *ingress) SubmitQR(ctx context.Context, sessionID, from, text string) (uuid.UUID, error) {
	sess, err := s.whatsapp.GetQRSessionBySessionID(dbctx.Context{Ctx: ctx}, strings.TrimSpace(sessionID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("load qr session: %w", err)
	}
	if sess == nil {
		return uuid.Nil, fmt.Errorf("%w: whatsapp qr session %s", apperr.ErrNotFound, sessionID)
	}
	return s.Submit(ctx, InboundMessage{
		ChatbotID:      sess.ChatbotID,
		ExternalUserID: from,
		Content:        text,
		Channel:        types.ChannelWhatsAppQR,
	})
}
