package outgoing_message

import (
	"errors"
	"fmt"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	jobrt "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

var (
	ErrNoCloudAccount = errors.New("no active WhatsApp Cloud account for chatbot")
	ErrQRDisconnected = errors.New("WhatsApp QR session is not connected")
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	var job jobtypes.OutgoingMessageJob
	if err := jc.Decode(&job); err != nil {
		return err
	}
	log := jc.Log.With("message_id", job.MessageID, "channel", job.Channel)

	var err error
	switch types.Channel(job.Channel) {
	case types.ChannelWidget:
		err = p.deliverWidget(jc, &job)
	case types.ChannelWhatsAppCloud:
		err = p.handoffCloud(jc, &job)
	case types.ChannelWhatsAppQR:
		err = p.handoffQR(jc, &job)
	default:
		err = jobrt.Permanent(fmt.Errorf("unsupported channel %q", job.Channel))
	}
	if err == nil {
		log.Debug("Outgoing message routed")
		return nil
	}

	if uerr := p.messages.UpdateDelivery(dbctx.Context{Ctx: jc.Ctx}, job.MessageID, types.DeliveryFailed, map[string]any{
		types.MetaError:   err.Error(),
		types.MetaAttempt: jc.Attempt(),
	}); uerr != nil {
		log.Warn("Delivery status not updated", "error", uerr)
	}
	log.Warn("Outgoing message failed", "attempt", jc.Attempt(), "error", err)
	return err
}

// deliverWidget pushes the stored reply to the widget room and marks it SENT.
func (p *Pipeline) deliverWidget(jc *jobrt.Context, job *jobtypes.OutgoingMessageJob) error {
	dbc := dbctx.Context{Ctx: jc.Ctx}
	msg, err := p.messages.GetByID(dbc, job.MessageID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if msg == nil {
		return jobrt.Permanent(fmt.Errorf("message %s not found", job.MessageID))
	}
	msg.DeliveryStatus = types.DeliverySent
	services.Notify(jc.Ctx, p.notify, job.ConversationID, msg)
	return p.messages.UpdateDelivery(dbc, msg.ID, types.DeliverySent, nil)
}

func (p *Pipeline) handoffCloud(jc *jobrt.Context, job *jobtypes.OutgoingMessageJob) error {
	acct, err := p.whatsapp.GetActiveCloudAccount(dbctx.Context{Ctx: jc.Ctx}, job.ChatbotID)
	if err != nil {
		return fmt.Errorf("load cloud account: %w", err)
	}
	if acct == nil {
		return ErrNoCloudAccount
	}
	_, err = p.jobs.Enqueue(jc.Ctx, jobtypes.QueueWhatsAppCloud, jobtypes.WhatsAppCloudSendJob{
		PhoneNumberID:  acct.PhoneNumberID,
		AccessToken:    acct.AccessToken,
		To:             job.ExternalUserID,
		Message:        job.Content,
		MessageID:      job.MessageID,
		ConversationID: job.ConversationID,
		CustomerID:     job.CustomerID,
		ChatbotID:      job.ChatbotID,
	}, p.priority(jc)...)
	if err != nil {
		return fmt.Errorf("enqueue cloud send: %w", err)
	}
	return nil
}

func (p *Pipeline) handoffQR(jc *jobrt.Context, job *jobtypes.OutgoingMessageJob) error {
	sess, err := p.whatsapp.GetQRSessionByChatbot(dbctx.Context{Ctx: jc.Ctx}, job.ChatbotID)
	if err != nil {
		return fmt.Errorf("load qr session: %w", err)
	}
	if sess == nil || sess.Status != types.QRSessionConnected {
		return ErrQRDisconnected
	}
	_, err = p.jobs.Enqueue(jc.Ctx, jobtypes.QueueWhatsAppQR, jobtypes.WhatsAppQRSendJob{
		SessionID:      sess.SessionID,
		To:             job.ExternalUserID,
		Message:        job.Content,
		MessageID:      job.MessageID,
		ConversationID: job.ConversationID,
		CustomerID:     job.CustomerID,
		ChatbotID:      job.ChatbotID,
	}, p.priority(jc)...)
	if err != nil {
		return fmt.Errorf("enqueue qr send: %w", err)
	}
	return nil
}

func (p *Pipeline) priority(jc *jobrt.Context) []queue.Option {
	if jc.Job == nil || jc.Job.Priority <= 0 {
		return nil
	}
	return []queue.Option{queue.WithPriority(jc.Job.Priority)}
}
