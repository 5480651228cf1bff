package whatsapp_qr_send

import (
	"context"
	"errors"
	"fmt"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/channels/whatsappqr"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	jobrt "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	var job jobtypes.WhatsAppQRSendJob
	if err := jc.Decode(&job); err != nil {
		return err
	}
	log := jc.Log.With("message_id", job.MessageID, "session_id", job.SessionID)
	dbc := dbctx.Context{Ctx: jc.Ctx}

	ctx, cancel := context.WithTimeout(jc.Ctx, sendTimeout)
	channelMsgID, err := p.sender.SendText(ctx, job.SessionID, job.To, job.Message)
	cancel()
	if err != nil {
		p.metrics.IncChannelSend(string(types.ChannelWhatsAppQR), "error")
		meta := map[string]any{
			types.MetaError:   err.Error(),
			types.MetaAttempt: jc.Attempt(),
		}
		if errors.Is(err, whatsappqr.ErrNotConnected) {
			meta[types.MetaErrorKind] = "session_disconnected"
		}
		if uerr := p.messages.UpdateDelivery(dbc, job.MessageID, types.DeliveryFailed, meta); uerr != nil {
			log.Warn("Delivery status not updated", "error", uerr)
		}
		if jc.FinalAttempt() {
			log.Error("WhatsApp QR send failed on final attempt", "error", err)
		} else {
			log.Warn("WhatsApp QR send failed; will retry", "attempt", jc.Attempt(), "error", err)
		}
		return fmt.Errorf("whatsapp qr send: %w", err)
	}

	p.metrics.IncChannelSend(string(types.ChannelWhatsAppQR), "ok")
	if err := p.messages.UpdateDelivery(dbc, job.MessageID, types.DeliverySent, map[string]any{
		types.MetaChannelMessageID: channelMsgID,
	}); err != nil {
		log.Error("Sent message not marked SENT", "channel_message_id", channelMsgID, "error", err)
	}
	if p.usage != nil {
		if err := p.usage.Record(jc.Ctx, services.UsageEntry{
			CustomerID: job.CustomerID,
			ChatbotID:  job.ChatbotID,
			Type:       types.UsageWhatsAppMessage,
			Quantity:   1,
			Metadata:   map[string]any{"channel": types.ChannelWhatsAppQR},
		}); err != nil {
			log.Warn("Usage not recorded", "error", err)
		}
	}
	log.Info("WhatsApp QR message sent", "channel_message_id", channelMsgID)
	return nil
}
