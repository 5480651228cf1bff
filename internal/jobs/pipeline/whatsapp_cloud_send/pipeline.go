package whatsapp_cloud_send

import (
	"context"
	"fmt"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	jobrt "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	var job jobtypes.WhatsAppCloudSendJob
	if err := jc.Decode(&job); err != nil {
		return err
	}
	log := jc.Log.With("message_id", job.MessageID, "phone_number_id", job.PhoneNumberID)
	dbc := dbctx.Context{Ctx: jc.Ctx}

	ctx, cancel := context.WithTimeout(jc.Ctx, sendTimeout)
	channelMsgID, err := p.sender.SendText(ctx, job.PhoneNumberID, job.AccessToken, job.To, job.Message)
	cancel()
	if err != nil {
		p.metrics.IncChannelSend(string(types.ChannelWhatsAppCloud), "error")
		if uerr := p.messages.UpdateDelivery(dbc, job.MessageID, types.DeliveryFailed, map[string]any{
			types.MetaError:   err.Error(),
			types.MetaAttempt: jc.Attempt(),
		}); uerr != nil {
			log.Warn("Delivery status not updated", "error", uerr)
		}
		if jc.FinalAttempt() {
			log.Error("WhatsApp Cloud send failed on final attempt", "error", err)
		} else {
			log.Warn("WhatsApp Cloud send failed; will retry", "attempt", jc.Attempt(), "error", err)
		}
		return fmt.Errorf("whatsapp cloud send: %w", err)
	}

	p.metrics.IncChannelSend(string(types.ChannelWhatsAppCloud), "ok")
	if err := p.messages.UpdateDelivery(dbc, job.MessageID, types.DeliverySent, map[string]any{
		types.MetaChannelMessageID: channelMsgID,
	}); err != nil {
		// the text already left; retrying would send it twice
		log.Error("Sent message not marked SENT", "channel_message_id", channelMsgID, "error", err)
	}
	if p.usage != nil {
		if err := p.usage.Record(jc.Ctx, services.UsageEntry{
			CustomerID: job.CustomerID,
			ChatbotID:  job.ChatbotID,
			Type:       types.UsageWhatsAppMessage,
			Quantity:   1,
			Metadata:   map[string]any{"channel": types.ChannelWhatsAppCloud},
		}); err != nil {
			log.Warn("Usage not recorded", "error", err)
		}
	}
	log.Info("WhatsApp Cloud message sent", "channel_message_id", channelMsgID)
	return nil
}
