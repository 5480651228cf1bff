package whatsapp_qr_send

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/channels/whatsappqr"
	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/pipelinetest"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

type fakeSender struct {
	id      string
	err     error
	session string
}

func (s *fakeSender) SendText(_ context.Context, sessionID, _, _ string) (string, error) {
	s.session = sessionID
	return s.id, s.err
}

func TestQRSend(t *testing.T) {
	msgs := &pipelinetest.Messages{}
	usage := &pipelinetest.Usage{}
	msg, err := msgs.Create(dbctx.Context{}, &types.Message{ConversationID: uuid.New(), Content: "Hola", Role: types.RoleAssistant})
	require.NoError(t, err)
	job := jobtypes.WhatsAppQRSendJob{
		SessionID:      "s-1",
		To:             "5215550001111",
		Message:        "Hola",
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		CustomerID:     uuid.New(),
	}

	t.Run("disconnected", func(t *testing.T) {
		sender := &fakeSender{err: fmt.Errorf("gateway: %w", whatsappqr.ErrNotConnected)}
		p := New(nil, msgs, sender, services.NewUsageRecorder(usage, nil), nil)
		require.ErrorIs(t, p.Run(pipelinetest.Job(t, job, 1)), whatsappqr.ErrNotConnected)

		got, _ := msgs.GetByID(dbctx.Context{}, msg.ID)
		assert.Equal(t, types.DeliveryFailed, got.DeliveryStatus)
		assert.Equal(t, "session_disconnected", pipelinetest.Meta(got)[types.MetaErrorKind])
	})

	t.Run("sent", func(t *testing.T) {
		sender := &fakeSender{id: "3EB0"}
		p := New(nil, msgs, sender, services.NewUsageRecorder(usage, nil), nil)
		require.NoError(t, p.Run(pipelinetest.Job(t, job, 2)))

		got, _ := msgs.GetByID(dbctx.Context{}, msg.ID)
		assert.Equal(t, types.DeliverySent, got.DeliveryStatus)
		assert.Equal(t, "3EB0", pipelinetest.Meta(got)[types.MetaChannelMessageID])
		assert.Equal(t, "s-1", sender.session)
		assert.Equal(t, 1, usage.Count(types.UsageWhatsAppMessage))
	})
}
