package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/ctxutil"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	apperr "github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/errors"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/realtime"
)

type fakeSubs struct {
	byCustomer map[uuid.UUID]*types.Subscription
	err        error
	calls      int
}

func (f *fakeSubs) GetActiveByCustomer(_ dbctx.Context, id uuid.UUID) (*types.Subscription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byCustomer[id], nil
}

func subWithPrice(price int64) *types.Subscription {
	return &types.Subscription{
		ID:     uuid.New(),
		Status: types.SubscriptionActive,
		Plan:   &types.Plan{Price: decimal.NewFromInt(price)},
	}
}

func TestResolvePriority(t *testing.T) {
	premium, standard, basic, none := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	subs := &fakeSubs{byCustomer: map[uuid.UUID]*types.Subscription{
		premium:  subWithPrice(150),
		standard: subWithPrice(60),
		basic:    subWithPrice(20),
	}}
	r := NewPriorityResolver(subs, logger.Nop())
	ctx := context.Background()

	assert.Equal(t, 1, r.ResolvePriority(ctx, premium))
	assert.Equal(t, 3, r.ResolvePriority(ctx, standard))
	assert.Equal(t, 5, r.ResolvePriority(ctx, basic))
	assert.Equal(t, 5, r.ResolvePriority(ctx, none))
	assert.Equal(t, 5, r.ResolvePriority(ctx, uuid.Nil))
}

func TestResolvePriorityCachesResult(t *testing.T) {
	id := uuid.New()
	subs := &fakeSubs{byCustomer: map[uuid.UUID]*types.Subscription{id: subWithPrice(100)}}
	r := NewPriorityResolver(subs, logger.Nop())

	assert.Equal(t, 1, r.ResolvePriority(context.Background(), id))
	assert.Equal(t, 1, r.ResolvePriority(context.Background(), id))
	assert.Equal(t, 1, subs.calls)
}

func TestResolvePriorityLookupFailure(t *testing.T) {
	subs := &fakeSubs{err: errors.New("db down")}
	r := NewPriorityResolver(subs, logger.Nop())
	id := uuid.New()

	assert.Equal(t, 5, r.ResolvePriority(context.Background(), id))
	assert.Equal(t, 5, r.ResolvePriority(context.Background(), id))
	assert.Equal(t, 2, subs.calls, "failures are not cached")
}

func TestPriorityForPriceBoundaries(t *testing.T) {
	assert.Equal(t, 1, PriorityForPrice(decimal.RequireFromString("100.00")))
	assert.Equal(t, 3, PriorityForPrice(decimal.RequireFromString("99.99")))
	assert.Equal(t, 3, PriorityForPrice(decimal.NewFromInt(50)))
	assert.Equal(t, 5, PriorityForPrice(decimal.RequireFromString("49.99")))
}

type recordingEmitter struct {
	msgs []realtime.SSEMessage
	err  error
}

func (e *recordingEmitter) Emit(_ context.Context, msg realtime.SSEMessage) error {
	e.msgs = append(e.msgs, msg)
	return e.err
}

func TestDeliveryNotifierEmitsOnConversationChannel(t *testing.T) {
	emit := &recordingEmitter{}
	n := NewDeliveryNotifier(emit, logger.Nop(), nil)
	convID := uuid.New()
	msg := &types.Message{ID: uuid.New(), ConversationID: convID, Role: types.RoleUser, Content: "Hi", DeliveryStatus: types.DeliveryDelivered}

	n.Notify(context.Background(), convID, msg)

	require.Len(t, emit.msgs, 1)
	assert.Equal(t, "conversation:"+convID.String(), emit.msgs[0].Channel)
	assert.Equal(t, realtime.SSEEventMessageCreated, emit.msgs[0].Event)
	payload, ok := emit.msgs[0].Data.(MessagePayload)
	require.True(t, ok)
	assert.Equal(t, "Hi", payload.Content)
}

func TestDeliveryNotifierSwallowsErrors(t *testing.T) {
	emit := &recordingEmitter{err: errors.New("redis down")}
	n := NewDeliveryNotifier(emit, logger.Nop(), nil)
	n.Notify(context.Background(), uuid.New(), &types.Message{ID: uuid.New()})
	assert.Len(t, emit.msgs, 1)

	Notify(context.Background(), nil, uuid.New(), &types.Message{})
}

func TestHubEmitterReachesSubscriber(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	client := hub.NewSSEClient()
	convID := uuid.New()
	hub.AddChannel(client, realtime.ConversationChannel(convID))

	n := NewDeliveryNotifier(NewEmitter(hub, nil, logger.Nop()), logger.Nop(), nil)
	n.Notify(context.Background(), convID, &types.Message{ID: uuid.New(), Content: "Hola"})

	select {
	case got := <-client.Outbound:
		assert.Equal(t, realtime.SSEEventMessageCreated, got.Event)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

type fakeWebhookRepo struct {
	hooks   []*types.Webhook
	events  []*types.WebhookEvent
	listErr error
}

func (f *fakeWebhookRepo) ListActiveForEvent(_ dbctx.Context, _ uuid.UUID, _ string) ([]*types.Webhook, error) {
	return f.hooks, f.listErr
}
func (f *fakeWebhookRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Webhook, error) {
	for _, h := range f.hooks {
		if h.ID == id {
			return h, nil
		}
	}
	return nil, nil
}
func (f *fakeWebhookRepo) CreateEvent(_ dbctx.Context, ev *types.WebhookEvent) (*types.WebhookEvent, error) {
	ev.ID = uuid.New()
	f.events = append(f.events, ev)
	return ev, nil
}
func (f *fakeWebhookRepo) GetEvent(_ dbctx.Context, id uuid.UUID) (*types.WebhookEvent, error) {
	for _, ev := range f.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return nil, nil
}
func (f *fakeWebhookRepo) UpdateEventFields(dbctx.Context, uuid.UUID, map[string]interface{}) error {
	return nil
}

type recordingMirror struct{ events []string }

func (m *recordingMirror) Publish(_ context.Context, event string, _ []byte) error {
	m.events = append(m.events, event)
	return nil
}

func TestWebhookDispatchQueuesOnePerHook(t *testing.T) {
	repo := &fakeWebhookRepo{hooks: []*types.Webhook{
		{ID: uuid.New(), URL: "https://a.example.com/hook"},
		{ID: uuid.New(), URL: "https://b.example.com/hook"},
		{ID: uuid.New(), URL: ""},
	}}
	rec := &queue.Recorder{}
	mirror := &recordingMirror{}
	d := NewWebhookDispatcher(repo, rec, mirror, logger.Nop())
	botID := uuid.New()

	n := d.Dispatch(context.Background(), botID, types.EventMessageReceived, map[string]any{"content": "Hi"})

	assert.Equal(t, 2, n)
	assert.Len(t, repo.events, 2)
	assert.Equal(t, []string{types.EventMessageReceived}, mirror.events)

	var job jobtypes.WebhookDeliveryJob
	require.NoError(t, rec.Decode(jobtypes.QueueWebhook, 0, &job))
	assert.Equal(t, "https://a.example.com/hook", job.URL)
	assert.Equal(t, repo.events[0].ID, job.WebhookEventID)
	var env WebhookEnvelope
	require.NoError(t, json.Unmarshal(job.Payload, &env))
	assert.Equal(t, botID, env.ChatbotID)
	assert.Equal(t, types.EventMessageReceived, env.Event)
}

func TestWebhookDispatchBestEffort(t *testing.T) {
	repo := &fakeWebhookRepo{listErr: errors.New("db down")}
	d := NewWebhookDispatcher(repo, &queue.Recorder{}, nil, logger.Nop())
	assert.Equal(t, 0, d.Dispatch(context.Background(), uuid.New(), types.EventMessageReceived, nil))

	repo = &fakeWebhookRepo{hooks: []*types.Webhook{{ID: uuid.New(), URL: "https://a.example.com"}}}
	d = NewWebhookDispatcher(repo, &queue.Recorder{Err: errors.New("queue down")}, nil, logger.Nop())
	assert.Equal(t, 0, d.Dispatch(context.Background(), uuid.New(), types.EventMessageReceived, nil))
}

func TestSanitizeContent(t *testing.T) {
	assert.Equal(t, "Hola", SanitizeContent("  Hola\x00\x07 "))
	assert.Equal(t, "a\nb\tc", SanitizeContent("a\nb\tc"))
	assert.Equal(t, "", SanitizeContent(" \x01 "))

	long := strings.Repeat("ñ", MaxContentRunes+10)
	assert.Equal(t, MaxContentRunes, len([]rune(SanitizeContent(long))))
}

type fakeChatbots struct{ bots map[uuid.UUID]*types.Chatbot }

func (f *fakeChatbots) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Chatbot, error) {
	return f.bots[id], nil
}

type fakeWhatsApp struct {
	cloud *types.WhatsAppCloudAccount
	qr    *types.WhatsAppQRSession
}

func (f *fakeWhatsApp) GetActiveCloudAccount(dbctx.Context, uuid.UUID) (*types.WhatsAppCloudAccount, error) {
	return f.cloud, nil
}
func (f *fakeWhatsApp) GetCloudAccountByPhoneNumberID(dbctx.Context, string) (*types.WhatsAppCloudAccount, error) {
	return f.cloud, nil
}
func (f *fakeWhatsApp) GetQRSessionByChatbot(dbctx.Context, uuid.UUID) (*types.WhatsAppQRSession, error) {
	return f.qr, nil
}
func (f *fakeWhatsApp) GetQRSessionBySessionID(dbctx.Context, string) (*types.WhatsAppQRSession, error) {
	return f.qr, nil
}

func TestIngressSubmitWidget(t *testing.T) {
	bot := &types.Chatbot{ID: uuid.New(), IsActive: true}
	rec := &queue.Recorder{}
	in := NewIngress(&fakeChatbots{bots: map[uuid.UUID]*types.Chatbot{bot.ID: bot}}, &fakeWhatsApp{}, rec, logger.Nop())

	_, err := in.SubmitWidget(context.Background(), bot.ID, "sess-1", "  Hi\x00 ")
	require.NoError(t, err)

	var job jobtypes.IncomingMessageJob
	require.NoError(t, rec.Decode(jobtypes.QueueIncoming, 0, &job))
	assert.Equal(t, "Hi", job.Content)
	assert.Equal(t, "sess-1", job.ExternalUserID)
	assert.Equal(t, string(types.ChannelWidget), job.Channel)
	assert.Nil(t, job.ConversationID)
	assert.Empty(t, job.RequestID)
}

func TestIngressCarriesRequestID(t *testing.T) {
	bot := &types.Chatbot{ID: uuid.New(), IsActive: true}
	rec := &queue.Recorder{}
	in := NewIngress(&fakeChatbots{bots: map[uuid.UUID]*types.Chatbot{bot.ID: bot}}, &fakeWhatsApp{}, rec, logger.Nop())
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{RequestID: "req-7"})

	_, err := in.SubmitWidget(ctx, bot.ID, "sess-1", "Hi")
	require.NoError(t, err)

	var job jobtypes.IncomingMessageJob
	require.NoError(t, rec.Decode(jobtypes.QueueIncoming, 0, &job))
	assert.Equal(t, "req-7", job.RequestID)
}

func TestIngressRejects(t *testing.T) {
	inactive := &types.Chatbot{ID: uuid.New(), IsActive: false}
	in := NewIngress(&fakeChatbots{bots: map[uuid.UUID]*types.Chatbot{inactive.ID: inactive}}, &fakeWhatsApp{}, &queue.Recorder{}, logger.Nop())
	ctx := context.Background()

	_, err := in.SubmitWidget(ctx, inactive.ID, "s", "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = in.SubmitWidget(ctx, inactive.ID, "s", "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = in.SubmitWidget(ctx, uuid.New(), "s", "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = in.SubmitCloud(ctx, "123", "+56911111111", "hola", "wamid.1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = in.SubmitQR(ctx, "sess", "+56911111111", "hola")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIngressSubmitCloudRoutesToAccountChatbot(t *testing.T) {
	bot := &types.Chatbot{ID: uuid.New(), IsActive: true}
	rec := &queue.Recorder{}
	wa := &fakeWhatsApp{cloud: &types.WhatsAppCloudAccount{ChatbotID: bot.ID, PhoneNumberID: "123", IsActive: true}}
	in := NewIngress(&fakeChatbots{bots: map[uuid.UUID]*types.Chatbot{bot.ID: bot}}, wa, rec, logger.Nop())

	_, err := in.SubmitCloud(context.Background(), "123", "+56911111111", "hola", "wamid.1")
	require.NoError(t, err)

	var job jobtypes.IncomingMessageJob
	require.NoError(t, rec.Decode(jobtypes.QueueIncoming, 0, &job))
	assert.Equal(t, bot.ID, job.ChatbotID)
	assert.Equal(t, string(types.ChannelWhatsAppCloud), job.Channel)
	assert.JSONEq(t, `{"inboundChannelMessageId":"wamid.1"}`, string(job.Metadata))
}

type fakeUsageRepo struct{ rows []*types.UsageLog }

func (f *fakeUsageRepo) Create(_ dbctx.Context, row *types.UsageLog) error {
	f.rows = append(f.rows, row)
	return nil
}
func (f *fakeUsageRepo) SumSince(dbctx.Context, uuid.UUID, types.UsageType, time.Time) (int64, error) {
	return 0, nil
}

func TestUsageRecorder(t *testing.T) {
	repo := &fakeUsageRepo{}
	u := NewUsageRecorder(repo, logger.Nop())
	customer, bot := uuid.New(), uuid.New()

	require.NoError(t, u.Record(context.Background(), UsageEntry{CustomerID: customer, ChatbotID: bot, Type: types.UsageMessage}))
	require.NoError(t, u.Record(context.Background(), UsageEntry{CustomerID: customer, Type: types.UsageAIRequest, Quantity: 12}))
	require.Error(t, u.Record(context.Background(), UsageEntry{Type: types.UsageMessage}))

	require.Len(t, repo.rows, 2)
	assert.Equal(t, 1, repo.rows[0].Quantity)
	assert.Equal(t, bot, *repo.rows[0].ChatbotID)
	assert.Equal(t, 12, repo.rows[1].Quantity)
	assert.Nil(t, repo.rows[1].ChatbotID)
}
