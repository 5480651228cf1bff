// Package pipelinetest holds in-memory repositories for stage tests.
package pipelinetest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
)

// ErrDown is what a repo returns once its Fail flag is set.
var ErrDown = errors.New("store unavailable")

type Chatbots struct {
	mu   sync.Mutex
	bots map[uuid.UUID]*types.Chatbot
}

func (c *Chatbots) Put(bot *types.Chatbot) *types.Chatbot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bots == nil {
		c.bots = map[uuid.UUID]*types.Chatbot{}
	}
	if bot.ID == uuid.Nil {
		bot.ID = uuid.New()
	}
	c.bots[bot.ID] = bot
	return bot
}

func (c *Chatbots) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Chatbot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bots[id], nil
}

type Conversations struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*types.Conversation
	bots  *Chatbots
	Fail  bool
	Touch int
}

func NewConversations(bots *Chatbots) *Conversations {
	return &Conversations{rows: map[uuid.UUID]*types.Conversation{}, bots: bots}
}

func (c *Conversations) Put(conv *types.Conversation) *types.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.Status == "" {
		conv.Status = types.ConversationActive
	}
	c.rows[conv.ID] = conv
	return conv
}

func (c *Conversations) withBot(conv *types.Conversation) *types.Conversation {
	out := *conv
	if c.bots != nil {
		out.Chatbot, _ = c.bots.GetByID(dbctx.Context{}, conv.ChatbotID)
	}
	return &out
}

func (c *Conversations) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return nil, ErrDown
	}
	conv, ok := c.rows[id]
	if !ok {
		return nil, nil
	}
	return c.withBot(conv), nil
}

func (c *Conversations) FindActive(_ dbctx.Context, chatbotID uuid.UUID, externalUserID string, channel types.Channel) (*types.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return nil, ErrDown
	}
	return c.findLocked(chatbotID, externalUserID, channel), nil
}

func (c *Conversations) findLocked(chatbotID uuid.UUID, externalUserID string, channel types.Channel) *types.Conversation {
	for _, conv := range c.rows {
		if conv.ChatbotID == chatbotID && conv.ExternalUserID == externalUserID && conv.Channel == channel &&
			(conv.Status == types.ConversationActive || conv.Status == types.ConversationHumanAgent) {
			return c.withBot(conv)
		}
	}
	return nil
}

func (c *Conversations) FindOrCreateActive(_ dbctx.Context, chatbotID uuid.UUID, externalUserID string, channel types.Channel) (*types.Conversation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return nil, false, ErrDown
	}
	if conv := c.findLocked(chatbotID, externalUserID, channel); conv != nil {
		return conv, false, nil
	}
	now := time.Now()
	conv := &types.Conversation{
		ID:             uuid.New(),
		ChatbotID:      chatbotID,
		ExternalUserID: externalUserID,
		Channel:        channel,
		Status:         types.ConversationActive,
		LastMessageAt:  &now,
		CreatedAt:      now,
	}
	c.rows[conv.ID] = conv
	return c.withBot(conv), true, nil
}

func (c *Conversations) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.rows[id]
	if !ok {
		return nil
	}
	if v, ok := updates["status"].(types.ConversationStatus); ok {
		conv.Status = v
	}
	if v, ok := updates["last_message_at"].(time.Time); ok {
		conv.LastMessageAt = &v
	}
	return nil
}

func (c *Conversations) TouchLastMessage(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	c.mu.Lock()
	c.Touch++
	c.mu.Unlock()
	return c.UpdateFields(dbc, id, map[string]interface{}{"last_message_at": at})
}

func (c *Conversations) All() []*types.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Conversation, 0, len(c.rows))
	for _, conv := range c.rows {
		out = append(out, conv)
	}
	return out
}

type Messages struct {
	mu    sync.Mutex
	rows  []*types.Message
	clock time.Time
	Fail  bool
}

func (m *Messages) Create(_ dbctx.Context, msg *types.Message) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrDown
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		// strictly increasing so ordering is deterministic
		if m.clock.IsZero() {
			m.clock = time.Now()
		}
		m.clock = m.clock.Add(time.Millisecond)
		msg.CreatedAt = m.clock
	}
	if len(msg.Metadata) == 0 {
		msg.Metadata = types.EncodeMeta(nil)
	}
	m.rows = append(m.rows, msg)
	return msg, nil
}

func (m *Messages) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.rows {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Messages) ListRecent(_ dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrDown
	}
	var out []*types.Message
	for _, msg := range m.rows {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *Messages) UpdateDelivery(_ dbctx.Context, id uuid.UUID, status types.DeliveryStatus, meta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.rows {
		if msg.ID != id {
			continue
		}
		msg.DeliveryStatus = status
		if len(meta) > 0 {
			merged := msg.Meta()
			for k, v := range meta {
				merged[k] = v
			}
			msg.Metadata = types.EncodeMeta(merged)
		}
	}
	return nil
}

// ByRole returns messages with the given role in creation order.
func (m *Messages) ByRole(role types.Role) []*types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Message
	for _, msg := range m.rows {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

type WhatsApp struct {
	Cloud *types.WhatsAppCloudAccount
	QR    *types.WhatsAppQRSession
}

func (w *WhatsApp) GetActiveCloudAccount(_ dbctx.Context, chatbotID uuid.UUID) (*types.WhatsAppCloudAccount, error) {
	if w.Cloud == nil || w.Cloud.ChatbotID != chatbotID || !w.Cloud.IsActive {
		return nil, nil
	}
	return w.Cloud, nil
}

func (w *WhatsApp) GetCloudAccountByPhoneNumberID(_ dbctx.Context, id string) (*types.WhatsAppCloudAccount, error) {
	if w.Cloud == nil || w.Cloud.PhoneNumberID != id {
		return nil, nil
	}
	return w.Cloud, nil
}

func (w *WhatsApp) GetQRSessionByChatbot(_ dbctx.Context, chatbotID uuid.UUID) (*types.WhatsAppQRSession, error) {
	if w.QR == nil || w.QR.ChatbotID != chatbotID {
		return nil, nil
	}
	return w.QR, nil
}

func (w *WhatsApp) GetQRSessionBySessionID(_ dbctx.Context, id string) (*types.WhatsAppQRSession, error) {
	if w.QR == nil || w.QR.SessionID != id {
		return nil, nil
	}
	return w.QR, nil
}

type Webhooks struct {
	mu     sync.Mutex
	Hooks  []*types.Webhook
	events map[uuid.UUID]*types.WebhookEvent
}

func (w *Webhooks) ListActiveForEvent(_ dbctx.Context, chatbotID uuid.UUID, event string) ([]*types.Webhook, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*types.Webhook
	for _, h := range w.Hooks {
		if h.ChatbotID != chatbotID || !h.IsActive {
			continue
		}
		for _, ev := range h.Events {
			if ev == event {
				out = append(out, h)
				break
			}
		}
	}
	return out, nil
}

func (w *Webhooks) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Webhook, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range w.Hooks {
		if h.ID == id {
			return h, nil
		}
	}
	return nil, nil
}

func (w *Webhooks) CreateEvent(_ dbctx.Context, ev *types.WebhookEvent) (*types.WebhookEvent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.events == nil {
		w.events = map[uuid.UUID]*types.WebhookEvent{}
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Status == "" {
		ev.Status = types.WebhookEventPending
	}
	w.events[ev.ID] = ev
	return ev, nil
}

func (w *Webhooks) GetEvent(_ dbctx.Context, id uuid.UUID) (*types.WebhookEvent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ev, ok := w.events[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (w *Webhooks) UpdateEventFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ev, ok := w.events[id]
	if !ok {
		return nil
	}
	if v, ok := updates["status"].(types.WebhookEventStatus); ok {
		ev.Status = v
	}
	if v, ok := updates["attempts"].(int); ok {
		ev.Attempts = v
	}
	if v, ok := updates["response_status"].(int); ok {
		ev.ResponseStatus = v
	}
	if v, ok := updates["last_error"].(string); ok {
		ev.LastError = v
	}
	if v, ok := updates["delivered_at"].(time.Time); ok {
		ev.DeliveredAt = &v
	}
	return nil
}

type Usage struct {
	mu   sync.Mutex
	Rows []*types.UsageLog
}

func (u *Usage) Create(_ dbctx.Context, row *types.UsageLog) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Rows = append(u.Rows, row)
	return nil
}

func (u *Usage) SumSince(_ dbctx.Context, customerID uuid.UUID, usageType types.UsageType, since time.Time) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var total int64
	for _, r := range u.Rows {
		if r.CustomerID == customerID && r.Type == usageType && !r.CreatedAt.Before(since) {
			total += int64(r.Quantity)
		}
	}
	return total, nil
}

func (u *Usage) Count(t types.UsageType) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, r := range u.Rows {
		if r.Type == t {
			n++
		}
	}
	return n
}

type Subscriptions struct {
	ByCustomer map[uuid.UUID]*types.Subscription
}

func (s *Subscriptions) GetActiveByCustomer(_ dbctx.Context, id uuid.UUID) (*types.Subscription, error) {
	return s.ByCustomer[id], nil
}

// Notifications records every DeliveryNotifier call.
type Notifications struct {
	mu    sync.Mutex
	Calls []Notification
}

type Notification struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Role           types.Role
	Content        string
}

func (n *Notifications) Notify(_ context.Context, conversationID uuid.UUID, msg *types.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rec := Notification{ConversationID: conversationID}
	if msg != nil {
		rec.MessageID, rec.Role, rec.Content = msg.ID, msg.Role, msg.Content
	}
	n.Calls = append(n.Calls, rec)
}

func (n *Notifications) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Calls)
}

// Meta decodes a message's metadata for assertions.
func Meta(msg *types.Message) map[string]any {
	out := map[string]any{}
	if msg != nil {
		_ = json.Unmarshal(msg.Metadata, &out)
	}
	return out
}
