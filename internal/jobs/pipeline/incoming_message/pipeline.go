package incoming_message

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	jobrt "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	var job jobtypes.IncomingMessageJob
	if err := jc.Decode(&job); err != nil {
		return err
	}
	ctx := jc.Ctx
	dbc := dbctx.Context{Ctx: ctx}
	channel := types.Channel(job.Channel)

	bot, err := p.chatbots.GetByID(dbc, job.ChatbotID)
	if err != nil {
		return fmt.Errorf("load chatbot: %w", err)
	}
	if bot == nil {
		return jobrt.Permanent(fmt.Errorf("chatbot %s not found", job.ChatbotID))
	}
	log := jc.Log.With("chatbot_id", bot.ID, "channel", channel)
	if job.RequestID != "" {
		log = log.With("request_id", job.RequestID)
	}
	conv, err := p.loadConversation(dbc, log, &job, channel)
	if err != nil {
		return err
	}
	log = log.With("conversation_id", conv.ID)

	meta := map[string]any{}
	if len(job.Metadata) > 0 {
		if err := json.Unmarshal(job.Metadata, &meta); err != nil {
			log.Warn("Inbound metadata dropped; not a JSON object", "error", err)
			meta = map[string]any{}
		}
	}
	humanAgent := conv.Status == types.ConversationHumanAgent
	if humanAgent {
		meta[types.MetaHumanAgent] = true
	}
	msg, err := p.messages.Create(dbc, &types.Message{
		ConversationID: conv.ID,
		Content:        job.Content,
		Role:           types.RoleUser,
		DeliveryStatus: types.DeliveryDelivered,
		Metadata:       types.EncodeMeta(meta),
	})
	if err != nil {
		return fmt.Errorf("persist inbound message: %w", err)
	}

	services.Notify(ctx, p.notify, conv.ID, msg)
	if p.webhooks != nil {
		p.webhooks.Dispatch(ctx, bot.ID, types.EventMessageReceived, map[string]any{
			"conversationId": conv.ID,
			"messageId":      msg.ID,
			"externalUserId": conv.ExternalUserID,
			"channel":        channel,
			"content":        msg.Content,
		})
	}

	if err := p.conversations.TouchLastMessage(dbc, conv.ID, time.Now()); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	history, err := p.messages.ListRecent(dbc, conv.ID, ContextWindow)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	if humanAgent {
		log.Info("Conversation handled by a human agent; skipping AI", "message_id", msg.ID)
		return nil
	}

	priority := services.PriorityDefault
	if p.priority != nil {
		priority = p.priority.ResolvePriority(ctx, bot.CustomerID)
	}
	aiJob := jobtypes.AIProcessingJob{
		ConversationID:  conv.ID,
		ChatbotID:       bot.ID,
		CustomerID:      bot.CustomerID,
		MessageID:       msg.ID,
		Prompt:          job.Content,
		Context:         RenderContext(history),
		SystemPrompt:    bot.SystemPrompt,
		AIProvider:      bot.AIProvider,
		AIModel:         bot.AIModel,
		AIConfig:        jobtypes.AIConfig{Temperature: bot.Temperature, MaxTokens: bot.MaxTokens},
		KnowledgeBaseID: bot.KnowledgeBaseID,
		RequestID:       job.RequestID,
	}
	aiJobID, err := p.jobs.Enqueue(ctx, jobtypes.QueueAIProcessing, aiJob, queue.WithPriority(priority))
	if err != nil {
		return fmt.Errorf("enqueue ai job: %w", err)
	}

	if p.usage != nil {
		if err := p.usage.Record(ctx, services.UsageEntry{
			CustomerID: bot.CustomerID,
			ChatbotID:  bot.ID,
			Type:       types.UsageMessage,
			Quantity:   1,
		}); err != nil {
			log.Warn("Usage not recorded", "error", err)
		}
	}

	log.Info("Inbound message processed", "message_id", msg.ID, "ai_job_id", aiJobID, "priority", priority)
	return nil
}

// loadConversation honours a caller-supplied conversation id only when it belongs to the same
// chatbot and channel and is not closed.
func (p *Pipeline) loadConversation(dbc dbctx.Context, log *logger.Logger, job *jobtypes.IncomingMessageJob, channel types.Channel) (*types.Conversation, error) {
	if job.ConversationID != nil && *job.ConversationID != uuid.Nil {
		conv, err := p.conversations.GetByID(dbc, *job.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		switch {
		case conv == nil:
		case conv.ChatbotID != job.ChatbotID || conv.Channel != channel:
			log.Warn("Ignoring conversation id from another chat", "given_conversation_id", conv.ID)
		case conv.Status == types.ConversationClosed:
			log.Info("Given conversation is closed; opening a new one", "given_conversation_id", conv.ID)
		default:
			return conv, nil
		}
	}
	conv, _, err := p.conversations.FindOrCreateActive(dbc, job.ChatbotID, job.ExternalUserID, channel)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	return conv, nil
}

// RenderContext formats messages as "ROLE: content" lines, oldest first.
func RenderContext(history []*types.Message) []string {
	out := make([]string, 0, len(history))
	for _, m := range history {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return out
}
