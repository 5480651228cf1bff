package ai_processing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/router"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	jobrt "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/dbctx"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	var job jobtypes.AIProcessingJob
	if err := jc.Decode(&job); err != nil {
		return err
	}
	ctx := jc.Ctx
	dbc := dbctx.Context{Ctx: ctx}
	log := jc.Log.With("conversation_id", job.ConversationID, "provider", job.AIProvider, "model", job.AIModel)
	if job.RequestID != "" {
		log = log.With("request_id", job.RequestID)
	}

	conv, err := p.conversations.GetByID(dbc, job.ConversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return jobrt.Permanent(fmt.Errorf("conversation %s not found", job.ConversationID))
	}

	params := engine.Params{
		Prompt:       job.Prompt,
		Context:      p.withKnowledge(ctx, log, &job),
		SystemPrompt: job.SystemPrompt,
		Temperature:  job.AIConfig.Temperature,
		MaxTokens:    job.AIConfig.MaxTokens,
		Model:        job.AIModel,
	}
	resp, err := p.generate(ctx, job.AIProvider, params)
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = errEmptyReply
	}
	if err != nil {
		return p.fail(jc, log, conv, err)
	}

	model := resp.Model
	if model == "" {
		model = job.AIModel
	}
	reply, err := p.messages.Create(dbc, &types.Message{
		ConversationID: conv.ID,
		Content:        resp.Content,
		Role:           types.RoleAssistant,
		DeliveryStatus: types.DeliveryPending,
		Metadata: types.EncodeMeta(map[string]any{
			types.MetaAIProvider:   job.AIProvider,
			types.MetaAIModel:      model,
			types.MetaTokensUsed:   resp.TokensUsed,
			types.MetaFinishReason: resp.FinishReason,
		}),
	})
	if err != nil {
		return fmt.Errorf("persist reply: %w", err)
	}
	services.Notify(ctx, p.notify, conv.ID, reply)

	if err := p.conversations.TouchLastMessage(dbc, conv.ID, time.Now()); err != nil {
		log.Warn("Conversation not touched", "error", err)
	}

	var opts []queue.Option
	if jc.Job != nil && jc.Job.Priority > 0 {
		opts = append(opts, queue.WithPriority(jc.Job.Priority))
	}
	outJobID, err := p.jobs.Enqueue(ctx, jobtypes.QueueOutgoing, jobtypes.OutgoingMessageJob{
		ConversationID: conv.ID,
		MessageID:      reply.ID,
		ExternalUserID: conv.ExternalUserID,
		Content:        reply.Content,
		Channel:        string(conv.Channel),
		ChatbotID:      job.ChatbotID,
		CustomerID:     job.CustomerID,
	}, opts...)
	if err != nil {
		return fmt.Errorf("enqueue outgoing job: %w", err)
	}

	if p.usage != nil {
		if err := p.usage.Record(ctx, services.UsageEntry{
			CustomerID: job.CustomerID,
			ChatbotID:  job.ChatbotID,
			Type:       types.UsageAIRequest,
			Quantity:   resp.TokensUsed,
			Metadata:   map[string]any{"provider": job.AIProvider, "model": model},
		}); err != nil {
			log.Warn("Usage not recorded", "error", err)
		}
	}
	if p.webhooks != nil {
		p.webhooks.Dispatch(ctx, job.ChatbotID, types.EventMessageResponded, map[string]any{
			"conversationId": conv.ID,
			"messageId":      reply.ID,
			"content":        reply.Content,
			"aiProvider":     job.AIProvider,
			"aiModel":        model,
			"tokensUsed":     resp.TokensUsed,
		})
	}

	log.Info("AI reply generated", "message_id", reply.ID, "tokens", resp.TokensUsed, "outgoing_job_id", outJobID)
	return nil
}

func (p *Pipeline) generate(ctx context.Context, provider string, params engine.Params) (*engine.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()
	resp, err := p.ai.GenerateResponse(callCtx, provider, params)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("ai request timed out after %s: %w", p.requestTimeout, err)
	}
	return resp, err
}

// withKnowledge prepends knowledge base snippets to the job context. Lookup failures are logged
// and the original context is used.
func (p *Pipeline) withKnowledge(ctx context.Context, log *logger.Logger, job *jobtypes.AIProcessingJob) []string {
	if job.KnowledgeBaseID == nil || p.knowledge == nil {
		return job.Context
	}
	snippets, err := p.knowledge.Search(ctx, *job.KnowledgeBaseID, job.Prompt, KnowledgeTopK)
	if err != nil {
		log.Warn("Knowledge lookup failed; answering without it", "knowledge_base_id", *job.KnowledgeBaseID, "error", err)
		return job.Context
	}
	if len(snippets) == 0 {
		return job.Context
	}
	out := make([]string, 0, len(snippets)+len(job.Context))
	out = append(out, snippets...)
	return append(out, job.Context...)
}

/*
fail persists an apology so the end user never sees silence.
	- configuration errors: apology stored, job completes
	- everything else: apology stored on the first attempt only, error returned for retry
*/
func (p *Pipeline) fail(jc *jobrt.Context, log *logger.Logger, conv *types.Conversation, cause error) error {
	kind := router.Kind(cause)
	if router.IsConfigurationError(cause) {
		log.Error("AI request cannot succeed; not retrying", "kind", kind, "error", cause)
		return p.apologize(jc.Ctx, conv, cause, kind)
	}

	if jc.FirstAttempt() {
		if err := p.apologize(jc.Ctx, conv, cause, kind); err != nil {
			log.Warn("Apology not persisted", "error", err)
		}
	}
	if jc.FinalAttempt() {
		log.Error("AI request failed on final attempt", "kind", kind, "error", cause)
	} else {
		log.Warn("AI request failed; will retry", "kind", kind, "attempt", jc.Attempt(), "error", cause)
	}
	return fmt.Errorf("ai generation (%s): %w", kind, cause)
}

func (p *Pipeline) apologize(ctx context.Context, conv *types.Conversation, cause error, kind string) error {
	msg, err := p.messages.Create(dbctx.Context{Ctx: ctx}, &types.Message{
		ConversationID: conv.ID,
		Content:        apologyFor(cause),
		Role:           types.RoleAssistant,
		DeliveryStatus: types.DeliveryFailed,
		Metadata: types.EncodeMeta(map[string]any{
			types.MetaIsErrorMessage: true,
			types.MetaError:          cause.Error(),
			types.MetaErrorKind:      kind,
		}),
	})
	if err != nil {
		return fmt.Errorf("persist apology: %w", err)
	}
	services.Notify(ctx, p.notify, conv.ID, msg)
	return nil
}
