package ai_processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/FelipeVegaEsparza/hostbot-sub000/internal/domain"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/circuit"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/engine/enginetest"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/router"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/jobtypes"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/pipeline/pipelinetest"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/queue"
	jobrt "github.com/FelipeVegaEsparza/hostbot-sub000/internal/jobs/runtime"
	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/services"
)

type fakeKnowledge struct {
	snippets []string
	err      error
	calls    int
}

func (k *fakeKnowledge) Search(_ context.Context, _ uuid.UUID, _ string, topK int) ([]string, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	if len(k.snippets) > topK {
		return k.snippets[:topK], nil
	}
	return k.snippets, nil
}

type fixture struct {
	convs    *pipelinetest.Conversations
	msgs     *pipelinetest.Messages
	usage    *pipelinetest.Usage
	notified *pipelinetest.Notifications
	jobs     *queue.Recorder
	stub     *enginetest.Stub
	breaker  *circuit.Breaker
	kb       *fakeKnowledge
	conv     *types.Conversation
	p        *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bots := &pipelinetest.Chatbots{}
	f := &fixture{
		msgs:     &pipelinetest.Messages{},
		usage:    &pipelinetest.Usage{},
		notified: &pipelinetest.Notifications{},
		jobs:     &queue.Recorder{},
		stub:     enginetest.New("openai", "gpt-4o-mini"),
		breaker:  circuit.New(circuit.Config{}, nil),
		kb:       &fakeKnowledge{},
	}
	f.convs = pipelinetest.NewConversations(bots)
	bot := bots.Put(&types.Chatbot{CustomerID: uuid.New(), AIProvider: "openai", AIModel: "gpt-4o-mini"})
	f.conv = f.convs.Put(&types.Conversation{ChatbotID: bot.ID, ExternalUserID: "u1", Channel: types.ChannelWidget})
	f.stub.Set(&engine.Response{Content: "Hello!", TokensUsed: 12, Model: "gpt-4o-mini", FinishReason: "stop"}, nil)

	ai := router.New(f.breaker, nil, []engine.Adapter{f.stub})
	f.p = New(nil, f.convs, f.msgs, ai, f.kb, f.jobs,
		services.NewUsageRecorder(f.usage, nil), f.notified, nil)
	return f
}

func (f *fixture) job() jobtypes.AIProcessingJob {
	return jobtypes.AIProcessingJob{
		ConversationID: f.conv.ID,
		ChatbotID:      f.conv.ChatbotID,
		CustomerID:     uuid.New(),
		MessageID:      uuid.New(),
		Prompt:         "Hi",
		Context:        []string{"USER: Hi"},
		AIProvider:     "openai",
		AIModel:        "gpt-4o-mini",
	}
}

func TestReplyPersistedAndQueued(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.p.Run(pipelinetest.Job(t, f.job(), 1)))

	replies := f.msgs.ByRole(types.RoleAssistant)
	require.Len(t, replies, 1)
	assert.Equal(t, "Hello!", replies[0].Content)
	assert.Equal(t, types.DeliveryPending, replies[0].DeliveryStatus)
	meta := pipelinetest.Meta(replies[0])
	assert.EqualValues(t, 12, meta[types.MetaTokensUsed])
	assert.Equal(t, "openai", meta[types.MetaAIProvider])
	assert.Equal(t, "stop", meta[types.MetaFinishReason])

	var out jobtypes.OutgoingMessageJob
	require.NoError(t, f.jobs.Decode(jobtypes.QueueOutgoing, 0, &out))
	assert.Equal(t, "WIDGET", out.Channel)
	assert.Equal(t, "u1", out.ExternalUserID)
	assert.Equal(t, replies[0].ID, out.MessageID)

	assert.Equal(t, 1, f.notified.Len())
	require.Len(t, f.usage.Rows, 1)
	assert.Equal(t, types.UsageAIRequest, f.usage.Rows[0].Type)
	assert.Equal(t, 12, f.usage.Rows[0].Quantity)
	assert.Equal(t, []string{"USER: Hi"}, f.stub.LastParams.Context)
}

func TestInvalidModelPersistsApologyWithoutRetry(t *testing.T) {
	f := newFixture(t)
	job := f.job()
	job.AIModel = "gpt-nonexistent"

	require.NoError(t, f.p.Run(pipelinetest.Job(t, job, 1)))

	replies := f.msgs.ByRole(types.RoleAssistant)
	require.Len(t, replies, 1)
	assert.Equal(t, types.DeliveryFailed, replies[0].DeliveryStatus)
	meta := pipelinetest.Meta(replies[0])
	assert.Equal(t, true, meta[types.MetaIsErrorMessage])
	assert.Equal(t, "invalid_model", meta[types.MetaErrorKind])
	assert.Equal(t, apologyConfiguration, replies[0].Content)
	assert.Empty(t, f.jobs.Jobs(jobtypes.QueueOutgoing))
	assert.Equal(t, 0, f.stub.CallCount())
}

func TestUnknownProviderIsNotRetried(t *testing.T) {
	f := newFixture(t)
	job := f.job()
	job.AIProvider = "bard"

	require.NoError(t, f.p.Run(pipelinetest.Job(t, job, 1)))
	assert.Len(t, f.msgs.ByRole(types.RoleAssistant), 1)
}

func TestOpenCircuitPersistsApologyAndRetries(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < circuit.DefaultFailureThreshold; i++ {
		f.breaker.RecordFailure("openai", errors.New("boom"))
	}
	require.Equal(t, circuit.StateOpen, f.breaker.State("openai"))

	err := f.p.Run(pipelinetest.Job(t, f.job(), 1))
	require.Error(t, err)
	assert.False(t, jobrt.IsPermanent(err))
	assert.True(t, router.IsServiceUnavailable(err))

	replies := f.msgs.ByRole(types.RoleAssistant)
	require.Len(t, replies, 1)
	assert.Equal(t, f.breaker.FallbackResponse("openai"), replies[0].Content)
	assert.Equal(t, "service_unavailable", pipelinetest.Meta(replies[0])[types.MetaErrorKind])
	assert.Empty(t, f.jobs.Jobs(jobtypes.QueueOutgoing))
}

func TestRetryDoesNotRepeatApology(t *testing.T) {
	f := newFixture(t)
	f.stub.Set(nil, errors.New("upstream 500"))

	require.Error(t, f.p.Run(pipelinetest.Job(t, f.job(), 1)))
	require.Error(t, f.p.Run(pipelinetest.Job(t, f.job(), 2)))
	assert.Len(t, f.msgs.ByRole(types.RoleAssistant), 1)
	assert.Equal(t, apologyTransient, f.msgs.ByRole(types.RoleAssistant)[0].Content)
}

func TestEmptyReplyIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.stub.Set(&engine.Response{Content: "   ", Model: "gpt-4o-mini"}, nil)

	err := f.p.Run(pipelinetest.Job(t, f.job(), 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, errEmptyReply)
	assert.Empty(t, f.jobs.Jobs(jobtypes.QueueOutgoing))
}

func TestKnowledgeSnippetsPrepended(t *testing.T) {
	f := newFixture(t)
	f.kb.snippets = []string{"Horario: 9 a 18", "Envios gratis"}
	kbID := uuid.New()
	job := f.job()
	job.KnowledgeBaseID = &kbID

	require.NoError(t, f.p.Run(pipelinetest.Job(t, job, 1)))
	assert.Equal(t, []string{"Horario: 9 a 18", "Envios gratis", "USER: Hi"}, f.stub.LastParams.Context)
}

func TestKnowledgeFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.kb.err = errors.New("kb down")
	kbID := uuid.New()
	job := f.job()
	job.KnowledgeBaseID = &kbID

	require.NoError(t, f.p.Run(pipelinetest.Job(t, job, 1)))
	assert.Equal(t, 1, f.kb.calls)
	assert.Equal(t, []string{"USER: Hi"}, f.stub.LastParams.Context)
	assert.Len(t, f.jobs.Jobs(jobtypes.QueueOutgoing), 1)
}

func TestMissingConversationIsPermanent(t *testing.T) {
	f := newFixture(t)
	job := f.job()
	job.ConversationID = uuid.New()

	err := f.p.Run(pipelinetest.Job(t, job, 1))
	assert.True(t, jobrt.IsPermanent(err))
	assert.Equal(t, 0, f.stub.CallCount())
}

type hangingGenerator struct{}

func (hangingGenerator) GenerateResponse(ctx context.Context, _ string, _ engine.Params) (*engine.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHungProviderTimesOutAndRetries(t *testing.T) {
	f := newFixture(t)
	p := New(nil, f.convs, f.msgs, hangingGenerator{}, nil, f.jobs, nil, f.notified, nil,
		WithRequestTimeout(20*time.Millisecond))

	jc := pipelinetest.Job(t, f.job(), 1)
	done := make(chan error, 1)
	go func() { done <- p.Run(jc) }()

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AI stage still blocked on a vendor that never replies")
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, jobrt.IsPermanent(err))
	assert.True(t, router.IsRetryable(err))
	require.Len(t, f.msgs.ByRole(types.RoleAssistant), 1)
	assert.Empty(t, f.jobs.Jobs(jobtypes.QueueOutgoing))
}
