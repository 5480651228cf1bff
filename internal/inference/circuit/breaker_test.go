package circuit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker() (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(Config{Now: clock.Now}, nil), clock
}

var errBoom = errors.New("boom")

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker()

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		b.RecordFailure("openai", errBoom)
	}
	assert.Equal(t, StateClosed, b.State("openai"))
	assert.True(t, b.CanExecute("openai"))

	b.RecordFailure("openai", errBoom)
	assert.Equal(t, StateOpen, b.State("openai"))
	assert.False(t, b.CanExecute("openai"))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker()

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		b.RecordFailure("groq", errBoom)
	}
	b.RecordSuccess("groq")
	b.RecordFailure("groq", errBoom)

	st, ok := b.Status("groq")
	require.True(t, ok)
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 1, st.FailureCount)
	assert.Equal(t, 1, st.SuccessCount)
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure("anthropic", errBoom)
	}

	st, _ := b.Status("anthropic")
	require.NotNil(t, st.NextAttemptTime)
	assert.Equal(t, clock.Now().Add(DefaultResetTimeout), *st.NextAttemptTime)

	clock.Advance(DefaultResetTimeout - time.Second)
	assert.False(t, b.CanExecute("anthropic"))

	clock.Advance(time.Second)
	assert.True(t, b.CanExecute("anthropic"))
	st, _ = b.Status("anthropic")
	assert.Equal(t, StateHalfOpen, st.State)
	assert.True(t, b.CanExecute("anthropic"))
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure("google", errBoom)
	}
	clock.Advance(DefaultResetTimeout)
	require.Equal(t, StateHalfOpen, b.State("google"))

	b.RecordSuccess("google")
	st, _ := b.Status("google")
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 0, st.FailureCount)
	assert.Nil(t, st.NextAttemptTime)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure("mistral", errBoom)
	}
	clock.Advance(DefaultResetTimeout + 5*time.Second)
	require.Equal(t, StateHalfOpen, b.State("mistral"))

	b.RecordFailure("mistral", errBoom)
	st, _ := b.Status("mistral")
	assert.Equal(t, StateOpen, st.State)
	require.NotNil(t, st.NextAttemptTime)
	assert.Equal(t, clock.Now().Add(DefaultResetTimeout), *st.NextAttemptTime)
}

func TestBreakerProvidersAreIsolated(t *testing.T) {
	b, _ := newTestBreaker()
	for i := 0; i < DefaultFailureThreshold; i++ {
		b.RecordFailure("openai", errBoom)
	}
	assert.Equal(t, StateOpen, b.State("openai"))
	assert.Equal(t, StateClosed, b.State("cohere"))
}

func TestBreakerStatusDoesNotCreateCircuits(t *testing.T) {
	b, _ := newTestBreaker()
	_, ok := b.Status("llama")
	assert.False(t, ok)
	assert.Empty(t, b.AllStatuses())

	b.RecordSuccess("llama")
	all := b.AllStatuses()
	assert.Len(t, all, 1)
	assert.Equal(t, StateClosed, all["llama"].State)
}

func TestBreakerReset(t *testing.T) {
	var changes []State
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := New(Config{
		FailureThreshold: 2,
		Now:              clock.Now,
		OnStateChange:    func(_ string, _, to State) { changes = append(changes, to) },
	}, nil)

	b.RecordFailure("openai", errBoom)
	b.RecordFailure("openai", errBoom)
	require.Equal(t, StateOpen, b.State("openai"))

	b.Reset("openai")
	st, _ := b.Status("openai")
	assert.Equal(t, StateClosed, st.State)
	assert.Zero(t, st.FailureCount)
	assert.Nil(t, st.LastFailureTime)
	assert.Equal(t, []State{StateOpen, StateClosed}, changes)
}

func TestBreakerConcurrentFailures(t *testing.T) {
	b, _ := newTestBreaker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure("openai", errBoom)
			_ = b.CanExecute("openai")
		}()
	}
	wg.Wait()
	assert.Equal(t, StateOpen, b.State("openai"))
}

func TestFallbackResponseNamesProvider(t *testing.T) {
	b, _ := newTestBreaker()
	assert.Contains(t, b.FallbackResponse("openai"), "openai")
}
