package circuit

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/pkg/logger"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
)

type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// OnStateChange fires after every transition, outside the provider lock.
	OnStateChange func(provider string, from, to State)
}

// Status is a snapshot of one provider's circuit.
type Status struct {
	Provider        string     `json:"provider"`
	State           State      `json:"state"`
	FailureCount    int        `json:"failure_count"`
	SuccessCount    int        `json:"success_count"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
	NextAttemptTime *time.Time `json:"next_attempt_time,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

type circuit struct {
	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	nextAttempt time.Time
	lastError   string
}

type transition struct {
	from, to State
}

// Breaker tracks one independent circuit per provider name. Circuits are created
// on first reference and live as long as the Breaker.
type Breaker struct {
	cfg Config
	log *logger.Logger

	mu       sync.RWMutex
	circuits map[string]*circuit
}

func New(cfg Config, baseLog *logger.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Breaker{
		cfg:      cfg,
		log:      baseLog.With("component", "CircuitBreaker"),
		circuits: make(map[string]*circuit),
	}
}

func (b *Breaker) get(provider string) *circuit {
	b.mu.RLock()
	c, ok := b.circuits[provider]
	b.mu.RUnlock()
	if ok {
		return c
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok = b.circuits[provider]; ok {
		return c
	}
	c = &circuit{state: StateClosed}
	b.circuits[provider] = c
	return c
}

func (b *Breaker) lookup(provider string) (*circuit, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.circuits[provider]
	return c, ok
}

// evaluate applies the lazy OPEN -> HALF_OPEN move. Caller holds c.mu.
func (b *Breaker) evaluate(c *circuit) *transition {
	if c.state == StateOpen && !b.cfg.Now().Before(c.nextAttempt) {
		c.state = StateHalfOpen
		return &transition{from: StateOpen, to: StateHalfOpen}
	}
	return nil
}

func (b *Breaker) notify(provider string, t *transition) {
	if t == nil {
		return
	}
	b.log.Info("Circuit state changed", "provider", provider, "from", t.from, "to", t.to)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(provider, t.from, t.to)
	}
}

// State returns the current state of provider's circuit. It is not side-effect free:
// an OPEN circuit whose cool-down elapsed moves to HALF_OPEN here.
func (b *Breaker) State(provider string) State {
	c := b.get(provider)
	c.mu.Lock()
	t := b.evaluate(c)
	state := c.state
	c.mu.Unlock()
	b.notify(provider, t)
	return state
}

// CanExecute reports whether a call to provider may be attempted.
func (b *Breaker) CanExecute(provider string) bool {
	return b.State(provider) != StateOpen
}

func (b *Breaker) RecordSuccess(provider string) {
	c := b.get(provider)
	c.mu.Lock()
	t := b.evaluate(c)
	switch c.state {
	case StateHalfOpen:
		c.state = StateClosed
		c.failures = 0
		c.successes = 0
		c.lastFailure = time.Time{}
		c.nextAttempt = time.Time{}
		c.lastError = ""
		t = &transition{from: StateHalfOpen, to: StateClosed}
	case StateClosed:
		c.failures = 0
		c.successes++
	}
	c.mu.Unlock()
	b.notify(provider, t)
}

func (b *Breaker) RecordFailure(provider string, err error) {
	c := b.get(provider)
	now := b.cfg.Now()
	c.mu.Lock()
	t := b.evaluate(c)
	c.lastFailure = now
	if err != nil {
		c.lastError = err.Error()
	}
	switch c.state {
	case StateHalfOpen:
		c.state = StateOpen
		c.nextAttempt = now.Add(b.cfg.ResetTimeout)
		t = &transition{from: StateHalfOpen, to: StateOpen}
	case StateClosed:
		c.failures++
		if c.failures >= b.cfg.FailureThreshold {
			c.state = StateOpen
			c.nextAttempt = now.Add(b.cfg.ResetTimeout)
			t = &transition{from: StateClosed, to: StateOpen}
		}
	}
	failures := c.failures
	c.mu.Unlock()
	if err != nil {
		b.log.Warn("Provider call failed", "provider", provider, "failure_count", failures, "error", err)
	}
	b.notify(provider, t)
}

// FallbackResponse is the user-facing text shown while provider is unavailable.
func (b *Breaker) FallbackResponse(provider string) string {
	return fmt.Sprintf("El servicio de IA (%s) no está disponible temporalmente. Por favor, intenta de nuevo en unos minutos.", provider)
}

// Status returns a snapshot without creating the circuit or applying transitions.
func (b *Breaker) Status(provider string) (Status, bool) {
	c, ok := b.lookup(provider)
	if !ok {
		return Status{}, false
	}
	return snapshot(provider, c), true
}

func (b *Breaker) AllStatuses() map[string]Status {
	b.mu.RLock()
	names := make([]string, 0, len(b.circuits))
	for name := range b.circuits {
		names = append(names, name)
	}
	b.mu.RUnlock()
	sort.Strings(names)

	out := make(map[string]Status, len(names))
	for _, name := range names {
		if c, ok := b.lookup(name); ok {
			out[name] = snapshot(name, c)
		}
	}
	return out
}

// Reset forces provider's circuit CLOSED with cleared counters.
func (b *Breaker) Reset(provider string) {
	c := b.get(provider)
	c.mu.Lock()
	from := c.state
	c.state = StateClosed
	c.failures = 0
	c.successes = 0
	c.lastFailure = time.Time{}
	c.nextAttempt = time.Time{}
	c.lastError = ""
	c.mu.Unlock()
	b.log.Info("Circuit reset", "provider", provider, "previous_state", from)
	if from != StateClosed {
		b.notify(provider, &transition{from: from, to: StateClosed})
	}
}

func snapshot(provider string, c *circuit) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Provider:     provider,
		State:        c.state,
		FailureCount: c.failures,
		SuccessCount: c.successes,
		LastError:    c.lastError,
	}
	if !c.lastFailure.IsZero() {
		t := c.lastFailure
		st.LastFailureTime = &t
	}
	if !c.nextAttempt.IsZero() {
		t := c.nextAttempt
		st.NextAttemptTime = &t
	}
	return st
}
