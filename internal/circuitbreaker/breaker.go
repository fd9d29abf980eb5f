package circuitbreaker

import (
	"errors"
	"log"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned when circuit is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Guards calls to one upstream. Consecutive failures open the circuit; after
// the cool-down a single probe decides whether it closes again.
type CircuitBreaker struct {
	mu              sync.Mutex
	name            string
	state           State
	failureCount    int
	successCount    int
	probeInFlight   bool
	lastFailureTime time.Time
	lastStateChange time.Time
	onStateChange   func(name string, from, to State)
	now             func() time.Time

	// Configuration
	maxFailures     int           // Consecutive failures before opening
	coolDown        time.Duration // How long to stay open
	halfOpenSuccess int           // Successes needed in half-open to close
}

type Config struct {
	Name            string
	MaxFailures     int           // Default: 5
	CoolDown        time.Duration // Default: 30 seconds
	HalfOpenSuccess int           // Default: 1
	OnStateChange   func(name string, from, to State)
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.HalfOpenSuccess <= 0 {
		cfg.HalfOpenSuccess = 1
	}

	return &CircuitBreaker{
		name:            cfg.Name,
		state:           StateClosed,
		maxFailures:     cfg.MaxFailures,
		coolDown:        cfg.CoolDown,
		halfOpenSuccess: cfg.HalfOpenSuccess,
		onStateChange:   cfg.OnStateChange,
		now:             time.Now,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn unless the circuit is open. A non-nil error from fn counts
// as an upstream failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probeInFlight = false
	if err != nil {
		cb.onFailure()
		return err
	}

	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.coolDown {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.successCount = 0
		cb.probeInFlight = true
	case StateHalfOpen:
		// one probe at a time
		if cb.probeInFlight {
			return ErrCircuitOpen
		}
		cb.probeInFlight = true
	}

	return nil
}

// Handles a failed request
func (cb *CircuitBreaker) onFailure() {
	cb.failureCount++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen {
		cb.setState(StateOpen)
		cb.successCount = 0
	} else if cb.failureCount >= cb.maxFailures {
		cb.setState(StateOpen)
	}
}

// Handles a successful request
func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenSuccess {
			cb.setState(StateClosed)
			cb.failureCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}

	old := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()

	log.Printf("Circuit breaker %s: %s -> %s", cb.name, old, newState)
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, old, newState)
	}
}

// Returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.probeInFlight = false
}

// Returns current circuit breaker metrics
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Metrics{
		Name:            cb.name,
		State:           cb.state,
		FailureCount:    cb.failureCount,
		LastFailureTime: cb.lastFailureTime,
		LastStateChange: cb.lastStateChange,
	}
}

// Holds circuit breaker metrics
type Metrics struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastStateChange time.Time `json:"last_state_change"`
}
