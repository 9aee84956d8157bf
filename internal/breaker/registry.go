package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio_tracker/pkg/metrics"
)

// State of a provider circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config controls the failure/availability state machine shared by all
// circuits in a registry.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens a circuit.
	FailureThreshold int
	// ResetWindow is how long an open circuit rejects everything before the
	// next availability check moves it to half-open.
	ResetWindow time.Duration
	// ProbeRatio lets one in every ProbeRatio checks through while half-open.
	ProbeRatio int
}

// DefaultConfig returns the thresholds used when the config omits them.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetWindow:      60 * time.Second,
		ProbeRatio:       4,
	}
}

// circuit holds the per-provider state. All fields are guarded by mu.
type circuit struct {
	mu sync.Mutex

	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
	lastSuccessAt       time.Time
	probeCounter        int
}

// Registry keeps one circuit per provider id for the process lifetime.
// It is advisory: callers must consult CanRequest before attempting a
// provider call and report the result afterwards. Circuits are independent;
// no call on one provider ever serializes behind another's lock.
type Registry struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	circuits map[string]*circuit

	// now is swappable for tests.
	now func() time.Time
}

// NewRegistry creates a breaker registry. Zero or negative config fields
// fall back to defaults.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = def.ResetWindow
	}
	if cfg.ProbeRatio <= 0 {
		cfg.ProbeRatio = def.ProbeRatio
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger.Named("CircuitBreaker"),
		circuits: make(map[string]*circuit),
		now:      time.Now,
	}
}

func (r *Registry) get(providerID string) *circuit {
	r.mu.RLock()
	c, ok := r.circuits[providerID]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.circuits[providerID]; ok {
		return c
	}
	c = &circuit{state: StateClosed}
	r.circuits[providerID] = c
	return c
}

// CanRequest reports whether a call to the provider is currently permitted.
// An open circuit past its reset window transitions to half-open here, on
// check, rather than via a timer.
func (r *Registry) CanRequest(providerID string) bool {
	c := r.get(providerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return true
	case StateOpen:
		if r.now().Sub(c.lastFailureAt) > r.cfg.ResetWindow {
			r.transition(providerID, c, StateHalfOpen)
			c.probeCounter = 0
			return r.allowProbe(c)
		}
		return false
	case StateHalfOpen:
		return r.allowProbe(c)
	}
	return true
}

// allowProbe lets every ProbeRatio-th check through as a trial call.
// Caller holds c.mu.
func (r *Registry) allowProbe(c *circuit) bool {
	allowed := c.probeCounter%r.cfg.ProbeRatio == 0
	c.probeCounter++
	return allowed
}

// ReportSuccess records a successful provider call. While closed, a success
// decrements the failure streak instead of resetting it, so an isolated
// failure does not permanently count against a mostly-healthy provider. A
// successful half-open trial closes the circuit.
func (r *Registry) ReportSuccess(providerID string) {
	c := r.get(providerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastSuccessAt = r.now()
	switch c.state {
	case StateClosed:
		if c.consecutiveFailures > 0 {
			c.consecutiveFailures--
		}
	case StateHalfOpen:
		c.consecutiveFailures = 0
		r.transition(providerID, c, StateClosed)
	}
}

// ReportFailure records a failed provider call. Enough consecutive failures
// open the circuit; a failed half-open trial re-opens it.
func (r *Registry) ReportFailure(providerID string) {
	c := r.get(providerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	c.lastFailureAt = r.now()
	if c.state != StateOpen && c.consecutiveFailures >= r.cfg.FailureThreshold {
		r.transition(providerID, c, StateOpen)
	}
}

// StateOf returns the current state of a provider's circuit.
func (r *Registry) StateOf(providerID string) State {
	c := r.get(providerID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transition updates the circuit state. Caller holds c.mu.
func (r *Registry) transition(providerID string, c *circuit, to State) {
	from := c.state
	c.state = to
	metrics.SetBreakerState(providerID, int(to))
	r.logger.Info("circuit state changed",
		zap.String("provider", providerID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("consecutiveFailures", c.consecutiveFailures))
}
