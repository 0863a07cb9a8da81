package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a circuit breaker
type Settings struct {
	// MaxProbes is the number of trial exchanges let through while half-open;
	// that many consecutive successes close the circuit again.
	MaxProbes uint32
	// Window is how often counts reset while closed.
	Window time.Duration
	// Cooldown is how long the circuit stays open.
	Cooldown time.Duration
	// ShouldTrip decides, after a failure, whether to open the circuit.
	ShouldTrip func(counts Counts) bool
	// OnStateChange is called with the host whose circuit changed.
	OnStateChange func(host string, from, to State)
}

func (s Settings) withDefaults() Settings {
	if s.MaxProbes == 0 {
		s.MaxProbes = 1
	}
	if s.Window == 0 {
		s.Window = 60 * time.Second
	}
	if s.Cooldown == 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.ShouldTrip == nil {
		s.ShouldTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	return s
}

// Counts holds the statistics for one circuit
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) record(success bool) {
	if success {
		c.TotalSuccesses++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		return
	}
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Circuit tracks the health of a single host.
type Circuit struct {
	host     string
	settings Settings
	now      func() time.Time

	mu         sync.Mutex
	state      State
	counts     Counts
	expiry     time.Time
	generation uint64
}

func newCircuit(host string, settings Settings, now func() time.Time) *Circuit {
	return &Circuit{
		host:     host,
		settings: settings,
		now:      now,
		expiry:   now().Add(settings.Window),
	}
}

func (c *Circuit) Host() string {
	return c.host
}

func (c *Circuit) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(c.now())
	return c.state
}

// Counts returns a copy of the current counts
func (c *Circuit) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// Allow admits one exchange. The returned func must be called exactly once
// with its outcome; outcomes reported after a state change are ignored.
func (c *Circuit) Allow() (func(success bool), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advance(c.now())
	switch {
	case c.state == StateOpen:
		return nil, ErrCircuitOpen
	case c.state == StateHalfOpen && c.counts.Requests >= c.settings.MaxProbes:
		return nil, ErrTooManyRequests
	}

	c.counts.Requests++
	gen := c.generation
	return func(success bool) { c.report(gen, success) }, nil
}

func (c *Circuit) report(gen uint64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.advance(now)
	if gen != c.generation {
		return
	}

	c.counts.record(success)
	switch c.state {
	case StateClosed:
		if !success && c.settings.ShouldTrip(c.counts) {
			c.transition(StateOpen, now)
		}
	case StateHalfOpen:
		if !success {
			c.transition(StateOpen, now)
		} else if c.counts.ConsecutiveSuccesses >= c.settings.MaxProbes {
			c.transition(StateClosed, now)
		}
	}
}

// advance applies time based transitions: window resets while closed and
// the move to half-open once the cooldown has passed.
func (c *Circuit) advance(now time.Time) {
	switch c.state {
	case StateClosed:
		if c.expiry.Before(now) {
			c.counts = Counts{}
			c.generation++
			c.expiry = now.Add(c.settings.Window)
		}
	case StateOpen:
		if c.expiry.Before(now) {
			c.transition(StateHalfOpen, now)
		}
	}
}

func (c *Circuit) transition(to State, now time.Time) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to
	c.counts = Counts{}
	c.generation++

	switch to {
	case StateClosed:
		c.expiry = now.Add(c.settings.Window)
	case StateOpen:
		c.expiry = now.Add(c.settings.Cooldown)
	case StateHalfOpen:
		c.expiry = time.Time{}
	}

	if c.settings.OnStateChange != nil {
		c.settings.OnStateChange(c.host, from, to)
	}
}

// Breakers hands out one circuit per host, created on first use.
type Breakers struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	circuits map[string]*Circuit
}

func NewBreakers(settings Settings) *Breakers {
	return &Breakers{
		settings: settings.withDefaults(),
		now:      time.Now,
		circuits: make(map[string]*Circuit),
	}
}

// For returns the circuit guarding host.
func (b *Breakers) For(host string) *Circuit {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[host]
	if !ok {
		c = newCircuit(host, b.settings, b.now)
		b.circuits[host] = c
	}
	return c
}
