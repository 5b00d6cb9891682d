package capability

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ProbeBreaker wraps a liveness probe function in a gobreaker circuit
// breaker, so a string of failed probes against a wedged tmux session or AI
// process trips open and fails fast instead of hanging every caller behind
// a repeated timeout. One breaker is kept per key (coding vs review
// instance groups, or per capability kind). ProbeLiveness is a public engine
// method callable concurrently across distinct instances, so forKey's map
// access is mutex-guarded.
type ProbeBreaker struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	log      *logrus.Entry
}

// NewProbeBreaker builds a breaker set; log may be nil to discard state
// change notifications.
func NewProbeBreaker(log *logrus.Entry) *ProbeBreaker {
	return &ProbeBreaker{breakers: make(map[string]*gobreaker.CircuitBreaker), log: log}
}

func (p *ProbeBreaker) forKey(key string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cb, ok := p.breakers[key]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if p.log != nil {
				p.log.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).Warn("capability probe breaker state change")
			}
		},
	})
	p.breakers[key] = cb
	return cb
}

// Probe runs fn through the breaker keyed by key. If the breaker is open,
// ErrCapabilityUnavailable-equivalent behavior is surfaced by gobreaker's
// own ErrOpenState, which callers should treat as a capability error.
func (p *ProbeBreaker) Probe(ctx context.Context, key string, fn func(context.Context) error) error {
	_, err := p.forKey(key).Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}
