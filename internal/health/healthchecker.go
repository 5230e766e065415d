// Package health tracks the liveness of the server's dependencies (vector
// store, history database, embedding provider) and folds them into a single
// service flag.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultProbeTimeout = 2 * time.Second

// HealthChecker is implemented by dependency checkers.
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// HealthPinger is implemented by components that can verify their own
// connectivity. HealthPing returns nil when the component is usable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// PingChecker probes a HealthPinger on a fixed interval and caches the result.
// It starts unhealthy until the first successful probe.
type PingChecker struct {
	name         string
	target       HealthPinger
	healthy      atomic.Int32
	lastErr      atomic.Value // string
	log          zerolog.Logger
	probeTimeout time.Duration
}

// NewPingChecker returns a checker named name for target. A non-positive
// probeTimeout means two seconds.
func NewPingChecker(name string, target HealthPinger, log zerolog.Logger, probeTimeout time.Duration) *PingChecker {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &PingChecker{name: name, target: target, log: log, probeTimeout: probeTimeout}
}

func (c *PingChecker) Name() string    { return c.name }
func (c *PingChecker) IsHealthy() bool { return c.healthy.Load() == 1 }

// LastError returns the message of the most recent failed probe, or "".
func (c *PingChecker) LastError() string {
	s, _ := c.lastErr.Load().(string)
	return s
}

// Check runs one probe and updates the cached state.
func (c *PingChecker) Check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if err := c.target.HealthPing(checkCtx); err != nil {
		if c.healthy.Swap(0) == 1 || c.LastError() == "" {
			c.log.Error().Stack().Str("checker", c.name).Err(err).Msg("health check failed")
		}
		c.lastErr.Store(err.Error())
		return false
	}
	c.healthy.Store(1)
	c.lastErr.Store("")
	return true
}

// Start probes immediately and then every interval until ctx ends.
func (c *PingChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// ServiceHealthChecker aggregates dependency checkers into one flag.
type ServiceHealthChecker struct {
	healthy atomic.Int32
	deps    []HealthChecker
	log     zerolog.Logger

	mu   sync.Mutex
	prev int32 // last logged state, -1 before the first evaluation
}

// settleTick is how often the aggregator re-evaluates until the service is
// first UP, so that startup does not wait a full interval.
const settleTick = 50 * time.Millisecond

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log, prev: -1}
}

// IsHealthy returns the cached service health.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.healthy.Load() == 1 }

// Components reports the cached state of each dependency by name.
func (h *ServiceHealthChecker) Components() map[string]bool {
	out := make(map[string]bool, len(h.deps))
	for _, d := range h.deps {
		out[d.Name()] = d.IsHealthy()
	}
	return out
}

// StartAll launches every dependency checker and then the aggregator itself;
// all of them stop when ctx ends.
func (h *ServiceHealthChecker) StartAll(ctx context.Context, interval time.Duration) {
	for _, d := range h.deps {
		go d.Start(ctx, interval)
	}
	go h.Start(ctx, interval)
}

// Start re-evaluates dependency health every interval and logs transitions.
// Until the service is UP for the first time it re-evaluates every
// settleTick instead.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	tick := interval
	if tick > settleTick {
		tick = settleTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	settled := h.evaluate()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.evaluate() && !settled {
				settled = true
				ticker.Reset(interval)
			}
		}
	}
}

// evaluate folds the cached dependency states into the service flag and
// returns it.
func (h *ServiceHealthChecker) evaluate() bool {
	cur := int32(1)
	for _, c := range h.deps {
		if !c.IsHealthy() {
			cur = 0
			break
		}
	}
	h.healthy.Store(cur)

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur != h.prev {
		if cur == 1 {
			h.log.Info().Msg("service health: UP")
		} else {
			h.log.Warn().Interface("components", h.Components()).Msg("service health: DOWN")
		}
		h.prev = cur
	}
	return cur == 1
}

// WaitUntilHealthy blocks until every dependency reports healthy, ctx ends,
// or timeout passes. It returns true when healthy.
func (h *ServiceHealthChecker) WaitUntilHealthy(ctx context.Context, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(settleTick)
	defer tick.Stop()

	for !h.evaluate() {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
	return true
}
