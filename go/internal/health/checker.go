package health

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Pinger reports whether the fixture store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FetchTracker exposes the engine's liveness signal.
type FetchTracker interface {
	LastSuccessfulFetch() time.Time
}

// ConnChecker reports whether the external messaging connection is up.
type ConnChecker interface {
	Connected() bool
}

type Status struct {
	Healthy        bool      `json:"healthy"`
	LastFetchCycle time.Time `json:"last_fetch_cycle"`
	StoreConnected bool      `json:"store_connected"`
	NATSConnected  bool      `json:"nats_connected"`
	Errors         []string  `json:"errors,omitempty"`
}

// Checker aggregates the service's health surface: readiness is store
// reachability, liveness is a recent successful fetch cycle.
type Checker struct {
	store     Pinger
	engine    FetchTracker
	messaging ConnChecker
	clock     clockwork.Clock
	// threshold is how long without a successful fetch cycle before the
	// service reports unhealthy.
	threshold time.Duration
}

func NewChecker(store Pinger, engine FetchTracker, messaging ConnChecker, clock clockwork.Clock, threshold time.Duration) *Checker {
	return &Checker{
		store:     store,
		engine:    engine,
		messaging: messaging,
		clock:     clock,
		threshold: threshold,
	}
}

func (c *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy: true,
		Errors:  []string{},
	}

	if err := c.store.Ping(ctx); err != nil {
		status.StoreConnected = false
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("store ping failed: %v", err))
	} else {
		status.StoreConnected = true
	}

	if c.messaging != nil {
		status.NATSConnected = c.messaging.Connected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.LastFetchCycle = c.engine.LastSuccessfulFetch()
	if status.LastFetchCycle.IsZero() {
		status.Healthy = false
		status.Errors = append(status.Errors, "no successful fetch cycle yet")
	} else if age := c.clock.Since(status.LastFetchCycle); age > c.threshold {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("last fetch cycle %s ago", age.Round(time.Second)))
	}

	return status
}

// Ready reports readiness only: the fixture store must be reachable.
func (c *Checker) Ready(ctx context.Context) error {
	return c.store.Ping(ctx)
}
