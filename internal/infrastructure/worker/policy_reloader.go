package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Syncer reloads configuration from its source
type Syncer interface {
	Sync() error
}

// PolicyReloader re-reads the capability policy on a fixed interval so role
// changes apply without a restart
type PolicyReloader struct {
	policy   Syncer
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger

	mu   sync.Mutex
	done chan struct{}
}

// NewPolicyReloader creates a reloader ticking every interval
func NewPolicyReloader(policy Syncer, interval time.Duration, clk clock.Clock, logger *zap.Logger) *PolicyReloader {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &PolicyReloader{
		policy:   policy,
		interval: interval,
		clock:    clk,
		logger:   logger,
	}
}

func (r *PolicyReloader) Name() string {
	return "policy-reloader"
}

func (r *PolicyReloader) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("policy reload interval must be positive, got %s", r.interval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return fmt.Errorf("%s already started", r.Name())
	}
	r.done = make(chan struct{})

	go r.run(ctx, r.done)
	return nil
}

func (r *PolicyReloader) Stop() error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}

func (r *PolicyReloader) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := r.policy.Sync(); err != nil {
				// The previous policy stays in force
				r.logger.Error("Failed to reload capability policy", zap.Error(err))
				continue
			}
			r.logger.Debug("Capability policy reloaded")
		}
	}
}
