// Package replication keeps a read-only pagelog.Log caught up with the medium
// a writer in another process appends to.
package replication

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rzbill/pagelog/internal/pagelog"
	logpkg "github.com/rzbill/pagelog/pkg/log"
)

// DefaultInterval is how often a Follower polls when none is configured.
const DefaultInterval = 200 * time.Millisecond

// Follower polls Log.TryUpdate on an interval.
type Follower struct {
	// Log must be read-only.
	Log *pagelog.Log
	// Interval between polls (default DefaultInterval).
	Interval time.Duration
	// Logger is optional.
	Logger logpkg.Logger
	// OnUpdate, if set, receives the new tip after every successful update.
	OnUpdate func(*pagelog.Tip)

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errMu  sync.Mutex
	err    error
}

// Poll runs a single catch-up step and reports whether the tip moved.
func (f *Follower) Poll() (bool, error) {
	changed, err := f.Log.TryUpdate()
	if err != nil || !changed {
		return changed, err
	}
	if f.OnUpdate != nil {
		f.OnUpdate(f.Log.Tip())
	}
	return true, nil
}

// Run polls until ctx is done. A replication regression is fatal and
// returned at once; other errors are logged and retried on the next tick.
// Run returns nil when ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := logpkg.OrNop(f.Logger).WithComponent("follower")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("follower started",
		logpkg.Str(logpkg.LogIDKey, f.Log.ID().String()),
		logpkg.Duration("interval", interval))

	for {
		if _, err := f.Poll(); err != nil {
			switch {
			case errors.Is(err, pagelog.ErrReplicationRegression):
				logger.Error("follower stopped", logpkg.Err(err))
				return err
			case errors.Is(err, pagelog.ErrClosed):
				return err
			default:
				logger.Warn("catch-up failed", logpkg.Err(err))
			}
		}
		select {
		case <-ctx.Done():
			logger.Info("follower stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Start runs the follower in the background until Stop.
func (f *Follower) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		err := f.Run(ctx)
		f.errMu.Lock()
		f.err = err
		f.errMu.Unlock()
	}()
}

// Stop halts a follower started with Start and returns the error that ended
// it, if any.
func (f *Follower) Stop() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}
