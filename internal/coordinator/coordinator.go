package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/pkg/models"
)

// ErrUpdateFailed classifies errors the first refresh retries on
var ErrUpdateFailed = models.ErrUpdateFailed

// Provider runs one full scrape of the device
type Provider interface {
	Fetch(ctx context.Context) (*models.Poll, error)
}

// Listener is called after every successful refresh
type Listener func(ctx context.Context, poll *models.Poll)

// Coordinator owns the latest successful Poll
type Coordinator struct {
	provider      Provider
	retryInterval time.Duration
	logger        *zap.Logger

	current atomic.Pointer[models.Poll]

	mu        sync.Mutex
	lastErr   error
	listeners []Listener

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a coordinator that retries the first refresh every retryInterval
func New(provider Provider, retryInterval time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		provider:      provider,
		retryInterval: retryInterval,
		logger:        logger,
		sleep:         sleepContext,
	}
}

// OnUpdate registers fn to run after each successful refresh
func (c *Coordinator) OnUpdate(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Refresh runs one polling cycle. On failure the previous Poll is kept and
// the error is returned; there is no retry.
func (c *Coordinator) Refresh(ctx context.Context) error {
	poll, err := c.provider.Fetch(ctx)
	if err != nil {
		c.setLastError(err)
		c.logger.Warn("Refresh failed", zap.Error(err))
		return err
	}

	c.current.Store(poll)
	c.setLastError(nil)
	c.logger.Info("Refresh complete",
		zap.String("poll", poll.ID),
		zap.Int("keys", len(poll.Snapshot)),
		zap.Int("circuits", poll.CircuitCount),
		zap.Duration("took", poll.FinishedAt.Sub(poll.StartedAt)))

	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, poll)
	}
	return nil
}

// FirstRefresh blocks until one refresh succeeds. Update failures are
// retried every retry interval with no attempt limit; any other error is
// returned immediately.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.Refresh(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, ErrUpdateFailed) {
			return fmt.Errorf("first refresh: %w", err)
		}

		c.logger.Warn("First refresh failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", c.retryInterval))

		if err := c.sleep(ctx, c.retryInterval); err != nil {
			return err
		}
	}
}

// Ready reports whether at least one refresh has succeeded
func (c *Coordinator) Ready() bool {
	return c.current.Load() != nil
}

// Last returns the latest successful Poll, or nil
func (c *Coordinator) Last() *models.Poll {
	return c.current.Load()
}

// Snapshot returns a copy of the latest Snapshot
func (c *Coordinator) Snapshot() models.Snapshot {
	poll := c.current.Load()
	if poll == nil {
		return models.Snapshot{}
	}
	return poll.Snapshot.Clone()
}

// CircuitCount is the number of circuits found by the latest refresh
func (c *Coordinator) CircuitCount() int {
	poll := c.current.Load()
	if poll == nil {
		return 0
	}
	return poll.CircuitCount
}

// UsageMetrics returns the static usage metric descriptors
func (c *Coordinator) UsageMetrics() []models.UsageMetric {
	return models.UsageMetrics()
}

// Circuits returns the circuits of the latest refresh
func (c *Coordinator) Circuits() []models.Circuit {
	poll := c.current.Load()
	if poll == nil {
		return nil
	}
	return poll.Circuits()
}

// LastError is the error of the most recent refresh, nil if it succeeded
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Coordinator) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
