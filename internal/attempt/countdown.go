package attempt

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Countdown drives Session.Tick on a fixed interval until the session ends,
// the time runs out, or Stop is called.
type Countdown struct {
	session       *Session
	interval      time.Duration
	submitTimeout time.Duration
	onTick        func(TickResult)
	logger        *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewCountdown creates a countdown for s. onTick may be nil.
func NewCountdown(s *Session, interval time.Duration, onTick func(TickResult), logger *zap.Logger) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Countdown{
		session:       s,
		interval:      interval,
		submitTimeout: 15 * time.Second,
		onTick:        onTick,
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// Start begins ticking. It does nothing for quizzes without a time limit,
// and only the first call has an effect.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil || c.stopped || !c.session.quiz.HasTimeLimit() {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)
	c.logger.Debug("countdown started", zap.String("attempt_id", c.session.ID()), zap.Duration("interval", c.interval))
}

// Stop cancels the countdown and waits for the loop to exit.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopped = true
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-c.done
}

// Done is closed when the loop exits. It never closes if Start had no effect.
func (c *Countdown) Done() <-chan struct{} { return c.done }

func (c *Countdown) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	if c.step() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.session.Done():
			return
		case <-ticker.C:
			if c.step() {
				return
			}
		}
	}
}

// step runs one tick and reports whether the loop should exit.
func (c *Countdown) step() bool {
	// the submission gets its own deadline so Stop cannot abort a save midway
	ctx, cancel := context.WithTimeout(context.Background(), c.submitTimeout)
	defer cancel()
	res := c.session.Tick(ctx)
	if c.onTick != nil {
		c.onTick(res)
	}
	if res.Fired && res.Err != nil {
		c.logger.Warn("auto-submit failed", zap.String("attempt_id", c.session.ID()), zap.Error(res.Err))
	}
	return res.Fired || res.Expired
}
