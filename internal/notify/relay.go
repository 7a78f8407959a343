package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/eventlog"
	"github.com/mind-engage/quizdesk/internal/quiz"
)

type EventSource interface {
	List(ctx context.Context, after int64, limit int) ([]eventlog.Event, error)
	LastOffset(ctx context.Context) (int64, error)
}

// Relay tails the event log and publishes every recorded result. Delivery
// is at least once: a failed publish is retried on the next poll.
type Relay struct {
	src      EventSource
	pub      Publisher
	interval time.Duration
	batch    int
	logger   *zap.Logger
	cursor   int64
}

func NewRelay(src EventSource, pub Publisher, interval time.Duration, logger *zap.Logger) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{src: src, pub: pub, interval: interval, batch: 100, logger: logger}
}

// Run starts after the newest existing event and polls until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	last, err := r.src.LastOffset(ctx)
	if err != nil {
		return err
	}
	r.cursor = last
	r.logger.Info("result relay started", zap.Int64("offset", last))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("result relay", zap.Int64("offset", r.cursor), zap.Error(err))
			}
		}
	}
}

// Drain publishes everything after the cursor and reports how many results
// went out. The cursor stops at the first failed publish.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	sent := 0
	for {
		events, err := r.src.List(ctx, r.cursor, r.batch)
		if err != nil {
			return sent, err
		}
		for _, e := range events {
			if e.Type == eventlog.TypeResultRecorded {
				var res quiz.Result
				if err := json.Unmarshal([]byte(e.DataJSON), &res); err != nil {
					r.logger.Warn("skip malformed event", zap.Int64("offset", e.Offset), zap.Error(err))
				} else if err := r.pub.PublishResult(ctx, res); err != nil {
					return sent, err
				} else {
					sent++
				}
			}
			r.cursor = e.Offset
		}
		if len(events) < r.batch {
			return sent, nil
		}
	}
}
