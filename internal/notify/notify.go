// Package notify announces recorded results to interested listeners.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

type Publisher interface {
	PublishResult(ctx context.Context, r quiz.Result) error
	Close() error
}

type nop struct{}

// Nop discards every notification.
func Nop() Publisher { return nop{} }

func (nop) PublishResult(context.Context, quiz.Result) error { return nil }
func (nop) Close() error                                     { return nil }

// Sink saves through the wrapped ResultSink and then publishes. A publish
// failure is logged and never fails the save.
type Sink struct {
	next    quiz.ResultSink
	pub     Publisher
	logger  *zap.Logger
	timeout time.Duration
}

func NewSink(next quiz.ResultSink, pub Publisher, logger *zap.Logger) *Sink {
	if pub == nil {
		pub = Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{next: next, pub: pub, logger: logger, timeout: 5 * time.Second}
}

func (s *Sink) SaveResult(ctx context.Context, r quiz.Result) (int64, error) {
	id, err := s.next.SaveResult(ctx, r)
	if err != nil {
		return 0, err
	}
	r.ID = id
	// detached so a cancelled request does not drop the announcement
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if perr := s.pub.PublishResult(pctx, r); perr != nil {
		s.logger.Warn("publish result failed",
			zap.Int64("result_id", id),
			zap.Int64("quiz_id", r.QuizID),
			zap.Error(perr),
		)
	}
	return id, nil
}
