package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

const channelPrefix = "quiz:"

// Channel is the pub/sub channel carrying results for one quiz.
func Channel(quizID int64) string {
	return channelPrefix + strconv.FormatInt(quizID, 10) + ":results"
}

// ResultMessage is the JSON body published for each recorded result.
type ResultMessage struct {
	Event          string  `json:"event"`
	ResultID       int64   `json:"result_id"`
	QuizID         int64   `json:"quiz_id"`
	StudentID      int64   `json:"student_id"`
	Score          float64 `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	TakenAt        int64   `json:"taken_at"`
}

func messageFor(r quiz.Result) ResultMessage {
	return ResultMessage{
		Event:          "result_recorded",
		ResultID:       r.ID,
		QuizID:         r.QuizID,
		StudentID:      r.StudentID,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		TakenAt:        r.TakenAt.Unix(),
	}
}

type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis connects and verifies the server with a ping.
func NewRedis(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("redis connected", zap.String("addr", addr))
	return &Redis{client: rdb, logger: logger}, nil
}

func (p *Redis) PublishResult(ctx context.Context, r quiz.Result) error {
	body, err := json.Marshal(messageFor(r))
	if err != nil {
		return err
	}
	n, err := p.client.Publish(ctx, Channel(r.QuizID), body).Result()
	if err != nil {
		return err
	}
	p.logger.Debug("result published", zap.Int64("result_id", r.ID), zap.Int64("receivers", n))
	return nil
}

// Subscribe delivers results for quizID until ctx is done.
func (p *Redis) Subscribe(ctx context.Context, quizID int64, handle func(ResultMessage)) error {
	sub := p.client.Subscribe(ctx, Channel(quizID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m ResultMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				p.logger.Debug("skip malformed result message", zap.Error(err))
				continue
			}
			handle(m)
		}
	}
}

func (p *Redis) Close() error { return p.client.Close() }
