package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

type recordingPublisher struct {
	got []quiz.Result
	err error
}

func (p *recordingPublisher) PublishResult(_ context.Context, r quiz.Result) error {
	p.got = append(p.got, r)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type sinkFunc func(context.Context, quiz.Result) (int64, error)

func (f sinkFunc) SaveResult(ctx context.Context, r quiz.Result) (int64, error) { return f(ctx, r) }

func TestSinkPublishesAfterSave(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewSink(sinkFunc(func(context.Context, quiz.Result) (int64, error) { return 17, nil }), pub, nil)

	id, err := s.SaveResult(context.Background(), quiz.Result{QuizID: 3, Score: 50})
	if err != nil || id != 17 {
		t.Fatalf("save = %d, %v", id, err)
	}
	if len(pub.got) != 1 || pub.got[0].ID != 17 || pub.got[0].QuizID != 3 {
		t.Fatalf("published = %+v", pub.got)
	}
}

func TestSinkIgnoresPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	s := NewSink(sinkFunc(func(context.Context, quiz.Result) (int64, error) { return 1, nil }), pub, nil)
	if _, err := s.SaveResult(context.Background(), quiz.Result{}); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestSinkDoesNotPublishFailedSave(t *testing.T) {
	pub := &recordingPublisher{}
	boom := errors.New("disk full")
	s := NewSink(sinkFunc(func(context.Context, quiz.Result) (int64, error) { return 0, boom }), pub, nil)
	if _, err := s.SaveResult(context.Background(), quiz.Result{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(pub.got) != 0 {
		t.Fatal("failed save was published")
	}
}

func TestChannelAndMessage(t *testing.T) {
	if got := Channel(42); got != "quiz:42:results" {
		t.Fatalf("channel = %q", got)
	}
	at := time.Unix(1700000000, 0)
	b, err := json.Marshal(messageFor(quiz.Result{ID: 9, QuizID: 42, StudentID: 5, Score: 75, TotalQuestions: 4, TakenAt: at}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"event":"result_recorded","result_id":9,"quiz_id":42,"student_id":5,"score":75,"total_questions":4,"taken_at":1700000000}`
	if string(b) != want {
		t.Fatalf("message = %s", b)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedis(ctx, "127.0.0.1:1", "", 0, nil); err == nil {
		t.Fatal("expected ping failure")
	}
}
