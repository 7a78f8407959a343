package quiz

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("not the owner")
)

type ListOpts struct {
	Q         string // case-insensitive title/description filter
	TeacherID int64  // 0 = any teacher
	Limit     int
	Offset    int
}

// QuestionSource is what an attempt reads questions from.
type QuestionSource interface {
	ListQuestions(ctx context.Context, quizID int64) ([]Question, error)
}

// ResultSink records a completed attempt and returns its generated id.
type ResultSink interface {
	SaveResult(ctx context.Context, r Result) (int64, error)
}

type Store interface {
	QuestionSource
	ResultSink

	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	DeleteQuiz(ctx context.Context, id int64) error
	GetQuiz(ctx context.Context, id int64) (Quiz, error)
	ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, error)

	AddQuestion(ctx context.Context, q Question) (Question, error)
	DeleteQuestion(ctx context.Context, quizID, questionID int64) error

	ListResultsByStudent(ctx context.Context, studentID int64) ([]Result, error)
	ListResultsByQuiz(ctx context.Context, quizID int64) ([]Result, error)
}

// StripAnswers returns a copy of qs without correct letters, for students.
func StripAnswers(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	for i := range out {
		out[i].Correct = 0
	}
	return out
}
