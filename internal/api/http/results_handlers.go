package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	auth "github.com/mind-engage/quizdesk/internal/auth/middleware"
	"github.com/mind-engage/quizdesk/internal/grading"
	"github.com/mind-engage/quizdesk/internal/notify"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/users"
)

type answerDetail struct {
	QuestionID int64       `json:"question_id"`
	Question   string      `json:"question,omitempty"`
	Answer     quiz.Letter `json:"answer"`
	AnswerText string      `json:"answer_text,omitempty"`
	Correct    quiz.Letter `json:"correct,omitempty"`
}

type resultView struct {
	ID             int64          `json:"id"`
	QuizID         int64          `json:"quiz_id"`
	QuizTitle      string         `json:"quiz_title,omitempty"`
	StudentID      int64          `json:"student_id"`
	Student        string         `json:"student,omitempty"`
	Score          float64        `json:"score"`
	TotalQuestions int            `json:"total_questions"`
	TakenAt        time.Time      `json:"taken_at"`
	Details        []answerDetail `json:"details"`
}

// details expands a stored answer record. withKey adds the correct letters.
func details(record string, byID map[int64]quiz.Question, withKey bool) []answerDetail {
	entries, err := grading.DecodeRecord(record)
	if err != nil {
		return []answerDetail{}
	}
	out := make([]answerDetail, 0, len(entries))
	for _, e := range entries {
		d := answerDetail{QuestionID: e.QuestionID, Answer: e.Answer}
		if q, ok := byID[e.QuestionID]; ok {
			d.Question = q.Text
			d.AnswerText = q.Option(e.Answer)
			if withKey {
				d.Correct = q.Correct
			}
		}
		out = append(out, d)
	}
	return out
}

func questionIndex(ctx context.Context, store quiz.Store, quizID int64) (map[int64]quiz.Question, error) {
	qs, err := store.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	m := make(map[int64]quiz.Question, len(qs))
	for _, q := range qs {
		m[q.ID] = q
	}
	return m, nil
}

// GET /results/mine
func ListMyResultsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rs, err := store.ListResultsByStudent(ctx, auth.SubjectID(ctx))
		if err != nil {
			fail(w, err)
			return
		}
		type quizInfo struct {
			title string
			qs    map[int64]quiz.Question
		}
		cache := map[int64]quizInfo{}
		out := make([]resultView, 0, len(rs))
		for _, res := range rs {
			info, ok := cache[res.QuizID]
			if !ok {
				// the quiz may have been deleted since; keep the bare record
				if q, err := store.GetQuiz(ctx, res.QuizID); err == nil {
					info.title = q.Title
					if info.qs, err = questionIndex(ctx, store, q.ID); err != nil {
						fail(w, err)
						return
					}
				} else if !errors.Is(err, quiz.ErrNotFound) {
					fail(w, err)
					return
				}
				cache[res.QuizID] = info
			}
			out = append(out, resultView{
				ID:             res.ID,
				QuizID:         res.QuizID,
				QuizTitle:      info.title,
				StudentID:      res.StudentID,
				Score:          res.Score,
				TotalQuestions: res.TotalQuestions,
				TakenAt:        res.TakenAt,
				Details:        details(res.Answers, info.qs, false),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /quizzes/{quizID}/results
func ListQuizResultsHandler(store quiz.Store, people users.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		quizID, err := pathID(r, "quizID")
		if err != nil {
			fail(w, err)
			return
		}
		q, err := ownedQuiz(ctx, store, quizID)
		if err != nil {
			fail(w, err)
			return
		}
		rs, err := store.ListResultsByQuiz(ctx, quizID)
		if err != nil {
			fail(w, err)
			return
		}
		qs, err := questionIndex(ctx, store, quizID)
		if err != nil {
			fail(w, err)
			return
		}
		labels := map[int64]string{}
		out := make([]resultView, 0, len(rs))
		for _, res := range rs {
			label, ok := labels[res.StudentID]
			if !ok {
				u, err := people.Get(ctx, res.StudentID)
				switch {
				case err == nil:
					label = u.Label()
				case errors.Is(err, users.ErrNotFound):
					label = fmt.Sprintf("student #%d", res.StudentID)
				default:
					fail(w, err)
					return
				}
				labels[res.StudentID] = label
			}
			out = append(out, resultView{
				ID:             res.ID,
				QuizID:         res.QuizID,
				QuizTitle:      q.Title,
				StudentID:      res.StudentID,
				Student:        label,
				Score:          res.Score,
				TotalQuestions: res.TotalQuestions,
				TakenAt:        res.TakenAt,
				Details:        details(res.Answers, qs, true),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ResultFeed streams results as they are recorded.
type ResultFeed interface {
	Subscribe(ctx context.Context, quizID int64, handle func(notify.ResultMessage)) error
}

// GET /quizzes/{quizID}/results/stream
// Server-sent events, one "result" event per recorded result.
func StreamQuizResultsHandler(store quiz.Store, feed ResultFeed, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if feed == nil {
			writeError(w, http.StatusNotImplemented, "result notifications are not configured")
			return
		}
		quizID, err := pathID(r, "quizID")
		if err != nil {
			fail(w, err)
			return
		}
		if _, err := ownedQuiz(r.Context(), store, quizID); err != nil {
			fail(w, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		err = feed.Subscribe(r.Context(), quizID, func(m notify.ResultMessage) {
			b, err := json.Marshal(m)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: result\ndata: %s\n\n", b)
			flusher.Flush()
		})
		if err != nil {
			logger.Warn("result stream ended", zap.Int64("quiz_id", quizID), zap.Error(err))
		}
	}
}
