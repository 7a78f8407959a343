package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizdesk/internal/attempt"
	auth "github.com/mind-engage/quizdesk/internal/auth/middleware"
	"github.com/mind-engage/quizdesk/internal/quiz"
)

type outcomeView struct {
	ResultID int64   `json:"result_id"`
	Score    float64 `json:"score"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Trigger  string  `json:"trigger"`
}

type attemptView struct {
	ID               string                `json:"id"`
	QuizID           int64                 `json:"quiz_id"`
	State            string                `json:"state"`
	StartedAt        *time.Time            `json:"started_at,omitempty"`
	RemainingSeconds *int64                `json:"remaining_seconds,omitempty"`
	Questions        []quiz.Question       `json:"questions"`
	Answers          map[int64]quiz.Letter `json:"answers"`
	Outcome          *outcomeView          `json:"outcome,omitempty"`
	Reason           string                `json:"reason,omitempty"`
}

func renderAttempt(v attempt.View) attemptView {
	av := attemptView{
		ID:        v.ID,
		QuizID:    v.QuizID,
		State:     v.State.String(),
		Questions: quiz.StripAnswers(v.Questions),
		Answers:   v.Answers,
		Reason:    v.Rejection,
	}
	if !v.StartedAt.IsZero() {
		t := v.StartedAt
		av.StartedAt = &t
	}
	if v.HasLimit {
		secs := int64(v.Remaining / time.Second)
		av.RemainingSeconds = &secs
	}
	if v.Outcome != nil {
		av.Outcome = renderOutcome(*v.Outcome)
	}
	return av
}

func renderOutcome(o attempt.Outcome) *outcomeView {
	return &outcomeView{
		ResultID: o.Result.ID,
		Score:    o.Score(),
		Correct:  o.Correct,
		Total:    o.Total,
		Trigger:  o.Trigger.String(),
	}
}

// ownSession resolves {attemptID} and checks it belongs to the caller.
func ownSession(m *attempt.Manager, r *http.Request) (*attempt.Session, error) {
	s, err := m.Get(chi.URLParam(r, "attemptID"))
	if err != nil {
		return nil, err
	}
	if s.Student().ID != auth.SubjectID(r.Context()) {
		// not found rather than forbidden; attempt ids are not discoverable
		return nil, attempt.ErrAttemptNotFound
	}
	return s, nil
}

// POST /quizzes/{quizID}/attempts
func StartAttemptHandler(store quiz.Store, m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		quizID, err := pathID(r, "quizID")
		if err != nil {
			fail(w, err)
			return
		}
		q, err := store.GetQuiz(r.Context(), quizID)
		if err != nil {
			fail(w, err)
			return
		}
		s, _, err := m.Start(r.Context(), u.Student(), q)
		if errors.Is(err, attempt.ErrAttemptExists) {
			writeJSON(w, http.StatusConflict, struct {
				errorBody
				AttemptID string `json:"attempt_id"`
			}{errorBody{Error: err.Error()}, s.ID()})
			return
		}
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, renderAttempt(s.View()))
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownSession(m, r)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderAttempt(s.View()))
	}
}

type answerRequest struct {
	Option string `json:"option" validate:"required"`
}

// PUT /attempts/{attemptID}/answers/{questionID}
func SelectAnswerHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownSession(m, r)
		if err != nil {
			fail(w, err)
			return
		}
		qid, err := pathID(r, "questionID")
		if err != nil {
			fail(w, err)
			return
		}
		var req answerRequest
		if !decode(w, r, &req) {
			return
		}
		l, err := quiz.ParseLetter(req.Option)
		if err != nil {
			fail(w, err)
			return
		}
		if err := s.SelectAnswer(qid, l); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /attempts/{attemptID}/answers/{questionID}
func ClearAnswerHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownSession(m, r)
		if err != nil {
			fail(w, err)
			return
		}
		qid, err := pathID(r, "questionID")
		if err != nil {
			fail(w, err)
			return
		}
		if err := s.ClearAnswer(qid); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownSession(m, r)
		if err != nil {
			fail(w, err)
			return
		}
		out, err := s.Submit(r.Context())
		if err != nil {
			// a timer submission may have won the race; report its outcome
			if errors.Is(err, attempt.ErrNotActive) {
				if v := s.View(); v.Outcome != nil {
					writeJSON(w, http.StatusOK, renderOutcome(*v.Outcome))
					return
				}
			}
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderOutcome(out))
	}
}

// DELETE /attempts/{attemptID}
func CloseAttemptHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ownSession(m, r)
		if err != nil {
			fail(w, err)
			return
		}
		if err := m.Close(s.ID()); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
