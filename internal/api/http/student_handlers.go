package http

import (
	"net/http"
	"time"

	auth "github.com/mind-engage/quizdesk/internal/auth/middleware"
	"github.com/mind-engage/quizdesk/internal/quiz"
)

const deadlineDone = "Deadline is done"

type studentQuiz struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Course          string     `json:"course"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	DeadlineDisplay string     `json:"deadline_display"`
	TimeLimitMin    *int       `json:"time_limit_min,omitempty"`
}

func listingFor(q quiz.Quiz, now time.Time) studentQuiz {
	sq := studentQuiz{
		ID:           q.ID,
		Title:        q.Title,
		Description:  q.Description,
		Course:       q.CourseLabel(),
		Deadline:     q.Deadline,
		TimeLimitMin: q.TimeLimitMin,
	}
	switch {
	case q.Deadline == nil:
	case q.DeadlinePassed(now):
		sq.DeadlineDisplay = deadlineDone
	default:
		sq.DeadlineDisplay = q.Deadline.Format(deadlineLayout)
	}
	return sq
}

// GET /quizzes?q=
// Lists quizzes the caller is eligible for, newest first.
func ListEligibleQuizzesHandler(store quiz.Store, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{Q: r.URL.Query().Get("q")})
		if err != nil {
			fail(w, err)
			return
		}
		student := u.Student()
		at := now()
		out := []studentQuiz{}
		for _, q := range list {
			if quiz.Eligible(student, q) {
				out = append(out, listingFor(q, at))
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
