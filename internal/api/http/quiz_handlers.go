package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	auth "github.com/mind-engage/quizdesk/internal/auth/middleware"
	"github.com/mind-engage/quizdesk/internal/quiz"
)

const deadlineLayout = "2006-01-02T15:04"

type quizRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=4000"`
	CourseName      string `json:"course_name" validate:"max=200"`
	Deadline        string `json:"deadline"` // RFC3339 or YYYY-MM-DDTHH:MM
	TimeLimitMin    *int   `json:"time_limit_min" validate:"omitempty,min=0,max=1440"`
	TargetStream    string `json:"target_stream" validate:"max=200"`
	TargetDivisions string `json:"target_divisions" validate:"max=200"`
}

// parseDeadline accepts RFC3339 or a zone-less minute in local time.
func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(deadlineLayout, s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: deadline must be RFC3339 or YYYY-MM-DDTHH:MM", errBadInput)
	}
	return &t, nil
}

func (req quizRequest) toQuiz() (quiz.Quiz, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return quiz.Quiz{}, fmt.Errorf("%w: title required", errBadInput)
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		return quiz.Quiz{}, err
	}
	return quiz.Quiz{
		Title:           title,
		Description:     strings.TrimSpace(req.Description),
		CourseName:      strings.TrimSpace(req.CourseName),
		Deadline:        deadline,
		TimeLimitMin:    req.TimeLimitMin,
		TargetStream:    req.TargetStream,
		TargetDivisions: req.TargetDivisions,
	}, nil
}

// ownedQuiz loads quizID and checks that the caller created it.
func ownedQuiz(ctx context.Context, store quiz.Store, quizID int64) (quiz.Quiz, error) {
	q, err := store.GetQuiz(ctx, quizID)
	if err != nil {
		return quiz.Quiz{}, err
	}
	if q.TeacherID != auth.SubjectID(ctx) {
		return quiz.Quiz{}, quiz.ErrForbidden
	}
	return q, nil
}

// POST /quizzes
func CreateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quizRequest
		if !decode(w, r, &req) {
			return
		}
		q, err := req.toQuiz()
		if err != nil {
			fail(w, err)
			return
		}
		q.TeacherID = auth.SubjectID(r.Context())
		created, err := store.CreateQuiz(r.Context(), q)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// PUT /quizzes/{quizID}
func UpdateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "quizID")
		if err != nil {
			fail(w, err)
			return
		}
		var req quizRequest
		if !decode(w, r, &req) {
			return
		}
		existing, err := ownedQuiz(r.Context(), store, id)
		if err != nil {
			fail(w, err)
			return
		}
		q, err := req.toQuiz()
		if err != nil {
			fail(w, err)
			return
		}
		q.ID = existing.ID
		q.TeacherID = existing.TeacherID
		updated, err := store.UpdateQuiz(r.Context(), q)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// DELETE /quizzes/{quizID}
func DeleteQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "quizID")
		if err != nil {
			fail(w, err)
			return
		}
		if _, err := ownedQuiz(r.Context(), store, id); err != nil {
			fail(w, err)
			return
		}
		if err := store.DeleteQuiz(r.Context(), id); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type teacherQuiz struct {
	quiz.Quiz
	Questions []quiz.Question `json:"questions"`
}

// GET /quizzes/mine
func ListMyQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			Q:         r.URL.Query().Get("q"),
			TeacherID: auth.SubjectID(r.Context()),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 0),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			fail(w, err)
			return
		}
		out := make([]teacherQuiz, 0, len(list))
		for _, q := range list {
			qs, err := store.ListQuestions(r.Context(), q.ID)
			if err != nil {
				fail(w, err)
				return
			}
			if qs == nil {
				qs = []quiz.Question{}
			}
			out = append(out, teacherQuiz{Quiz: q, Questions: qs})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type questionRequest struct {
	Text    string    `json:"text" validate:"required,max=4000"`
	Options [4]string `json:"options" validate:"dive,required,max=1000"`
	Correct string    `json:"correct" validate:"required"`
}

// POST /quizzes/{quizID}/questions
func AddQuestionHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := pathID(r, "quizID")
		if err != nil {
			fail(w, err)
			return
		}
		var req questionRequest
		if !decode(w, r, &req) {
			return
		}
		correct, err := quiz.ParseLetter(req.Correct)
		if err != nil {
			fail(w, err)
			return
		}
		q := quiz.Question{QuizID: quizID, Text: strings.TrimSpace(req.Text), Correct: correct}
		for i, o := range req.Options {
			q.Options[i] = strings.TrimSpace(o)
			if q.Options[i] == "" {
				fail(w, fmt.Errorf("%w: option %s required", errBadInput, quiz.Letters[i]))
				return
			}
		}
		if q.Text == "" {
			fail(w, fmt.Errorf("%w: question text required", errBadInput))
			return
		}
		if _, err := ownedQuiz(r.Context(), store, quizID); err != nil {
			fail(w, err)
			return
		}
		added, err := store.AddQuestion(r.Context(), q)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, added)
	}
}

// DELETE /quizzes/{quizID}/questions/{questionID}
func DeleteQuestionHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, err := pathID(r, "quizID")
		if err != nil {
			fail(w, err)
			return
		}
		questionID, err := pathID(r, "questionID")
		if err != nil {
			fail(w, err)
			return
		}
		if _, err := ownedQuiz(r.Context(), store, quizID); err != nil {
			fail(w, err)
			return
		}
		if err := store.DeleteQuestion(r.Context(), quizID, questionID); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
