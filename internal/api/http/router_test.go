package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/quizdesk/internal/attempt"
	auth "github.com/mind-engage/quizdesk/internal/auth/middleware"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/users"
)

type testEnv struct {
	t       *testing.T
	h       http.Handler
	quizzes quiz.Store
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvWithSink(t, nil)
}

// newEnvWithSink routes attempt results through sink when it is non-nil.
func newEnvWithSink(t *testing.T, sink func(quiz.Store) quiz.ResultSink) *testEnv {
	t.Helper()
	store := quiz.NewInMemoryStore()
	var results quiz.ResultSink = store
	if sink != nil {
		results = sink(store)
	}
	m := attempt.NewManager(attempt.Deps{Questions: store, Results: results})
	t.Cleanup(func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m.Run(ctx)
	})
	s := &Server{
		Quizzes:     store,
		Users:       users.NewInMemoryStore(),
		Attempts:    m,
		Auth:        auth.NewAuthService("test-secret", time.Hour),
		CORSOrigins: []string{"http://localhost:3000"},
	}
	return &testEnv{t: t, h: s.Routes(), quizzes: store}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) expect(rec *httptest.ResponseRecorder, code int, out any) {
	e.t.Helper()
	if rec.Code != code {
		e.t.Fatalf("status = %d, want %d: %s", rec.Code, code, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			e.t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
}

func (e *testEnv) register(username, role, roll, stream, division string) (string, users.User) {
	e.t.Helper()
	var resp tokenResponse
	e.expect(e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username, "password": "password1", "full_name": strings.ToUpper(username[:1]) + username[1:],
		"role": role, "roll_number": roll, "stream": stream, "division": division,
	}), http.StatusCreated, &resp)
	return resp.AccessToken, resp.User
}

func (e *testEnv) createQuiz(token string, body map[string]any) quiz.Quiz {
	e.t.Helper()
	var q quiz.Quiz
	e.expect(e.do(http.MethodPost, "/quizzes", token, body), http.StatusCreated, &q)
	return q
}

func (e *testEnv) addQuestions(token string, quizID int64, correct ...string) {
	e.t.Helper()
	for i, c := range correct {
		e.expect(e.do(http.MethodPost, fmt.Sprintf("/quizzes/%d/questions", quizID), token, map[string]any{
			"text":    fmt.Sprintf("question %d", i+1),
			"options": []string{"a", "b", "c", "d"},
			"correct": c,
		}), http.StatusCreated, nil)
	}
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t)
	e.register("asha", "student", "21", "CSE", "A")

	e.expect(e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "asha", "password": "password1", "full_name": "Other", "role": "teacher",
	}), http.StatusConflict, nil)
	e.expect(e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "kiran", "password": "password1", "full_name": "Kiran", "role": "student",
	}), http.StatusBadRequest, nil) // students need stream and division
	e.expect(e.do(http.MethodPost, "/auth/register", "", `{"username":`), http.StatusBadRequest, nil)
	e.expect(e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "ravi", "password": strings.Repeat("p", 100), "full_name": "Ravi", "role": "teacher",
	}), http.StatusBadRequest, nil)
	var tooLong errorBody
	e.expect(e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "ravi", "password": strings.Repeat("é", 40), "full_name": "Ravi", "role": "teacher",
	}), http.StatusBadRequest, &tooLong) // 40 runes but 80 bytes
	if tooLong.Error != users.ErrPasswordTooLong.Error() {
		t.Fatalf("long password = %+v", tooLong)
	}

	var resp tokenResponse
	e.expect(e.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "asha", "password": "password1"}), http.StatusOK, &resp)
	if resp.AccessToken == "" || resp.User.Role != "student" {
		t.Fatalf("login = %+v", resp)
	}
	e.expect(e.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "asha", "password": "nope"}), http.StatusUnauthorized, nil)

	e.expect(e.do(http.MethodGet, "/quizzes", "", nil), http.StatusUnauthorized, nil)
	e.expect(e.do(http.MethodGet, "/healthz", "", nil), http.StatusOK, nil)
	e.expect(e.do(http.MethodGet, "/readyz", "", nil), http.StatusOK, nil)
}

func TestTeacherQuizManagement(t *testing.T) {
	e := newEnv(t)
	teacher, _ := e.register("ravi", "teacher", "", "", "")
	other, _ := e.register("meera", "teacher", "", "", "")
	student, _ := e.register("asha", "student", "21", "CSE", "A")

	e.expect(e.do(http.MethodPost, "/quizzes", teacher, map[string]any{"title": "  "}), http.StatusBadRequest, nil)
	e.expect(e.do(http.MethodPost, "/quizzes", teacher, map[string]any{"title": "x", "deadline": "tomorrow"}), http.StatusBadRequest, nil)
	e.expect(e.do(http.MethodPost, "/quizzes", teacher, map[string]any{"title": "x", "time_limit_min": -1}), http.StatusBadRequest, nil)
	e.expect(e.do(http.MethodPost, "/quizzes", student, map[string]any{"title": "x"}), http.StatusForbidden, nil)

	q := e.createQuiz(teacher, map[string]any{
		"title": "Loops", "deadline": "2099-12-31T23:59", "time_limit_min": 10,
		"target_stream": "CSE, ECE", "target_divisions": "",
	})
	if q.TargetDivisions != quiz.All || q.TargetStream != "CSE,ECE" || q.Deadline == nil {
		t.Fatalf("quiz = %+v", q)
	}
	e.addQuestions(teacher, q.ID, "A", "b")
	e.expect(e.do(http.MethodPost, fmt.Sprintf("/quizzes/%d/questions", q.ID), teacher, map[string]any{
		"text": "bad", "options": []string{"a", "b", "c", "d"}, "correct": "E",
	}), http.StatusBadRequest, nil)
	e.expect(e.do(http.MethodPost, fmt.Sprintf("/quizzes/%d/questions", q.ID), teacher, map[string]any{
		"text": "missing", "options": []string{"a", "", "c", "d"}, "correct": "A",
	}), http.StatusBadRequest, nil)
	e.expect(e.do(http.MethodPost, fmt.Sprintf("/quizzes/%d/questions", q.ID), other, map[string]any{
		"text": "intruder", "options": []string{"a", "b", "c", "d"}, "correct": "A",
	}), http.StatusForbidden, nil)

	var mine []teacherQuiz
	e.expect(e.do(http.MethodGet, "/quizzes/mine", teacher, nil), http.StatusOK, &mine)
	if len(mine) != 1 || len(mine[0].Questions) != 2 || mine[0].Questions[1].Correct != quiz.LetterB {
		t.Fatalf("mine = %+v", mine)
	}
	e.expect(e.do(http.MethodGet, "/quizzes/mine", other, nil), http.StatusOK, &mine)
	if len(mine) != 0 {
		t.Fatalf("other teacher sees %d quizzes", len(mine))
	}

	var updated quiz.Quiz
	e.expect(e.do(http.MethodPut, fmt.Sprintf("/quizzes/%d", q.ID), teacher, map[string]any{
		"title": "Loops and arrays", "course_name": "Programming 101",
	}), http.StatusOK, &updated)
	if updated.Title != "Loops and arrays" || updated.Deadline != nil || updated.TargetStream != quiz.All {
		t.Fatalf("updated = %+v", updated)
	}
	e.expect(e.do(http.MethodPut, fmt.Sprintf("/quizzes/%d", q.ID), other, map[string]any{"title": "mine now"}), http.StatusForbidden, nil)
	e.expect(e.do(http.MethodDelete, fmt.Sprintf("/quizzes/%d", q.ID), other, nil), http.StatusForbidden, nil)

	qs, _ := e.quizzes.ListQuestions(context.Background(), q.ID)
	e.expect(e.do(http.MethodDelete, fmt.Sprintf("/quizzes/%d/questions/%d", q.ID, qs[0].ID), teacher, nil), http.StatusNoContent, nil)
	e.expect(e.do(http.MethodDelete, fmt.Sprintf("/quizzes/%d/questions/%d", q.ID, qs[0].ID), teacher, nil), http.StatusNotFound, nil)

	e.expect(e.do(http.MethodDelete, fmt.Sprintf("/quizzes/%d", q.ID), teacher, nil), http.StatusNoContent, nil)
	e.expect(e.do(http.MethodPut, fmt.Sprintf("/quizzes/%d", q.ID), teacher, map[string]any{"title": "gone"}), http.StatusNotFound, nil)
	e.expect(e.do(http.MethodDelete, "/quizzes/abc", teacher, nil), http.StatusBadRequest, nil)
}

func TestStudentListing(t *testing.T) {
	e := newEnv(t)
	teacher, _ := e.register("ravi", "teacher", "", "", "")
	cse, _ := e.register("asha", "student", "21", "CSE", "A")
	ece, _ := e.register("kiran", "student", "7", "ECE", "B")

	e.createQuiz(teacher, map[string]any{"title": "Open to all"})
	e.createQuiz(teacher, map[string]any{"title": "CSE only", "course_name": "Algorithms", "target_stream": "cse"})
	e.createQuiz(teacher, map[string]any{"title": "Closed", "deadline": "2001-01-01T00:00:00Z"})

	var list []studentQuiz
	e.expect(e.do(http.MethodGet, "/quizzes", cse, nil), http.StatusOK, &list)
	if len(list) != 3 {
		t.Fatalf("cse sees %d quizzes", len(list))
	}
	byTitle := map[string]studentQuiz{}
	for _, q := range list {
		byTitle[q.Title] = q
	}
	if byTitle["CSE only"].Course != "Algorithms" || byTitle["Open to all"].Course != "Open to all" {
		t.Fatalf("course labels = %+v", byTitle)
	}
	if byTitle["Closed"].DeadlineDisplay != deadlineDone || byTitle["Open to all"].DeadlineDisplay != "" {
		t.Fatalf("deadline display = %+v", byTitle)
	}

	e.expect(e.do(http.MethodGet, "/quizzes", ece, nil), http.StatusOK, &list)
	if len(list) != 2 {
		t.Fatalf("ece sees %d quizzes", len(list))
	}
	e.expect(e.do(http.MethodGet, "/quizzes?q=ALGO", cse, nil), http.StatusOK, &list)
	if len(list) != 0 {
		// search covers title and description, not the course
		t.Fatalf("search = %+v", list)
	}
	e.expect(e.do(http.MethodGet, "/quizzes?q=only", cse, nil), http.StatusOK, &list)
	if len(list) != 1 || list[0].Title != "CSE only" {
		t.Fatalf("search = %+v", list)
	}
	e.expect(e.do(http.MethodGet, "/quizzes", teacher, nil), http.StatusForbidden, nil)
}

func TestAttemptLifecycle(t *testing.T) {
	e := newEnv(t)
	teacher, _ := e.register("ravi", "teacher", "", "", "")
	cse, _ := e.register("asha", "student", "21", "CSE", "A")
	ece, _ := e.register("kiran", "student", "7", "ECE", "B")

	q := e.createQuiz(teacher, map[string]any{"title": "Loops", "target_stream": "CSE", "time_limit_min": 30})
	e.addQuestions(teacher, q.ID, "A", "B", "C", "D")
	start := fmt.Sprintf("/quizzes/%d/attempts", q.ID)

	var rej errorBody
	e.expect(e.do(http.MethodPost, start, ece, nil), http.StatusForbidden, &rej)
	if rej.Reason != "not eligible" {
		t.Fatalf("rejection = %+v", rej)
	}
	e.expect(e.do(http.MethodPost, "/quizzes/999/attempts", cse, nil), http.StatusNotFound, nil)

	rec := e.do(http.MethodPost, start, cse, nil)
	var av attemptView
	e.expect(rec, http.StatusCreated, &av)
	if av.State != "active" || len(av.Questions) != 4 || av.RemainingSeconds == nil || *av.RemainingSeconds != 1800 {
		t.Fatalf("attempt = %+v", av)
	}
	if strings.Contains(rec.Body.String(), `"correct"`) {
		t.Fatalf("correct letters leaked to student: %s", rec.Body.String())
	}

	var dup struct {
		AttemptID string `json:"attempt_id"`
	}
	e.expect(e.do(http.MethodPost, start, cse, nil), http.StatusConflict, &dup)
	if dup.AttemptID != av.ID {
		t.Fatalf("duplicate start points at %q", dup.AttemptID)
	}

	path := "/attempts/" + av.ID
	answer := func(i int, opt string) *httptest.ResponseRecorder {
		return e.do(http.MethodPut, fmt.Sprintf("%s/answers/%d", path, av.Questions[i].ID), cse, map[string]string{"option": opt})
	}
	e.expect(answer(0, "a"), http.StatusNoContent, nil)
	e.expect(answer(1, "B"), http.StatusNoContent, nil)
	e.expect(answer(2, "C"), http.StatusNoContent, nil)
	e.expect(answer(3, "C"), http.StatusNoContent, nil)
	e.expect(answer(3, "Z"), http.StatusBadRequest, nil)
	e.expect(e.do(http.MethodPut, path+"/answers/9999", cse, map[string]string{"option": "A"}), http.StatusBadRequest, nil)
	e.expect(e.do(http.MethodPut, fmt.Sprintf("%s/answers/%d", path, av.Questions[0].ID), ece, map[string]string{"option": "A"}), http.StatusNotFound, nil)

	e.expect(e.do(http.MethodGet, path, cse, nil), http.StatusOK, &av)
	if len(av.Answers) != 4 || av.Answers[av.Questions[0].ID] != quiz.LetterA {
		t.Fatalf("answers = %+v", av.Answers)
	}

	var out outcomeView
	e.expect(e.do(http.MethodPost, path+"/submit", cse, nil), http.StatusOK, &out)
	if out.Score != 75.0 || out.Correct != 3 || out.Total != 4 || out.Trigger != "manual" {
		t.Fatalf("outcome = %+v", out)
	}
	e.expect(e.do(http.MethodGet, path, cse, nil), http.StatusOK, &av)
	if av.State != "submitted" || av.Outcome == nil || av.Outcome.ResultID != out.ResultID {
		t.Fatalf("after submit = %+v", av)
	}
	e.expect(answer(0, "B"), http.StatusConflict, nil)

	var mine []resultView
	e.expect(e.do(http.MethodGet, "/results/mine", cse, nil), http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].QuizTitle != "Loops" || len(mine[0].Details) != 4 {
		t.Fatalf("my results = %+v", mine)
	}
	if d := mine[0].Details[3]; d.Answer != quiz.LetterC || d.Correct != 0 || d.AnswerText != "c" {
		t.Fatalf("student detail = %+v", d)
	}

	var all []resultView
	e.expect(e.do(http.MethodGet, fmt.Sprintf("/quizzes/%d/results", q.ID), teacher, nil), http.StatusOK, &all)
	if len(all) != 1 || all[0].Student != "21_Asha_CSE_A" || all[0].Details[3].Correct != quiz.LetterD {
		t.Fatalf("quiz results = %+v", all)
	}
	e.expect(e.do(http.MethodGet, fmt.Sprintf("/quizzes/%d/results", q.ID), cse, nil), http.StatusForbidden, nil)

	e.expect(e.do(http.MethodDelete, path, cse, nil), http.StatusNoContent, nil)
	e.expect(e.do(http.MethodGet, path, cse, nil), http.StatusNotFound, nil)

	// a finished attempt frees the slot for a new one
	e.expect(e.do(http.MethodPost, start, cse, nil), http.StatusCreated, &av)
}

func TestAttemptRejections(t *testing.T) {
	e := newEnv(t)
	teacher, _ := e.register("ravi", "teacher", "", "", "")
	cse, _ := e.register("asha", "student", "21", "CSE", "A")

	late := e.createQuiz(teacher, map[string]any{"title": "Late", "deadline": "2001-01-01T00:00"})
	var rej errorBody
	e.expect(e.do(http.MethodPost, fmt.Sprintf("/quizzes/%d/attempts", late.ID), cse, nil), http.StatusConflict, &rej)
	if rej.Reason != "deadline passed" {
		t.Fatalf("rejection = %+v", rej)
	}

	empty := e.createQuiz(teacher, map[string]any{"title": "Empty"})
	var av attemptView
	e.expect(e.do(http.MethodPost, fmt.Sprintf("/quizzes/%d/attempts", empty.ID), cse, nil), http.StatusCreated, &av)
	e.expect(e.do(http.MethodPost, "/attempts/"+av.ID+"/submit", cse, nil), http.StatusConflict, &rej)
	if rej.Reason != "no questions" {
		t.Fatalf("rejection = %+v", rej)
	}
	e.expect(e.do(http.MethodGet, "/attempts/"+av.ID, cse, nil), http.StatusOK, &av)
	if av.State != "rejected" || av.Reason != "no questions" {
		t.Fatalf("attempt = %+v", av)
	}
	e.expect(e.do(http.MethodGet, "/attempts/nope", cse, nil), http.StatusNotFound, nil)
}

func TestResultStreamRequiresFeed(t *testing.T) {
	e := newEnv(t)
	teacher, _ := e.register("ravi", "teacher", "", "", "")
	q := e.createQuiz(teacher, map[string]any{"title": "Loops"})
	e.expect(e.do(http.MethodGet, fmt.Sprintf("/quizzes/%d/results/stream", q.ID), teacher, nil), http.StatusNotImplemented, nil)
}

type flakySink struct {
	next quiz.ResultSink
	mu   sync.Mutex
	err  error
}

func (f *flakySink) SaveResult(ctx context.Context, r quiz.Result) (int64, error) {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.next.SaveResult(ctx, r)
}

func (f *flakySink) heal() {
	f.mu.Lock()
	f.err = nil
	f.mu.Unlock()
}

func TestSubmitStorageFaultReportsCause(t *testing.T) {
	flaky := &flakySink{err: errors.New("disk full")}
	e := newEnvWithSink(t, func(s quiz.Store) quiz.ResultSink {
		flaky.next = s
		return flaky
	})
	teacher, _ := e.register("ravi", "teacher", "", "", "")
	cse, _ := e.register("asha", "student", "21", "CSE", "A")
	q := e.createQuiz(teacher, map[string]any{"title": "Loops"})
	e.addQuestions(teacher, q.ID, "A")

	var av attemptView
	e.expect(e.do(http.MethodPost, fmt.Sprintf("/quizzes/%d/attempts", q.ID), cse, nil), http.StatusCreated, &av)
	path := "/attempts/" + av.ID

	var fault errorBody
	e.expect(e.do(http.MethodPost, path+"/submit", cse, nil), http.StatusServiceUnavailable, &fault)
	if !strings.Contains(fault.Error, "save result") || !strings.Contains(fault.Error, "disk full") {
		t.Fatalf("fault = %+v", fault)
	}

	flaky.heal()
	var out outcomeView
	e.expect(e.do(http.MethodPost, path+"/submit", cse, nil), http.StatusOK, &out)
	if out.Total != 1 {
		t.Fatalf("outcome = %+v", out)
	}
}
