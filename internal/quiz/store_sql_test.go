package quiz_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/quizdesk/internal/db"
	"github.com/mind-engage/quizdesk/internal/eventlog"
	"github.com/mind-engage/quizdesk/internal/quiz"
)

func openTestDB(t *testing.T) *quiz.SQLStore {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return quiz.NewSQLStore(dbh)
}

func TestSQLStoreQuizLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	deadline := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	limit := 15
	q, err := s.CreateQuiz(ctx, quiz.Quiz{
		Title:           "Thermodynamics",
		Description:     "Unit 2",
		TeacherID:       7,
		CourseName:      "ME201",
		Deadline:        &deadline,
		TimeLimitMin:    &limit,
		TargetStream:    " Mech , ",
		TargetDivisions: "",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q.ID == 0 {
		t.Fatal("expected generated id")
	}

	got, err := s.GetQuiz(ctx, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TargetStream != "Mech" || got.TargetDivisions != "ALL" {
		t.Fatalf("targets not normalized: %q %q", got.TargetStream, got.TargetDivisions)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Fatalf("deadline = %v, want %v", got.Deadline, deadline)
	}
	if got.TimeLimitMin == nil || *got.TimeLimitMin != 15 {
		t.Fatalf("time limit = %v", got.TimeLimitMin)
	}

	got.Title = "Thermo II"
	got.Deadline = nil
	got.TimeLimitMin = nil
	upd, err := s.UpdateQuiz(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Title != "Thermo II" || upd.Deadline != nil || upd.HasTimeLimit() {
		t.Fatalf("update not applied: %+v", upd)
	}

	if _, err := s.CreateQuiz(ctx, quiz.Quiz{Title: "Other", Description: "circuits", TeacherID: 8}); err != nil {
		t.Fatal(err)
	}
	mine, err := s.ListQuizzes(ctx, quiz.ListOpts{TeacherID: 7})
	if err != nil || len(mine) != 1 {
		t.Fatalf("list by teacher = %v, %v", mine, err)
	}
	found, err := s.ListQuizzes(ctx, quiz.ListOpts{Q: "CIRC"})
	if err != nil || len(found) != 1 || found[0].Title != "Other" {
		t.Fatalf("search = %v, %v", found, err)
	}

	if err := s.DeleteQuiz(ctx, q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetQuiz(ctx, q.ID); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteQuiz(ctx, q.ID); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSQLStoreQuestionsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	q, err := s.CreateQuiz(ctx, quiz.Quiz{Title: "Order", TeacherID: 1})
	if err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for i, l := range []quiz.Letter{quiz.LetterC, quiz.LetterA, quiz.LetterD} {
		qq, err := s.AddQuestion(ctx, quiz.Question{
			QuizID:  q.ID,
			Text:    "q" + string(rune('1'+i)),
			Options: [4]string{"a", "b", "c", "d"},
			Correct: l,
		})
		if err != nil {
			t.Fatalf("add question: %v", err)
		}
		ids = append(ids, qq.ID)
	}
	if _, err := s.AddQuestion(ctx, quiz.Question{QuizID: q.ID, Text: "bad"}); !errors.Is(err, quiz.ErrInvalidLetter) {
		t.Fatalf("expected ErrInvalidLetter, got %v", err)
	}

	qs, err := s.ListQuestions(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 3 {
		t.Fatalf("got %d questions", len(qs))
	}
	for i := range qs {
		if qs[i].ID != ids[i] {
			t.Fatalf("order mismatch at %d: %d vs %d", i, qs[i].ID, ids[i])
		}
	}
	if qs[0].Correct != quiz.LetterC || qs[0].Option(quiz.LetterB) != "b" {
		t.Fatalf("question round-trip: %+v", qs[0])
	}

	if err := s.DeleteQuestion(ctx, q.ID, ids[1]); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteQuestion(ctx, q.ID+99, ids[0]); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("delete under wrong quiz: %v", err)
	}
	qs, _ = s.ListQuestions(ctx, q.ID)
	if len(qs) != 2 {
		t.Fatalf("after delete: %d", len(qs))
	}
}

func TestSQLStoreSaveResultAppendsEvent(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	q, err := s.CreateQuiz(ctx, quiz.Quiz{Title: "Results", TeacherID: 1})
	if err != nil {
		t.Fatal(err)
	}
	first, err := s.SaveResult(ctx, quiz.Result{
		StudentID: 42, QuizID: q.ID, Score: 75, TotalQuestions: 4,
		Answers: "Q1:A;Q2:B;Q3:-;Q4:D;", TakenAt: time.Unix(1_700_000_000, 0),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := s.SaveResult(ctx, quiz.Result{
		StudentID: 42, QuizID: q.ID, Score: 100, TotalQuestions: 4,
		Answers: "Q1:A;Q2:A;Q3:A;Q4:A;", TakenAt: time.Unix(1_700_000_500, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	mine, err := s.ListResultsByStudent(ctx, 42)
	if err != nil || len(mine) != 2 {
		t.Fatalf("by student = %v, %v", mine, err)
	}
	if mine[0].ID != second || mine[1].ID != first {
		t.Fatalf("expected newest first, got %d,%d", mine[0].ID, mine[1].ID)
	}
	if mine[1].Answers != "Q1:A;Q2:B;Q3:-;Q4:D;" || mine[1].Score != 75 {
		t.Fatalf("round-trip: %+v", mine[1])
	}
	byQuiz, err := s.ListResultsByQuiz(ctx, q.ID)
	if err != nil || len(byQuiz) != 2 {
		t.Fatalf("by quiz = %v, %v", byQuiz, err)
	}

	events, err := eventlog.NewRepo(s.DB()).List(ctx, 0, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 || events[0].Type != eventlog.TypeResultRecorded {
		t.Fatalf("events = %+v", events)
	}
}
