package grading

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

// Tally is the outcome of grading one attempt.
type Tally struct {
	Correct int
	Total   int
	Score   float64 // percentage 0..100
	Record  string  // per-question answer record, see EncodeRecord
}

// Entry is one question's line in an answer record.
type Entry struct {
	QuestionID int64
	Answer     quiz.Letter // zero when unanswered
}

// Grade scores answers against questions in the given order. A missing or
// invalid answer never matches.
func Grade(questions []quiz.Question, answers map[int64]quiz.Letter) Tally {
	t := Tally{Total: len(questions)}
	entries := make([]Entry, 0, len(questions))
	for _, q := range questions {
		a, ok := answers[q.ID]
		if !ok || !a.Valid() {
			a = 0
		}
		if a != 0 && a == q.Correct {
			t.Correct++
		}
		entries = append(entries, Entry{QuestionID: q.ID, Answer: a})
	}
	if t.Total > 0 {
		t.Score = float64(t.Correct) / float64(t.Total) * 100
	}
	t.Record = EncodeRecord(entries)
	return t
}

// EncodeRecord renders entries as "Q<id>:<letter or ->;" repeated in order.
func EncodeRecord(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteByte('Q')
		b.WriteString(strconv.FormatInt(e.QuestionID, 10))
		b.WriteByte(':')
		b.WriteString(e.Answer.String())
		b.WriteByte(';')
	}
	return b.String()
}

var ErrBadRecord = errors.New("malformed answer record")

// DecodeRecord parses a record produced by EncodeRecord.
func DecodeRecord(s string) ([]Entry, error) {
	var out []Entry
	for _, part := range strings.Split(s, ";") {
		if part == "" {
			continue
		}
		id, ans, ok := strings.Cut(part, ":")
		if !ok || !strings.HasPrefix(id, "Q") {
			return nil, fmt.Errorf("%w: %q", ErrBadRecord, part)
		}
		n, err := strconv.ParseInt(id[1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadRecord, part)
		}
		e := Entry{QuestionID: n}
		if ans != quiz.Unanswered {
			if e.Answer, err = quiz.ParseLetter(ans); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrBadRecord, part)
			}
		}
		out = append(out, e)
	}
	return out, nil
}
