package quiz

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryStore struct {
	mu        sync.RWMutex
	seq       int64
	quizzes   map[int64]Quiz
	questions map[int64][]Question // quizID -> ordered
	results   []Result
}

// NewInMemoryStore returns a process-local Store, used in tests and offline demos.
func NewInMemoryStore() Store {
	return &memoryStore{
		quizzes:   map[int64]Quiz{},
		questions: map[int64][]Question{},
	}
}

func (m *memoryStore) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memoryStore) CreateQuiz(_ context.Context, q Quiz) (Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	normalizeTargets(&q)
	q.ID = m.nextID()
	q.CreatedAt = time.Now()
	m.quizzes[q.ID] = q
	return q, nil
}

func (m *memoryStore) UpdateQuiz(_ context.Context, q Quiz) (Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.quizzes[q.ID]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	normalizeTargets(&q)
	q.TeacherID = old.TeacherID
	q.CreatedAt = old.CreatedAt
	m.quizzes[q.ID] = q
	return q, nil
}

func (m *memoryStore) DeleteQuiz(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[id]; !ok {
		return ErrNotFound
	}
	delete(m.quizzes, id)
	delete(m.questions, id)
	kept := m.results[:0]
	for _, r := range m.results {
		if r.QuizID != id {
			kept = append(kept, r)
		}
	}
	m.results = kept
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id int64) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return q, nil
}

func (m *memoryStore) ListQuizzes(_ context.Context, opts ListOpts) ([]Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(opts.Q))
	var out []Quiz
	for _, q := range m.quizzes {
		if opts.TeacherID != 0 && q.TeacherID != opts.TeacherID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(q.Title), needle) &&
			!strings.Contains(strings.ToLower(q.Description), needle) {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) AddQuestion(_ context.Context, q Question) (Question, error) {
	if !q.Correct.Valid() {
		return Question{}, ErrInvalidLetter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[q.QuizID]; !ok {
		return Question{}, ErrNotFound
	}
	q.ID = m.nextID()
	m.questions[q.QuizID] = append(m.questions[q.QuizID], q)
	return q, nil
}

func (m *memoryStore) DeleteQuestion(_ context.Context, quizID, questionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	qs := m.questions[quizID]
	for i, q := range qs {
		if q.ID == questionID {
			m.questions[quizID] = append(qs[:i:i], qs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) ListQuestions(_ context.Context, quizID int64) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Question(nil), m.questions[quizID]...), nil
}

func (m *memoryStore) SaveResult(_ context.Context, r Result) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID()
	if r.TakenAt.IsZero() {
		r.TakenAt = time.Now()
	}
	m.results = append(m.results, r)
	return r.ID, nil
}

func (m *memoryStore) ListResultsByStudent(_ context.Context, studentID int64) ([]Result, error) {
	return m.filterResults(func(r Result) bool { return r.StudentID == studentID }), nil
}

func (m *memoryStore) ListResultsByQuiz(_ context.Context, quizID int64) ([]Result, error) {
	return m.filterResults(func(r Result) bool { return r.QuizID == quizID }), nil
}

// newest first
func (m *memoryStore) filterResults(keep func(Result) bool) []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Result
	for i := len(m.results) - 1; i >= 0; i-- {
		if keep(m.results[i]) {
			out = append(out, m.results[i])
		}
	}
	return out
}
