package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

var (
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptExists is returned by Start when the student already has a
	// live attempt at the quiz; the existing session is returned with it.
	ErrAttemptExists = errors.New("an attempt at this quiz is already in progress")
)

type ownerKey struct {
	studentID int64
	quizID    int64
}

type entry struct {
	session   *Session
	countdown *Countdown
}

// Manager keeps the live sessions of this process, keyed by attempt id.
type Manager struct {
	deps      Deps
	tick      time.Duration
	retention time.Duration
	onTick    func(*Session, TickResult)
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	byOwner  map[ownerKey]string
}

type ManagerOption func(*Manager)

// WithTickInterval overrides the one-second countdown interval.
func WithTickInterval(d time.Duration) ManagerOption { return func(m *Manager) { m.tick = d } }

// WithRetention sets how long finished sessions stay readable.
func WithRetention(d time.Duration) ManagerOption { return func(m *Manager) { m.retention = d } }

// WithTickObserver receives every countdown step, e.g. to push timer updates.
func WithTickObserver(fn func(*Session, TickResult)) ManagerOption {
	return func(m *Manager) { m.onTick = fn }
}

func NewManager(deps Deps, opts ...ManagerOption) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	m := &Manager{
		deps:      deps,
		tick:      time.Second,
		retention: 30 * time.Minute,
		logger:    deps.Logger,
		sessions:  map[string]*entry{},
		byOwner:   map[ownerKey]string{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start opens a session for the student and runs Begin. Rejected or failed
// begins are not retained. On success the countdown is already running.
func (m *Manager) Start(ctx context.Context, student quiz.Student, q quiz.Quiz) (*Session, []quiz.Question, error) {
	key := ownerKey{student.ID, q.ID}

	m.mu.Lock()
	if id, ok := m.byOwner[key]; ok {
		if e, ok := m.sessions[id]; ok && !e.session.View().State.Terminal() {
			m.mu.Unlock()
			return e.session, nil, ErrAttemptExists
		}
		delete(m.byOwner, key)
	}
	s := NewSession(uuid.NewString(), student, q, m.deps)
	// reserve the slot so a double click cannot start two sessions
	m.sessions[s.ID()] = &entry{session: s}
	m.byOwner[key] = s.ID()
	m.mu.Unlock()

	qs, err := s.Begin(ctx)
	if err != nil {
		m.drop(s.ID(), key)
		return nil, nil, err
	}

	var observe func(TickResult)
	if m.onTick != nil {
		observe = func(r TickResult) { m.onTick(s, r) }
	}
	cd := NewCountdown(s, m.tick, observe, m.logger)

	m.mu.Lock()
	if e, ok := m.sessions[s.ID()]; ok {
		e.countdown = cd
	}
	m.mu.Unlock()
	cd.Start()
	return s, qs, nil
}

// Get returns a live or recently finished session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return e.session, nil
}

// Close ends a session and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		key := ownerKey{e.session.Student().ID, e.session.Quiz().ID}
		if m.byOwner[key] == id {
			delete(m.byOwner, key)
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrAttemptNotFound
	}
	e.stop()
	return nil
}

func (e *entry) stop() {
	e.session.Close()
	if e.countdown != nil {
		e.countdown.Stop()
	}
}

func (m *Manager) drop(id string, key ownerKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	if m.byOwner[key] == id {
		delete(m.byOwner, key)
	}
}

// Len is the number of retained sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep forgets sessions that finished more than the retention window ago.
func (m *Manager) Sweep() int {
	now := m.deps.Clock.Now()
	m.mu.Lock()
	var stale []*entry
	for id, e := range m.sessions {
		fin := e.session.FinishedAt()
		if fin.IsZero() || now.Sub(fin) < m.retention {
			continue
		}
		stale = append(stale, e)
		delete(m.sessions, id)
		key := ownerKey{e.session.Student().ID, e.session.Quiz().ID}
		if m.byOwner[key] == id {
			delete(m.byOwner, key)
		}
	}
	m.mu.Unlock()
	for _, e := range stale {
		e.stop()
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	interval := m.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("swept finished attempts", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	all := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		all = append(all, e)
	}
	m.sessions = map[string]*entry{}
	m.byOwner = map[ownerKey]string{}
	m.mu.Unlock()
	for _, e := range all {
		e.stop()
	}
	m.logger.Info("attempt manager stopped", zap.Int("closed", len(all)))
}
