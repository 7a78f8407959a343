package attempt

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/grading"
	"github.com/mind-engage/quizdesk/internal/quiz"
)

type State int

const (
	StatePending State = iota
	StateBeginning
	StateActive
	StateSubmitting
	StateSubmitted
	StateRejected
	StateClosed
)

var stateNames = [...]string{"pending", "beginning", "active", "submitting", "submitted", "rejected", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateRejected || s == StateClosed
}

type Trigger int

const (
	TriggerManual Trigger = iota
	TriggerTimer
)

func (t Trigger) String() string {
	if t == TriggerTimer {
		return "timer"
	}
	return "manual"
}

// Outcome is an accepted submission.
type Outcome struct {
	Result  quiz.Result
	Correct int
	Total   int
	Trigger Trigger
}

func (o Outcome) Score() float64 { return o.Result.Score }

type Deps struct {
	Questions quiz.QuestionSource
	Results   quiz.ResultSink
	Clock     Clock
	Logger    *zap.Logger
}

// Session is one student's single attempt at one quiz. It is safe for
// concurrent use; storage calls are made without holding the lock.
type Session struct {
	id      string
	student quiz.Student
	quiz    quiz.Quiz
	deps    Deps
	log     *zap.Logger

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	finishedAt time.Time
	items      []quiz.Question
	index      map[int64]struct{}
	answers    map[int64]quiz.Letter
	// set when any submit starts; the timer never submits after that
	autoDisabled bool
	outcome      *Outcome
	rejection    error
	done         chan struct{}
}

func NewSession(id string, student quiz.Student, q quiz.Quiz, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Session{
		id:      id,
		student: student,
		quiz:    q,
		deps:    deps,
		log: deps.Logger.With(
			zap.String("attempt_id", id),
			zap.Int64("quiz_id", q.ID),
			zap.Int64("student_id", student.ID),
		),
		answers: map[int64]quiz.Letter{},
		done:    make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) Quiz() quiz.Quiz { return s.quiz }
func (s *Session) Student() quiz.Student { return s.student }

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Begin checks eligibility and the deadline, then loads the questions.
// Rejections are terminal; a storage fault leaves the session pending.
func (s *Session) Begin(ctx context.Context) ([]quiz.Question, error) {
	s.mu.Lock()
	switch s.state {
	case StatePending:
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrClosed
	default:
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	if !quiz.Eligible(s.student, s.quiz) {
		s.rejectLocked(ErrNotEligible)
		s.mu.Unlock()
		s.log.Info("attempt rejected", zap.String("reason", Reason(ErrNotEligible)))
		return nil, ErrNotEligible
	}
	now := s.deps.Clock.Now()
	if s.quiz.DeadlinePassed(now) {
		s.rejectLocked(ErrDeadlinePassed)
		s.mu.Unlock()
		s.log.Info("attempt rejected", zap.String("reason", Reason(ErrDeadlinePassed)))
		return nil, ErrDeadlinePassed
	}
	s.state = StateBeginning
	s.mu.Unlock()

	qs, err := s.deps.Questions.ListQuestions(ctx, s.quiz.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, ErrClosed
	}
	if err != nil {
		s.state = StatePending
		s.log.Warn("load questions failed", zap.Error(err))
		return nil, &StorageError{Op: "list questions", Err: err}
	}
	s.items = qs
	s.index = make(map[int64]struct{}, len(qs))
	for _, q := range qs {
		s.index[q.ID] = struct{}{}
	}
	s.startedAt = now
	s.state = StateActive
	s.log.Info("attempt started", zap.Int("questions", len(qs)), zap.Duration("time_limit", s.quiz.TimeLimit()))
	return append([]quiz.Question(nil), qs...), nil
}

// SelectAnswer records l for question qid, replacing any earlier choice.
func (s *Session) SelectAnswer(qid int64, l quiz.Letter) error {
	if !l.Valid() {
		return quiz.ErrInvalidLetter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(qid); err != nil {
		return err
	}
	s.answers[qid] = l
	return nil
}

// ClearAnswer removes the selection for qid.
func (s *Session) ClearAnswer(qid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(qid); err != nil {
		return err
	}
	delete(s.answers, qid)
	return nil
}

func (s *Session) editableLocked(qid int64) error {
	switch s.state {
	case StateActive:
	case StateSubmitting:
		return ErrSubmitInProgress
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotActive
	}
	if _, ok := s.index[qid]; !ok {
		return ErrUnknownQuestion
	}
	return nil
}

// Submit grades and records the attempt on the student's request.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	snap, err := s.prepareLocked(TriggerManual, s.deps.Clock.Now())
	s.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}
	return s.finish(ctx, snap)
}

// TickResult reports one countdown step.
type TickResult struct {
	Remaining time.Duration
	Expired   bool
	// Fired is true when this tick ran the automatic submission.
	Fired   bool
	Outcome Outcome
	Err     error
}

// Tick recomputes the remaining time and auto-submits once on expiry.
func (s *Session) Tick(ctx context.Context) TickResult {
	s.mu.Lock()
	now := s.deps.Clock.Now()
	if s.state != StateActive || !s.quiz.HasTimeLimit() {
		res := TickResult{Remaining: s.remainingLocked(now)}
		s.mu.Unlock()
		return res
	}
	left := s.remainingLocked(now)
	if left > 0 {
		s.mu.Unlock()
		return TickResult{Remaining: left}
	}
	res := TickResult{Expired: true}
	if s.autoDisabled {
		s.mu.Unlock()
		return res
	}
	snap, err := s.prepareLocked(TriggerTimer, now)
	s.mu.Unlock()
	res.Fired = true
	if err != nil {
		res.Err = err
		return res
	}
	s.log.Info("time limit reached, submitting automatically")
	res.Outcome, res.Err = s.finish(ctx, snap)
	return res
}

type submission struct {
	trigger Trigger
	at      time.Time
	items   []quiz.Question
	answers map[int64]quiz.Letter
}

func (s *Session) prepareLocked(trig Trigger, now time.Time) (submission, error) {
	switch s.state {
	case StateActive:
	case StateSubmitting:
		return submission{}, ErrSubmitInProgress
	case StateClosed:
		return submission{}, ErrClosed
	default:
		return submission{}, ErrNotActive
	}
	s.autoDisabled = true

	// the timer fires at expiry, so only a manual submit can be late
	if trig == TriggerManual && s.quiz.HasTimeLimit() {
		elapsedMin := int64(now.Sub(s.startedAt) / time.Minute)
		if elapsedMin > int64(*s.quiz.TimeLimitMin) {
			s.rejectLocked(ErrTimeExceeded)
			s.log.Info("submission rejected", zap.String("reason", Reason(ErrTimeExceeded)), zap.Int64("elapsed_min", elapsedMin))
			return submission{}, ErrTimeExceeded
		}
	}
	if len(s.items) == 0 {
		s.rejectLocked(ErrNoQuestions)
		s.log.Info("submission rejected", zap.String("reason", Reason(ErrNoQuestions)))
		return submission{}, ErrNoQuestions
	}

	answers := make(map[int64]quiz.Letter, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	s.state = StateSubmitting
	return submission{trigger: trig, at: now, items: s.items, answers: answers}, nil
}

func (s *Session) finish(ctx context.Context, sub submission) (Outcome, error) {
	tally := grading.Grade(sub.items, sub.answers)
	r := quiz.Result{
		StudentID:      s.student.ID,
		QuizID:         s.quiz.ID,
		Score:          tally.Score,
		TotalQuestions: tally.Total,
		Answers:        tally.Record,
		TakenAt:        sub.at,
	}
	id, err := s.deps.Results.SaveResult(ctx, r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.state == StateSubmitting {
			s.state = StateActive
		}
		s.log.Warn("save result failed", zap.Error(err), zap.Stringer("trigger", sub.trigger))
		return Outcome{}, &StorageError{Op: "save result", Err: err}
	}
	r.ID = id
	out := Outcome{Result: r, Correct: tally.Correct, Total: tally.Total, Trigger: sub.trigger}
	s.outcome = &out
	if s.state == StateSubmitting {
		s.state = StateSubmitted
		s.finishLocked()
	}
	s.log.Info("attempt submitted",
		zap.Int64("result_id", id),
		zap.Float64("score", r.Score),
		zap.Int("correct", tally.Correct),
		zap.Int("total", tally.Total),
		zap.Stringer("trigger", sub.trigger),
	)
	return out, nil
}

// Close ends the session, e.g. when the student leaves. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = StateClosed
	s.finishLocked()
}

func (s *Session) rejectLocked(err error) {
	s.rejection = err
	s.state = StateRejected
	s.finishLocked()
}

func (s *Session) finishLocked() {
	s.finishedAt = s.deps.Clock.Now()
	close(s.done)
}

func (s *Session) remainingLocked(now time.Time) time.Duration {
	if !s.quiz.HasTimeLimit() || s.startedAt.IsZero() {
		return 0
	}
	elapsed := int64(now.Sub(s.startedAt) / time.Second)
	left := int64(*s.quiz.TimeLimitMin)*60 - elapsed
	if left < 0 {
		left = 0
	}
	return time.Duration(left) * time.Second
}

// View is a point-in-time copy of the session for display.
type View struct {
	ID        string
	State     State
	QuizID    int64
	StartedAt time.Time
	HasLimit  bool
	Remaining time.Duration
	Questions []quiz.Question
	Answers   map[int64]quiz.Letter
	Outcome   *Outcome
	Rejection string
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:        s.id,
		State:     s.state,
		QuizID:    s.quiz.ID,
		StartedAt: s.startedAt,
		HasLimit:  s.quiz.HasTimeLimit(),
		Remaining: s.remainingLocked(s.deps.Clock.Now()),
		Questions: append([]quiz.Question(nil), s.items...),
		Answers:   make(map[int64]quiz.Letter, len(s.answers)),
		Rejection: Reason(s.rejection),
	}
	for k, a := range s.answers {
		v.Answers[k] = a
	}
	if s.outcome != nil {
		o := *s.outcome
		v.Outcome = &o
	}
	return v
}

// FinishedAt is when the session became terminal, zero before that.
func (s *Session) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}
