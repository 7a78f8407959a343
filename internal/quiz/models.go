package quiz

import "time"

type Quiz struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TeacherID   int64  `json:"teacher_id"`
	CourseName  string `json:"course_name,omitempty"`

	// Deadline and TimeLimitMin are optional; nil means no constraint.
	Deadline     *time.Time `json:"deadline,omitempty"`
	TimeLimitMin *int       `json:"time_limit_min,omitempty"`

	// comma-separated names or "ALL"; blank is treated as "ALL"
	TargetStream    string `json:"target_stream"`
	TargetDivisions string `json:"target_divisions"`

	CreatedAt time.Time `json:"created_at"`
}

// HasTimeLimit reports whether the quiz carries a positive time limit.
func (q Quiz) HasTimeLimit() bool { return q.TimeLimitMin != nil && *q.TimeLimitMin > 0 }

// TimeLimit returns the limit as a duration, or 0 when there is none.
func (q Quiz) TimeLimit() time.Duration {
	if !q.HasTimeLimit() {
		return 0
	}
	return time.Duration(*q.TimeLimitMin) * time.Minute
}

// DeadlinePassed reports whether now is strictly after the deadline.
func (q Quiz) DeadlinePassed(now time.Time) bool {
	return q.Deadline != nil && now.After(*q.Deadline)
}

// CourseLabel is what student listings show in the course column.
func (q Quiz) CourseLabel() string {
	if q.CourseName != "" {
		return q.CourseName
	}
	return q.Title
}

type Question struct {
	ID      int64     `json:"id"`
	QuizID  int64     `json:"quiz_id"`
	Text    string    `json:"text"`
	Options [4]string `json:"options"` // A..D
	Correct Letter    `json:"correct,omitempty"`
}

// Option returns the text for letter l.
func (q Question) Option(l Letter) string {
	if !l.Valid() {
		return ""
	}
	return q.Options[l.Index()]
}

// Student is the subset of a user needed for eligibility.
type Student struct {
	ID       int64  `json:"id"`
	Stream   string `json:"stream"`
	Division string `json:"division"`
}

type Result struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"student_id"`
	QuizID         int64     `json:"quiz_id"`
	Score          float64   `json:"score"` // percentage 0..100
	TotalQuestions int       `json:"total_questions"`
	Answers        string    `json:"answers"`
	TakenAt        time.Time `json:"taken_at"`
}
