package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/quizdesk/internal/db"
	"github.com/mind-engage/quizdesk/internal/eventlog"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

const quizColumns = `id,title,description,teacher_id,course_name,deadline,time_limit_min,target_stream,target_divisions,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row rowScanner) (Quiz, error) {
	var (
		q        Quiz
		deadline sql.NullInt64
		limit    sql.NullInt64
		created  int64
	)
	if err := row.Scan(&q.ID, &q.Title, &q.Description, &q.TeacherID, &q.CourseName,
		&deadline, &limit, &q.TargetStream, &q.TargetDivisions, &created); err != nil {
		return Quiz{}, err
	}
	if deadline.Valid {
		t := time.Unix(deadline.Int64, 0)
		q.Deadline = &t
	}
	if limit.Valid {
		n := int(limit.Int64)
		q.TimeLimitMin = &n
	}
	q.CreatedAt = time.Unix(created, 0)
	return q, nil
}

func nullableDeadline(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullableLimit(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func normalizeTargets(q *Quiz) {
	q.TargetStream = ParseTargets(q.TargetStream).String()
	q.TargetDivisions = ParseTargets(q.TargetDivisions).String()
}

func (s *SQLStore) CreateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	normalizeTargets(&q)
	q.CreatedAt = time.Now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO quizzes (title,description,teacher_id,course_name,deadline,time_limit_min,target_stream,target_divisions,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		q.Title, q.Description, q.TeacherID, q.CourseName, nullableDeadline(q.Deadline),
		nullableLimit(q.TimeLimitMin), q.TargetStream, q.TargetDivisions, q.CreatedAt.Unix(),
	).Scan(&q.ID)
	if err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	normalizeTargets(&q)
	res, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET title=$1, description=$2, course_name=$3, deadline=$4, time_limit_min=$5,
		target_stream=$6, target_divisions=$7 WHERE id=$8`,
		q.Title, q.Description, q.CourseName, nullableDeadline(q.Deadline), nullableLimit(q.TimeLimitMin),
		q.TargetStream, q.TargetDivisions, q.ID)
	if err != nil {
		return Quiz{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Quiz{}, ErrNotFound
	}
	return s.GetQuiz(ctx, q.ID)
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// explicit child deletes; postgres and sqlite both cascade, but
		// sqlite only does so with foreign_keys enabled on the connection
		for _, stmt := range []string{
			`DELETE FROM results WHERE quiz_id=$1`,
			`DELETE FROM questions WHERE quiz_id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLStore) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	q, err := scanQuiz(s.db.QueryRowContext(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]Quiz, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.TeacherID != 0 {
		where = append(where, "teacher_id="+arg(opts.TeacherID))
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		p := arg("%" + strings.ToLower(q) + "%")
		where = append(where, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", p, p))
	}
	query := `SELECT ` + quizColumns + ` FROM quizzes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit) + " OFFSET " + arg(opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) AddQuestion(ctx context.Context, q Question) (Question, error) {
	if !q.Correct.Valid() {
		return Question{}, ErrInvalidLetter
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO questions (quiz_id,question_text,option_a,option_b,option_c,option_d,correct_option)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		q.QuizID, q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.Correct.String(),
	).Scan(&q.ID)
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, quizID, questionID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1 AND quiz_id=$2`, questionID, quizID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, quizID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,question_text,option_a,option_b,option_c,option_d,correct_option
		FROM questions WHERE quiz_id=$1 ORDER BY id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var (
			q       Question
			correct string
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &correct); err != nil {
			return nil, err
		}
		if q.Correct, err = ParseLetter(correct); err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SaveResult inserts the result and its ResultRecorded event atomically.
func (s *SQLStore) SaveResult(ctx context.Context, r Result) (int64, error) {
	if r.TakenAt.IsZero() {
		r.TakenAt = time.Now()
	}
	var id int64
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO results (student_id,quiz_id,score,total_questions,answers,taken_at)
			VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			r.StudentID, r.QuizID, r.Score, r.TotalQuestions, r.Answers, r.TakenAt.Unix(),
		).Scan(&id); err != nil {
			return err
		}
		r.ID = id
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return eventlog.Append(ctx, tx, eventlog.Event{
			Type:     eventlog.TypeResultRecorded,
			Key:      strconv.FormatInt(id, 10),
			DataJSON: string(data),
		})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLStore) ListResultsByStudent(ctx context.Context, studentID int64) ([]Result, error) {
	return s.listResults(ctx, `student_id=$1`, studentID)
}

func (s *SQLStore) ListResultsByQuiz(ctx context.Context, quizID int64) ([]Result, error) {
	return s.listResults(ctx, `quiz_id=$1`, quizID)
}

func (s *SQLStore) listResults(ctx context.Context, cond string, arg any) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,student_id,quiz_id,score,total_questions,answers,taken_at
		FROM results WHERE `+cond+` ORDER BY taken_at DESC, id DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var (
			r     Result
			taken int64
		)
		if err := rows.Scan(&r.ID, &r.StudentID, &r.QuizID, &r.Score, &r.TotalQuestions, &r.Answers, &taken); err != nil {
			return nil, err
		}
		r.TakenAt = time.Unix(taken, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
