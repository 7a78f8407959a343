package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type SQLStore struct {
	db   *sql.DB
	cost int
}

// NewSQLStore returns a users table store. cost <= 0 uses 12.
func NewSQLStore(dbh *sql.DB, cost int) *SQLStore {
	if cost <= 0 {
		cost = 12
	}
	return &SQLStore{db: dbh, cost: cost}
}

func (s *SQLStore) Create(ctx context.Context, u User, password string) (User, error) {
	if err := normalize(&u); err != nil {
		return User{}, err
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE username=$1`, u.Username).Scan(&exists)
	if err != nil {
		return User{}, err
	}
	if exists > 0 {
		return User{}, ErrUsernameTaken
	}
	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return User{}, err
	}
	u.CreatedAt = time.Now()
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username,password_hash,full_name,role,roll_number,stream,division,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		u.Username, string(hash), u.FullName, u.Role, u.RollNumber, u.Stream, u.Division, u.CreatedAt.Unix(),
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}
	return u, nil
}

const userColumns = `id,username,full_name,role,roll_number,stream,division,created_at`

func scanUser(row interface{ Scan(...any) error }, extra ...any) (User, error) {
	var (
		u       User
		created int64
	)
	dest := append([]any{&u.ID, &u.Username, &u.FullName, &u.Role, &u.RollNumber, &u.Stream, &u.Division, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return User{}, err
	}
	u.CreatedAt = time.Unix(created, 0)
	return u, nil
}

func (s *SQLStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	var hash string
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`,password_hash FROM users WHERE username=$1`, strings.TrimSpace(username)), &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
