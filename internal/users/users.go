package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidRole        = errors.New("role must be teacher or student")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	RollNumber string    `json:"roll_number,omitempty"`
	Stream     string    `json:"stream,omitempty"`
	Division   string    `json:"division,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func ValidRole(r string) bool { return r == RoleTeacher || r == RoleStudent }

// Student is the targeting view of u.
func (u User) Student() quiz.Student {
	return quiz.Student{ID: u.ID, Stream: u.Stream, Division: u.Division}
}

// Label renders Roll_Name_STREAM_Division for result listings.
func (u User) Label() string {
	return strings.Join([]string{u.RollNumber, u.FullName, quiz.StreamAbbr(u.Stream), u.Division}, "_")
}

type Store interface {
	// Create hashes password and inserts u. Usernames are unique.
	Create(ctx context.Context, u User, password string) (User, error)
	Authenticate(ctx context.Context, username, password string) (User, error)
	Get(ctx context.Context, id int64) (User, error)
}

func normalize(u *User) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Role = strings.ToLower(strings.TrimSpace(u.Role))
	u.Stream = strings.TrimSpace(u.Stream)
	u.Division = strings.TrimSpace(u.Division)
	if !ValidRole(u.Role) {
		return ErrInvalidRole
	}
	return nil
}

func hashPassword(password string, cost int) ([]byte, error) {
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}
