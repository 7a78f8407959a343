package auth

import (
	"context"
	"strconv"

	"github.com/mind-engage/quizdesk/internal/users"
)

type ctxKey string

const (
	ctxKeySub  ctxKey = "sub"
	ctxKeyUser ctxKey = "user"
)

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySub); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SubjectID is the numeric user id of the subject, 0 when absent.
func SubjectID(ctx context.Context) int64 {
	id, err := strconv.ParseInt(SubjectFromContext(ctx), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func WithUser(ctx context.Context, u users.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

func UserFromContext(ctx context.Context) (users.User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(users.User)
	return u, ok
}
