package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/rbac"
	"github.com/mind-engage/quizdesk/internal/users"
)

// AttachUser loads the token subject from the store. The stored role is
// authoritative over the claim; a deleted account is refused.
func AttachUser(store users.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := SubjectID(ctx)
			if id == 0 {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			u, err := store.Get(ctx, id)
			switch {
			case err == nil:
				ctx = rbac.WithRole(WithUser(ctx, u), u.Role)
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, users.ErrNotFound):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				logger.Error("load user", zap.Int64("user_id", id), zap.Error(err))
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}
