package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/quizdesk/internal/attempt"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/users"
)

var validate = validator.New()

type errorBody struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// decode reads a JSON body into dst and runs struct validation.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, "invalid input")
			return false
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fields})
		return false
	}
	return true
}

// fail maps domain errors onto HTTP statuses.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, attempt.ErrNotEligible):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "rejected", Reason: attempt.Reason(err)})
	case errors.Is(err, attempt.ErrRejected):
		writeJSON(w, http.StatusConflict, errorBody{Error: "rejected", Reason: attempt.Reason(err)})
	case attempt.IsStorageFault(err):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Reason: "storage unavailable, try again"})
	case errors.Is(err, quiz.ErrNotFound), errors.Is(err, attempt.ErrAttemptNotFound),
		errors.Is(err, users.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, quiz.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, attempt.ErrNotActive), errors.Is(err, attempt.ErrSubmitInProgress),
		errors.Is(err, attempt.ErrClosed), errors.Is(err, attempt.ErrAttemptExists),
		errors.Is(err, users.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, quiz.ErrInvalidLetter), errors.Is(err, attempt.ErrUnknownQuestion),
		errors.Is(err, users.ErrInvalidRole), errors.Is(err, users.ErrPasswordTooLong),
		errors.Is(err, errBadInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

var errBadInput = errors.New("bad input")

func pathID(r *http.Request, v string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, v), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadInput
	}
	return id, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
