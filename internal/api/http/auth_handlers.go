package http

import (
	"net/http"
	"strings"

	auth "github.com/mind-engage/quizdesk/internal/auth/middleware"
	"github.com/mind-engage/quizdesk/internal/users"
)

type registerRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=64"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
	FullName   string `json:"full_name" validate:"required,max=128"`
	Role       string `json:"role" validate:"required,oneof=teacher student"`
	RollNumber string `json:"roll_number" validate:"max=32"`
	Stream     string `json:"stream" validate:"required_if=Role student,max=64"`
	Division   string `json:"division" validate:"required_if=Role student,max=16"`
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	User        users.User `json:"user"`
}

// POST /auth/register
func RegisterHandler(store users.Store, a *auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decode(w, r, &req) {
			return
		}
		u, err := store.Create(r.Context(), users.User{
			Username:   req.Username,
			FullName:   strings.TrimSpace(req.FullName),
			Role:       req.Role,
			RollNumber: strings.TrimSpace(req.RollNumber),
			Stream:     req.Stream,
			Division:   req.Division,
		}, req.Password)
		if err != nil {
			fail(w, err)
			return
		}
		tok, err := a.IssueJWT(u)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "issue token")
			return
		}
		writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: tok, User: u})
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /auth/login
func LoginHandler(store users.Store, a *auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decode(w, r, &req) {
			return
		}
		u, err := store.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			fail(w, err)
			return
		}
		tok, err := a.IssueJWT(u)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "issue token")
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: tok, User: u})
	}
}
