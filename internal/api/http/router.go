package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/attempt"
	auth "github.com/mind-engage/quizdesk/internal/auth/middleware"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/rbac"
	"github.com/mind-engage/quizdesk/internal/users"
)

type Server struct {
	Quizzes  quiz.Store
	Users    users.Store
	Attempts *attempt.Manager
	Auth     *auth.AuthService
	Feed     ResultFeed // nil disables the results stream
	Logger   *zap.Logger

	CORSOrigins    []string
	RequestTimeout time.Duration
	// Ready backs /readyz; nil always reports ready.
	Ready func(context.Context) error
	Now   func() time.Time
}

func (s *Server) Routes() chi.Router {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.Ready != nil {
			if err := s.Ready(r.Context()); err != nil {
				logger.Warn("not ready", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(pub chi.Router) {
		pub.Use(middleware.Timeout(timeout))
		pub.Post("/auth/register", RegisterHandler(s.Users, s.Auth))
		pub.Post("/auth/login", LoginHandler(s.Users, s.Auth))
	})

	// Protected API (JWT → stored user and role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(s.Auth), auth.AttachUser(s.Users, logger))

		// streams outlive the request timeout
		pr.With(rbac.Require(rbac.PermResultViewAll)).
			Get("/quizzes/{quizID}/results/stream", StreamQuizResultsHandler(s.Quizzes, s.Feed, logger))

		pr.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(timeout))

			// Student
			api.With(rbac.Require(rbac.PermQuizBrowse)).
				Get("/quizzes", ListEligibleQuizzesHandler(s.Quizzes, now))
			api.With(rbac.Require(rbac.PermAttemptCreate)).
				Post("/quizzes/{quizID}/attempts", StartAttemptHandler(s.Quizzes, s.Attempts))
			api.With(rbac.Require(rbac.PermAttemptViewOwn)).
				Get("/attempts/{attemptID}", GetAttemptHandler(s.Attempts))
			api.With(rbac.Require(rbac.PermAttemptSave)).
				Put("/attempts/{attemptID}/answers/{questionID}", SelectAnswerHandler(s.Attempts))
			api.With(rbac.Require(rbac.PermAttemptSave)).
				Delete("/attempts/{attemptID}/answers/{questionID}", ClearAnswerHandler(s.Attempts))
			api.With(rbac.Require(rbac.PermAttemptSubmit)).
				Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(s.Attempts))
			api.With(rbac.Require(rbac.PermAttemptSave)).
				Delete("/attempts/{attemptID}", CloseAttemptHandler(s.Attempts))
			api.With(rbac.Require(rbac.PermResultViewOwn)).
				Get("/results/mine", ListMyResultsHandler(s.Quizzes))

			// Teacher
			api.With(rbac.Require(rbac.PermQuizCreate)).
				Get("/quizzes/mine", ListMyQuizzesHandler(s.Quizzes))
			api.With(rbac.Require(rbac.PermQuizCreate)).
				Post("/quizzes", CreateQuizHandler(s.Quizzes))
			api.With(rbac.Require(rbac.PermQuizEditOwn)).
				Put("/quizzes/{quizID}", UpdateQuizHandler(s.Quizzes))
			api.With(rbac.Require(rbac.PermQuizDeleteOwn)).
				Delete("/quizzes/{quizID}", DeleteQuizHandler(s.Quizzes))
			api.With(rbac.Require(rbac.PermQuizEditOwn)).
				Post("/quizzes/{quizID}/questions", AddQuestionHandler(s.Quizzes))
			api.With(rbac.Require(rbac.PermQuizEditOwn)).
				Delete("/quizzes/{quizID}/questions/{questionID}", DeleteQuestionHandler(s.Quizzes))
			api.With(rbac.Require(rbac.PermResultViewAll)).
				Get("/quizzes/{quizID}/results", ListQuizResultsHandler(s.Quizzes, s.Users))
		})
	})

	return r
}
