package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	api "github.com/mind-engage/quizdesk/internal/api/http"
	"github.com/mind-engage/quizdesk/internal/attempt"
	auth "github.com/mind-engage/quizdesk/internal/auth/middleware"
	"github.com/mind-engage/quizdesk/internal/config"
	"github.com/mind-engage/quizdesk/internal/db"
	"github.com/mind-engage/quizdesk/internal/eventlog"
	"github.com/mind-engage/quizdesk/internal/notify"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/users"
)

const devSecret = "supersecret-dev-key"

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if cfg.AuthSecret == devSecret && cfg.Mode == config.ModeOnline {
		logger.Fatal("AUTH_HMAC_SECRET must be set in online mode")
	}

	// --- Storage ---
	var (
		quizzes quiz.Store
		people  users.Store
		events  *eventlog.Repo
		ready   func(context.Context) error
	)
	if strings.EqualFold(cfg.DBDriver, "memory") {
		quizzes = quiz.NewInMemoryStore()
		people = users.NewInMemoryStore()
		logger.Warn("using in-memory storage; data is lost on restart")
	} else {
		driver, err := db.ParseDriver(cfg.DBDriver)
		if err != nil {
			logger.Fatal("db driver", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		dbh, err := db.Open(ctx, driver, cfg.DBDSN)
		cancel()
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer dbh.Close()
		quizzes = quiz.NewSQLStore(dbh)
		people = users.NewSQLStore(dbh, 0)
		events = eventlog.NewRepo(dbh)
		ready = pinger(dbh)
	}

	// --- Result notifications ---
	pub := notify.Nop()
	var feed api.ResultFeed
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rp, err := notify.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		cancel()
		if err != nil {
			// results are still recorded; only the live feed is lost
			logger.Warn("redis unavailable, result notifications disabled", zap.Error(err))
		} else {
			pub, feed = rp, rp
		}
	}
	defer pub.Close()

	runCtx, stopBackground := context.WithCancel(context.Background())
	var background sync.WaitGroup

	// With a database, results reach subscribers through the event log so a
	// crash between commit and publish loses nothing.
	var results quiz.ResultSink = notify.NewSink(quizzes, pub, logger)
	if events != nil {
		results = quizzes
		if feed != nil {
			relay := notify.NewRelay(events, pub, time.Second, logger)
			background.Add(1)
			go func() {
				defer background.Done()
				if err := relay.Run(runCtx); err != nil {
					logger.Error("result relay stopped", zap.Error(err))
				}
			}()
		}
	}

	// --- Attempts ---
	manager := attempt.NewManager(attempt.Deps{
		Questions: quizzes,
		Results:   results,
		Logger:    logger,
	},
		attempt.WithTickInterval(cfg.AttemptTick),
		attempt.WithRetention(cfg.AttemptRetention),
	)
	background.Add(1)
	go func() {
		defer background.Done()
		manager.Run(runCtx)
	}()

	// --- HTTP ---
	server := &api.Server{
		Quizzes:     quizzes,
		Users:       people,
		Attempts:    manager,
		Auth:        auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
		Feed:        feed,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		Ready:       ready,
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver),
			zap.Bool("notifications", feed != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	stopBackground()
	background.Wait()
	logger.Info("server stopped")
}

func pinger(dbh *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error { return dbh.PingContext(ctx) }
}

func newLogger(cfg config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	if cfg.Development() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
