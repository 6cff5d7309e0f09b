package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/config"
	"github.com/taskflow/taskflow-go/internal/crypto"
	"github.com/taskflow/taskflow-go/internal/handler"
	"github.com/taskflow/taskflow-go/internal/logger"
	"github.com/taskflow/taskflow-go/internal/mail"
	"github.com/taskflow/taskflow-go/internal/middleware"
	"github.com/taskflow/taskflow-go/internal/repository"
	"github.com/taskflow/taskflow-go/internal/service"
)

const (
	globalLimit  = 100
	globalWindow = 15 * time.Minute
	authLimit    = 10
	authWindow   = time.Hour
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(logger.FromConfig(cfg.Log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Info("no .env file found, using environment variables")
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx := context.Background()

	ids, err := repository.NewIDGenerator(cfg.SnowflakeNode)
	if err != nil {
		return fmt.Errorf("id generator: %w", err)
	}

	users, todos, closeDB, err := openStores(ctx, cfg, ids, log)
	if err != nil {
		return err
	}
	defer closeDB()

	tokens, err := crypto.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	mailer, err := newMailer(cfg, log)
	if err != nil {
		return err
	}

	globalLimiter, authLimiter := newLimiters(ctx, cfg, log)

	development := cfg.IsDevelopment()
	cookies := handler.NewCookieManager(!development)

	authService := service.NewAuthService(users, tokens, mailer, cfg.ClientURL, log)
	todoService := service.NewTodoService(todos)

	router := handler.NewRouter(handler.RouterConfig{
		Auth:          handler.NewAuthHandler(authService, cookies, log, development),
		Todos:         handler.NewTodoHandler(todoService, log, development),
		Tokens:        tokens,
		Log:           log,
		GlobalLimiter: globalLimiter,
		AuthLimiter:   authLimiter,
		ClientURL:     cfg.ClientURL,
		TrustProxy:    cfg.TrustProxy,
		Development:   development,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env), zap.String("db_driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, ids *repository.IDGenerator, log *zap.Logger) (service.UserStore, service.TodoStore, func(), error) {
	if cfg.DBDriver == "memory" {
		log.Warn("using in-memory storage, data is lost on restart")
		return repository.NewMemoryUserRepository(ids), repository.NewMemoryTodoRepository(ids), func() {}, nil
	}

	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database: %w", err)
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("schema: %w", err)
	}
	log.Info("database connected", zap.String("driver", cfg.DBDriver))

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}
	return repository.NewUserRepository(db, ids), repository.NewTodoRepository(db, ids), closeDB, nil
}

func newMailer(cfg config.Config, log *zap.Logger) (service.Mailer, error) {
	if cfg.SMTP.Host == "" {
		log.Warn("SMTP_HOST not set, password reset links are only logged")
		return mail.NewLogMailer(log), nil
	}
	m, err := mail.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	return m, nil
}

// newLimiters shares counters through Redis when it is reachable so limits
// hold across replicas.
func newLimiters(ctx context.Context, cfg config.Config, log *zap.Logger) (middleware.Limiter, middleware.Limiter) {
	if cfg.RedisAddr != "" {
		client, err := middleware.NewRedisClient(ctx, cfg.RedisAddr)
		if err == nil {
			log.Info("rate limiting backed by redis", zap.String("addr", cfg.RedisAddr))
			return middleware.NewRedisLimiter(client, "global", globalLimit, globalWindow),
				middleware.NewRedisLimiter(client, "auth", authLimit, authWindow)
		}
		log.Warn("redis unavailable, falling back to in-process rate limiting", zap.Error(err))
	}
	return middleware.NewMemoryLimiter(globalLimit, globalWindow),
		middleware.NewMemoryLimiter(authLimit, authWindow)
}
