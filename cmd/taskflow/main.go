// Command taskflow is a terminal client for the TaskFlow API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/taskflow/taskflow-go/internal/client/transport"
	"github.com/taskflow/taskflow-go/internal/logger"
)

func main() {
	_ = godotenv.Load()

	env, err := envFromOS()
	if err != nil {
		fmt.Fprintln(os.Stderr, "taskflow:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], env, os.Stdout, os.Stderr))
}

func envFromOS() (Env, error) {
	env := Env{
		BaseURL: getEnv("TASKFLOW_API_URL", "http://localhost:5000"),
		Timeout: transport.DefaultTimeout,
		Dir:     os.Getenv("TASKFLOW_HOME"),
		Log:     logger.Config{Level: getEnv("TASKFLOW_LOG_LEVEL", "warn"), Dev: true},
	}

	if v := os.Getenv("TASKFLOW_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Env{}, fmt.Errorf("invalid TASKFLOW_TIMEOUT %q", v)
		}
		env.Timeout = d
	}

	if env.Dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Env{}, fmt.Errorf("locate config dir: %w", err)
		}
		env.Dir = filepath.Join(base, "taskflow")
	}
	return env, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
