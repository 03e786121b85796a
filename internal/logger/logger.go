// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a logger writing to w.  Production environments get JSON
// output at info level; everything else gets text at debug level.
// LOG_LEVEL overrides the level when set.
func New(env string, w io.Writer) *slog.Logger {
	level := slog.LevelDebug
	if isProd(env) {
		level = slog.LevelInfo
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		_ = level.UnmarshalText([]byte(v))
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if isProd(env) {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Init builds a stdout logger for env and installs it as the slog default.
func Init(env string) *slog.Logger {
	l := New(env, os.Stdout)
	slog.SetDefault(l)
	return l
}

func isProd(env string) bool {
	env = strings.ToLower(env)
	return env == "prod" || env == "production"
}
