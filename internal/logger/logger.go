// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ffrunner - FFmpeg 进程监管与进度解析工具

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type defaultLogger struct {
	log    *slog.Logger
	prefix string
}

// New returns a Logger writing to slog's default logger
func New(prefix string) Logger {
	return &defaultLogger{prefix: prefix}
}

// WithSlog returns a Logger writing to l
func WithSlog(l *slog.Logger, prefix string) Logger {
	return &defaultLogger{log: l, prefix: prefix}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.write(slog.LevelInfo, format, args)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.write(slog.LevelError, format, args)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.write(slog.LevelDebug, format, args)
}

func (l *defaultLogger) write(level slog.Level, format string, args []interface{}) {
	log := l.log
	if log == nil {
		log = slog.Default()
	}
	ctx := context.Background()
	if !log.Enabled(ctx, level) {
		return
	}
	log.Log(ctx, level, l.prefix+fmt.Sprintf(format, args...))
}

// NewSlog creates a structured logger writing to w. Format is "json" or
// "text", level one of "debug", "info", "warn" or "error".
func NewSlog(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name, unknown names yield info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopLogger struct{}

// Nop discards everything
func Nop() Logger { return nopLogger{} }

func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
func (nopLogger) Debug(format string, args ...interface{}) {}

type prefixLogger struct {
	logger Logger
	prefix string
}

// WithPrefix prepends prefix to every message written to l
func WithPrefix(l Logger, prefix string) Logger {
	return &prefixLogger{logger: l, prefix: prefix}
}

func (l *prefixLogger) Info(format string, args ...interface{}) {
	l.logger.Info(l.prefix+format, args...)
}

func (l *prefixLogger) Error(format string, args ...interface{}) {
	l.logger.Error(l.prefix+format, args...)
}

func (l *prefixLogger) Debug(format string, args ...interface{}) {
	l.logger.Debug(l.prefix+format, args...)
}
