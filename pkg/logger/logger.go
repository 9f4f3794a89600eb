// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger provides the process-wide structured logger used by every
// skillhive package: a singleton atomic.Pointer holding one
// *slog.Logger, initialized once at process start, swapped only by
// tests.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// EnvReader abstracts environment variable lookups so format selection can
// be unit tested without mutating the real process environment.
type EnvReader interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newLogger(osEnv{}))
}

// Initialize (re)configures the singleton logger from the real process
// environment. The CLI calls this once in its root command's
// PersistentPreRun.
func Initialize() {
	InitializeWithEnv(osEnv{})
}

// InitializeWithEnv configures the singleton logger using the supplied
// EnvReader, allowing tests to control UNSTRUCTURED_LOGS deterministically.
func InitializeWithEnv(env EnvReader) {
	singleton.Store(newLogger(env))
}

// Get returns the current singleton logger.
func Get() *slog.Logger {
	return singleton.Load()
}

func newLogger(env EnvReader) *slog.Logger {
	level := slog.LevelInfo
	if unstructuredLogsWithEnv(env) {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// unstructuredLogsWithEnv reports whether UNSTRUCTURED_LOGS selects the
// human-readable text handler. It defaults to true (unstructured) unless the
// variable is explicitly set to "false"; any unparsable value also defaults
// to true.
func unstructuredLogsWithEnv(env EnvReader) bool {
	v := env.Getenv("UNSTRUCTURED_LOGS")
	if v == "" {
		return true
	}
	return v != "false"
}

// Debug logs at debug level.
func Debug(msg string) { Get().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { Get().Debug(sprintf(format, args...)) }

// Debugw logs a message with structured key/value pairs at debug level.
func Debugw(msg string, kv ...any) { Get().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { Get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { Get().Info(sprintf(format, args...)) }

// Infow logs a message with structured key/value pairs at info level.
func Infow(msg string, kv ...any) { Get().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { Get().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { Get().Warn(sprintf(format, args...)) }

// Warnw logs a message with structured key/value pairs at warn level.
func Warnw(msg string, kv ...any) { Get().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { Get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { Get().Error(sprintf(format, args...)) }

// Errorw logs a message with structured key/value pairs at error level.
func Errorw(msg string, kv ...any) { Get().Error(msg, kv...) }

// DPanic logs at error level then panics (debug-panic: promoted to a hard
// failure so bugs surface loudly in development).
func DPanic(msg string) { Get().Error(msg); panic(msg) }

// DPanicf logs a formatted message at error level then panics.
func DPanicf(format string, args ...any) {
	m := sprintf(format, args...)
	Get().Error(m)
	panic(m)
}

// DPanicw logs a message with key/value pairs at error level then panics.
func DPanicw(msg string, kv ...any) {
	Get().Error(msg, kv...)
	panic(msg)
}

// Panic logs at error level then panics.
func Panic(msg string) { Get().Error(msg); panic(msg) }

// Panicf logs a formatted message at error level then panics.
func Panicf(format string, args ...any) {
	m := sprintf(format, args...)
	Get().Error(m)
	panic(m)
}

// Panicw logs a message with key/value pairs at error level then panics.
func Panicw(msg string, kv ...any) {
	Get().Error(msg, kv...)
	panic(msg)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
