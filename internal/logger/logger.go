// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a slog.Logger that writes human-readable text records.
type Logger struct {
	*slog.Logger
}

// RotateOptions control the rotation of a file based log output.
type RotateOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a Logger writing to stderr with the given minimum level.
func New(level slog.Level) *Logger {
	return NewLogger(level)
}

// NewLogger returns a Logger with the given minimum level writing to all given writers.
// Without writers, the log is written to stderr.
func NewLogger(level slog.Level, writers ...io.Writer) *Logger {
	var output io.Writer = os.Stderr
	switch len(writers) {
	case 0:
	case 1:
		output = writers[0]
	default:
		output = io.MultiWriter(writers...)
	}
	return &Logger{slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))}
}

// NewFileLogger returns a Logger that writes into a size-rotated log file at path.
func NewFileLogger(level slog.Level, path string, opts RotateOptions) *Logger {
	return NewLogger(level, FileWriter(path, opts))
}

// FileWriter returns a rotating io.WriteCloser for the log file at path.
func FileWriter(path string, opts RotateOptions) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
}

// Err returns the slog attribute for an error.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
