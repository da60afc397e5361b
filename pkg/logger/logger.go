// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger configures the process-wide slog default logger: a
// terminal-aware colored or plain text handler, and a filter that
// quiets third-party library logging below DEBUG so an operator
// watching INFO-level output sees only this gateway's own log lines.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

var defaultLogger *slog.Logger

// modulePath identifies this module's own call sites to the filtering
// handler below, distinguishing them from logs emitted by an imported
// third-party library that also happens to use slog.
const modulePath = "github.com/kadirpekel/docgateway"

// ParseLevel converts a string log level ("debug", "info", "warn" or
// "warning", "error") to an slog.Level. An unrecognized or empty string
// maps to warn, matching the teacher's convention of defaulting to the
// quieter level rather than erroring on a bad flag.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// filteringHandler wraps a slog handler and drops log records whose
// caller is outside modulePrefix, unless minLevel is DEBUG (in which
// case everything passes through, including chatty dependencies).
type filteringHandler struct {
	handler      slog.Handler
	minLevel     slog.Level
	modulePrefix string
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	// The caller-package check needs the record's PC, which Enabled does
	// not receive; Enabled stays permissive and Handle does the filtering.
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug {
		return h.handler.Handle(ctx, record)
	}
	if h.isOwnModule(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{
		handler:      h.handler.WithAttrs(attrs),
		minLevel:     h.minLevel,
		modulePrefix: h.modulePrefix,
	}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{
		handler:      h.handler.WithGroup(name),
		minLevel:     h.minLevel,
		modulePrefix: h.modulePrefix,
	}
}

// isOwnModule reports whether pc's function belongs to this module,
// checked against both the fully-qualified function name and the
// source file path (a vendored or generated file can carry the import
// path in its directory structure without it appearing in the function
// name).
func (h *filteringHandler) isOwnModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}

	fullName := fn.Name()
	file, _ := fn.FileLine(pc)

	prefix := h.modulePrefix
	if prefix == "" {
		prefix = modulePath
	}
	return strings.Contains(fullName, prefix) || strings.Contains(file, prefix)
}

// getLevelColor returns the ANSI color code used for level in terminal output.
func getLevelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m" // red
	case level >= slog.LevelWarn:
		return "\033[33m" // yellow
	case level >= slog.LevelInfo:
		return "\033[36m" // cyan
	default:
		return "\033[90m" // gray
	}
}

func isTerminal(file *os.File) bool {
	if info, err := file.Stat(); err == nil {
		return (info.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// coloredTextHandler renders records as colored plain text rather than
// going through slog.TextHandler's key=value formatting, since a
// terminal operator reading a live tail cares about level and message,
// not a parseable line.
type coloredTextHandler struct {
	handler  slog.Handler
	writer   io.Writer
	useColor bool
	simple   bool // simple: level + message only; otherwise time + level + message
}

func (h *coloredTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *coloredTextHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.useColor {
		return h.handler.Handle(ctx, record)
	}

	colorCode := getLevelColor(record.Level)
	resetCode := "\033[0m"

	var buf strings.Builder
	if !h.simple && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	levelStr := normalizeLevelString(record.Level)
	buf.WriteString(colorCode)
	buf.WriteString(levelStr)
	buf.WriteString(resetCode)
	buf.WriteString(" ")
	buf.WriteString(record.Message)
	writeAttrs(&buf, record)
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *coloredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &coloredTextHandler{
		handler:  h.handler.WithAttrs(attrs),
		writer:   h.writer,
		useColor: h.useColor,
		simple:   h.simple,
	}
}

func (h *coloredTextHandler) WithGroup(name string) slog.Handler {
	return &coloredTextHandler{
		handler:  h.handler.WithGroup(name),
		writer:   h.writer,
		useColor: h.useColor,
		simple:   h.simple,
	}
}

// normalizeLevelString upper-cases a level's name and shortens slog's
// "WARNING" to the conventional four-letter "WARN".
func normalizeLevelString(level slog.Level) string {
	s := strings.ToUpper(level.String())
	if s == "WARNING" {
		return "WARN"
	}
	return s
}

func writeAttrs(buf *strings.Builder, record slog.Record) {
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
}

// Init installs the process-wide default logger. format selects
// "simple" (level + message, the default), "verbose" (adds a
// timestamp), or any other value to fall back to slog's own text
// format. Color is enabled automatically when output is a terminal;
// regardless of format, log lines from third-party libraries are
// dropped at every level unless level is DEBUG, so operator-facing
// output stays on this gateway's own events.
func Init(level slog.Level, output *os.File, format string) {
	useColor := isTerminal(output)
	simple := format == "simple" || format == ""
	verbose := format == "verbose"

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String("level", "WARN")
			}
			return a
		},
	}

	baseHandler := slog.NewTextHandler(output, opts)

	var handler slog.Handler = baseHandler
	switch {
	case useColor && (simple || verbose):
		handler = &coloredTextHandler{handler: baseHandler, writer: output, useColor: true, simple: simple}
	case !useColor && simple:
		handler = &simpleTextHandler{handler: baseHandler, writer: output}
	}

	defaultLogger = slog.New(&filteringHandler{handler: handler, minLevel: level, modulePrefix: modulePath})
	slog.SetDefault(defaultLogger)
}

// simpleTextHandler renders level + message only, for non-terminal
// output where ANSI color codes would just be noise in a log file.
type simpleTextHandler struct {
	handler slog.Handler
	writer  io.Writer
}

func (h *simpleTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *simpleTextHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder
	buf.WriteString(normalizeLevelString(record.Level))
	buf.WriteString(" ")
	buf.WriteString(record.Message)
	writeAttrs(&buf, record)
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *simpleTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &simpleTextHandler{handler: h.handler.WithAttrs(attrs), writer: h.writer}
}

func (h *simpleTextHandler) WithGroup(name string) slog.Handler {
	return &simpleTextHandler{handler: h.handler.WithGroup(name), writer: h.writer}
}

// OpenLogFile opens path for append, creating it if necessary, and
// returns a cleanup closure that closes it.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

// GetLogger returns the process-wide default logger, initializing it
// with INFO level and simple format on first use if Init was never
// called explicitly.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
