// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package rawlog is a minimal structured logger for rawfile: a parser
// library has no business picking stdout vs a file vs syslog for its
// caller, so it logs through a small interface the caller can implement
// (or filter, or swap for /dev/null in a test), the same "Logger caller
// provides, Helper wraps" shape the teacher's own PE parser uses.
package rawlog

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the sink every log line is written through. keyvals is an
// alternating key/value list, e.g. Log(LevelWarn, "component", "RunHeader",
// "offset", 128).
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes one line per call to w, in "LEVEL ts key=value ..."
// form.
type stdLogger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdLogger returns a Logger that writes plain text lines to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s %s", level, time.Now().UTC().Format(time.RFC3339))
	for i := 0; i+1 < len(keyvals); i += 2 {
		line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	if len(keyvals)%2 == 1 {
		line += fmt.Sprintf(" %v", keyvals[len(keyvals)-1])
	}
	_, err := fmt.Fprintln(l.w, line)
	return err
}

// levelFilter drops any Log call below a configured level before
// forwarding to the wrapped Logger.
type levelFilter struct {
	next  Logger
	level Level
}

// NewFilter wraps logger so that only calls at or above level reach it.
func NewFilter(logger Logger, level Level) Logger {
	return &levelFilter{next: logger, level: level}
}

func (f *levelFilter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.next.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods over a Logger, matching
// the call shape used throughout the parsing pipeline
// (logger.Warnf("...", args...)).
type Helper struct {
	logger Logger
}

// NewHelper wraps logger with printf-style level methods.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, "msg", fmt.Sprintf(format, args...))
}

func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, format, args...) }
func (h *Helper) Infof(format string, args ...interface{})  { h.log(LevelInfo, format, args...) }
func (h *Helper) Warnf(format string, args ...interface{})  { h.log(LevelWarn, format, args...) }
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, format, args...) }
