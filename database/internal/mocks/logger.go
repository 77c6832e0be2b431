// Package mocks provides shared test doubles for the database packages.
package mocks

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/gaborage/go-datasource/logger"
)

// Entry is one event captured by Logger.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]any
	Err     error
}

// Logger implements logger.Logger and records every sent event. The zero value is ready
// to use; loggers derived through WithFields share the parent's entries.
type Logger struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  map[string]any
}

var (
	_ logger.Logger   = (*Logger)(nil)
	_ logger.LogEvent = (*LogEvent)(nil)
)

// NewLogger returns an empty recording logger.
func NewLogger() *Logger {
	return &Logger{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (l *Logger) init() {
	if l.mu == nil {
		l.mu = &sync.Mutex{}
		l.entries = &[]Entry{}
	}
}

func (l *Logger) Info() logger.LogEvent  { return l.event("info") }
func (l *Logger) Error() logger.LogEvent { return l.event("error") }
func (l *Logger) Debug() logger.LogEvent { return l.event("debug") }
func (l *Logger) Warn() logger.LogEvent  { return l.event("warn") }

// WithContext returns l unchanged.
func (l *Logger) WithContext(_ any) logger.Logger { return l }

// WithFields returns a child logger that adds fields to every event.
func (l *Logger) WithFields(fields map[string]any) logger.Logger {
	l.init()
	merged := maps.Clone(l.fields)
	if merged == nil {
		merged = make(map[string]any, len(fields))
	}
	maps.Copy(merged, fields)
	return &Logger{mu: l.mu, entries: l.entries, fields: merged}
}

// Entries returns a snapshot of the recorded events.
func (l *Logger) Entries() []Entry {
	l.init()
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), (*l.entries)...)
}

// Last returns the most recent event, or false when nothing was logged.
func (l *Logger) Last() (Entry, bool) {
	entries := l.Entries()
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

func (l *Logger) event(level string) logger.LogEvent {
	l.init()
	return &LogEvent{owner: l, entry: Entry{Level: level, Fields: maps.Clone(l.fields)}}
}

// LogEvent accumulates fields until Msg or Msgf records it.
type LogEvent struct {
	owner *Logger
	entry Entry
}

func (e *LogEvent) set(key string, v any) logger.LogEvent {
	if e.entry.Fields == nil {
		e.entry.Fields = make(map[string]any)
	}
	e.entry.Fields[key] = v
	return e
}

func (e *LogEvent) Str(key, value string) logger.LogEvent           { return e.set(key, value) }
func (e *LogEvent) Int(key string, value int) logger.LogEvent       { return e.set(key, value) }
func (e *LogEvent) Int64(key string, value int64) logger.LogEvent   { return e.set(key, value) }
func (e *LogEvent) Bool(key string, value bool) logger.LogEvent     { return e.set(key, value) }
func (e *LogEvent) Dur(key string, d time.Duration) logger.LogEvent { return e.set(key, d) }
func (e *LogEvent) Interface(key string, i any) logger.LogEvent     { return e.set(key, i) }

func (e *LogEvent) Err(err error) logger.LogEvent {
	e.entry.Err = err
	return e
}

func (e *LogEvent) Msg(msg string) {
	e.entry.Message = msg
	e.owner.mu.Lock()
	defer e.owner.mu.Unlock()
	*e.owner.entries = append(*e.owner.entries, e.entry)
}

func (e *LogEvent) Msgf(format string, args ...any) {
	e.Msg(fmt.Sprintf(format, args...))
}
