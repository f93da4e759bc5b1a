// Package trace persists the simulation trace as JSONL and optionally
// streams entries to an HTTP endpoint from a bounded queue.
package trace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Version is the trace schema version written on every entry.
const Version = 1

// Entry is one trace record, either a tool call or a delivered event.
type Entry struct {
	TraceVersion int            `json:"trace_version"`
	Type         string         `json:"type"` // "call" or "event"
	TimeMS       int64          `json:"time_ms"`
	Tool         string         `json:"tool,omitempty"`
	Args         map[string]any `json:"args,omitempty"`
	Response     any            `json:"response,omitempty"`
	Target       string         `json:"target,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Emitted      *bool          `json:"emitted,omitempty"`
}

// Logger buffers trace entries and appends them to trace.jsonl on Flush.
// An empty dir disables file output; entries are still kept for listeners
// and the streamer.
type Logger struct {
	mu        sync.Mutex
	path      string
	pending   []Entry
	streamer  *Streamer
	listeners map[int]func([]byte)
	nextID    int
}

// NewLogger creates a Logger writing to dir/trace.jsonl ("" = no file).
func NewLogger(dir string) *Logger {
	l := &Logger{listeners: map[int]func([]byte){}}
	if dir != "" {
		l.path = filepath.Join(dir, "trace.jsonl")
	}
	return l
}

// SetStreamer attaches a background streamer fed on every Flush.
func (l *Logger) SetStreamer(s *Streamer) {
	l.mu.Lock()
	l.streamer = s
	l.mu.Unlock()
}

// Subscribe registers a listener for flushed trace lines. Returns an
// unsubscribe function.
func (l *Logger) Subscribe(fn func([]byte)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

// RecordCall buffers a call entry.
func (l *Logger) RecordCall(tool string, args map[string]any, response any, timeMS int64) {
	l.mu.Lock()
	l.pending = append(l.pending, Entry{
		TraceVersion: Version,
		Type:         "call",
		TimeMS:       timeMS,
		Tool:         tool,
		Args:         args,
		Response:     response,
	})
	l.mu.Unlock()
}

// RecordEvent buffers a delivered-event entry.
func (l *Logger) RecordEvent(target string, payload map[string]any, emitted bool, timeMS int64) {
	e := emitted
	l.mu.Lock()
	l.pending = append(l.pending, Entry{
		TraceVersion: Version,
		Type:         "event",
		TimeMS:       timeMS,
		Target:       target,
		Payload:      payload,
		Emitted:      &e,
	})
	l.mu.Unlock()
}

// Flush writes all buffered entries in append order. File writes are
// best-effort; a failed write never propagates.
func (l *Logger) Flush() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	streamer := l.streamer
	listeners := make([]func([]byte), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	path := l.path
	l.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	var lines [][]byte
	for _, e := range batch {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		lines = append(lines, data)
	}

	if path != "" {
		writeLines(path, lines)
	}
	for _, line := range lines {
		if streamer != nil {
			streamer.Enqueue(line)
		}
		for _, fn := range listeners {
			fn(line)
		}
	}
}

func writeLines(path string, lines [][]byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	for _, line := range lines {
		_, _ = f.Write(append(line, '\n'))
	}
}

// Close flushes pending entries and shuts down the streamer, if any.
func (l *Logger) Close() {
	l.Flush()
	l.mu.Lock()
	s := l.streamer
	l.streamer = nil
	l.mu.Unlock()
	if s != nil {
		s.Close()
	}
}
