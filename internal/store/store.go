// Package store is the event-sourced state store: an append-only event log,
// registered reducers that materialise state, snapshots, and branches.
// All file writes are best-effort; the store keeps working in memory when
// the base directory is unwritable.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// eventIDSpace namespaces the deterministic (SHA1, v5) event ids. Random
// ids would make events.jsonl differ between identically-seeded runs.
var eventIDSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://vei.example/events"))

// Event is one immutable log record. Indices are contiguous from 0.
type Event struct {
	Index   int64          `json:"index"`
	EventID string         `json:"event_id"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
	ClockMS int64          `json:"clock_ms"`
}

// Snapshot is a deep copy of materialised state at an event index.
type Snapshot struct {
	Index   int64          `json:"index"`
	ClockMS int64          `json:"clock_ms"`
	Data    map[string]any `json:"data"`
}

// Reducer folds an event into the materialised state.
type Reducer func(state map[string]any, ev Event)

// Store owns the event log and the materialised state for one branch.
type Store struct {
	mu       sync.Mutex
	rootDir  string // "" = memory only
	branch   string
	events   []Event
	state    map[string]any
	reducers map[string][]Reducer
	receipts []map[string]any
}

// Open creates a store for rootDir/branch, loading an existing events.jsonl
// when present. Corrupt or truncated logs reset to empty.
func Open(rootDir, branch string) *Store {
	if branch == "" {
		branch = "main"
	}
	s := &Store{
		rootDir:  rootDir,
		branch:   branch,
		state:    map[string]any{},
		reducers: map[string][]Reducer{},
	}
	if rootDir != "" {
		s.loadEvents()
	}
	return s
}

// Branch returns the branch name.
func (s *Store) Branch() string { return s.branch }

func (s *Store) dir() string {
	if s.rootDir == "" {
		return ""
	}
	return filepath.Join(s.rootDir, s.branch)
}

func (s *Store) eventsPath() string   { return filepath.Join(s.dir(), "events.jsonl") }
func (s *Store) receiptsPath() string { return filepath.Join(s.dir(), "receipts.jsonl") }

func (s *Store) loadEvents() {
	f, err := os.Open(s.eventsPath())
	if err != nil {
		return
	}
	defer f.Close()

	var loaded []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			slog.Warn("corrupt event log, resetting store", "branch", s.branch, "error", err)
			s.events = nil
			return
		}
		if ev.Index != int64(len(loaded)) {
			slog.Warn("event log index gap, resetting store", "branch", s.branch, "index", ev.Index)
			s.events = nil
			return
		}
		loaded = append(loaded, ev)
	}
	s.events = loaded
}

// Head returns the index of the last event, or -1 when empty.
func (s *Store) Head() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.events)) - 1
}

// Events returns a copy of the event log.
func (s *Store) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// State returns the live materialised state. Callers must treat it as
// read-only.
func (s *Store) State() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Append records an event, applies registered reducers plus the optional
// per-call reducer, and appends the record to events.jsonl (best-effort).
func (s *Store) Append(kind string, payload map[string]any, clockMS int64, extra Reducer) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := int64(len(s.events))
	ev := Event{
		Index:   idx,
		EventID: uuid.NewSHA1(eventIDSpace, []byte(fmt.Sprintf("%s:%d:%s", s.branch, idx, kind))).String(),
		Kind:    kind,
		Payload: payload,
		ClockMS: clockMS,
	}
	s.events = append(s.events, ev)
	for _, r := range s.reducers[kind] {
		r(s.state, ev)
	}
	if extra != nil {
		extra(s.state, ev)
	}
	s.writeEventLine(ev)
	return ev
}

func (s *Store) writeEventLine(ev Event) {
	if s.rootDir == "" {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	appendLine(s.eventsPath(), data)
}

func appendLine(path string, data []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(append(data, '\n'))
}

// RegisterReducer registers fn for kind and re-replays the full history so
// the new reducer applies retroactively.
func (s *Store) RegisterReducer(kind string, fn Reducer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reducers[kind] = append(s.reducers[kind], fn)
	s.state = s.replay(-1)
}

// RebuildState replays events through the registered reducers from an empty
// base. upto is the inclusive last index; -1 replays everything.
func (s *Store) RebuildState(upto int64) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replay(upto)
}

func (s *Store) replay(upto int64) map[string]any {
	state := map[string]any{}
	for _, ev := range s.events {
		if upto >= 0 && ev.Index > upto {
			break
		}
		for _, r := range s.reducers[ev.Kind] {
			r(state, ev)
		}
	}
	return state
}

// TakeSnapshot deep-copies the materialised state and writes
// snapshots/<9-digit-index>.json (best-effort).
func (s *Store) TakeSnapshot(clockMS int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Index:   int64(len(s.events)) - 1,
		ClockMS: clockMS,
		Data:    deepCopy(s.state),
	}
	if s.rootDir != "" {
		path := filepath.Join(s.dir(), "snapshots", fmt.Sprintf("%09d.json", snap.Index))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			if data, err := json.MarshalIndent(snap, "", "  "); err == nil {
				_ = os.WriteFile(path, data, 0o644)
			}
		}
	}
	return snap
}

// BranchFrom creates a new store named name seeded with the parent's events
// up to the snapshot index and the snapshot state. Later appends extend only
// the branch.
func (s *Store) BranchFrom(snap Snapshot, name string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	child := &Store{
		rootDir:  s.rootDir,
		branch:   name,
		state:    deepCopy(snap.Data),
		reducers: map[string][]Reducer{},
	}
	for kind, rs := range s.reducers {
		child.reducers[kind] = append([]Reducer(nil), rs...)
	}
	for _, ev := range s.events {
		if ev.Index > snap.Index {
			break
		}
		copied := ev
		if ev.Payload != nil {
			copied.Payload = deepCopy(ev.Payload)
		}
		child.events = append(child.events, copied)
	}
	if child.rootDir != "" {
		for _, ev := range child.events {
			child.writeEventLine(ev)
		}
	}
	return child
}

// AppendReceipt records a receipt line to receipts.jsonl (best-effort).
func (s *Store) AppendReceipt(payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, payload)
	if s.rootDir != "" {
		if data, err := json.Marshal(payload); err == nil {
			appendLine(s.receiptsPath(), data)
		}
	}
}

// Receipts returns recorded receipts.
func (s *Store) Receipts() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.receipts))
	copy(out, s.receipts)
	return out
}

// deepCopy clones a state map via a JSON round-trip. Numbers normalise to
// float64, matching what a reload from disk produces.
func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
