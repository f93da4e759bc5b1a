package replay

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/strangeloopcanon/vei/internal/bus"
)

func TestLoadJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timeline.jsonl")
	raw := `{"at_ms":5000,"target":"mail","payload":{"subj":"late"}}
{"at_ms":1000,"target":"slack","payload":{"text":"early"}}
{"at_ms":1000,"target":"mail","payload":{"subj":"tied"}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	events, err := LoadJSONL(path)
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].AtMS != 1000 || events[0].Target != "slack" {
		t.Fatalf("sort is not stable by at_ms: first = %+v", events[0])
	}
	if events[2].Target != "mail" || events[2].AtMS != 5000 {
		t.Fatalf("last event = %+v, want mail@5000", events[2])
	}
}

func TestLoadJSONLRejectsBadLines(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "corrupt.jsonl")
	if err := os.WriteFile(path, []byte(`{"at_ms":1000`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadJSONL(path); err == nil {
		t.Fatalf("corrupt line should fail the load")
	}

	path = filepath.Join(dir, "notarget.jsonl")
	if err := os.WriteFile(path, []byte(`{"at_ms":1000,"payload":{}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadJSONL(path); err == nil {
		t.Fatalf("missing target should fail the load")
	}
}

func TestLoadSQLite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE events (at_ms INTEGER, target TEXT, payload TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	rows := []struct {
		at      int64
		target  string
		payload string
	}{
		{12000, "slack", `{"text":":white_check_mark: Approved"}`},
		{3000, "mail", `{"subj":"newsletter"}`},
		{3000, "tickets", ``},
	}
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO events (at_ms, target, payload) VALUES (?, ?, ?)`, r.at, r.target, r.payload); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	db.Close()

	events, err := LoadSQLite(path)
	if err != nil {
		t.Fatalf("LoadSQLite: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].AtMS != 3000 {
		t.Fatalf("first event at %dms, want 3000", events[0].AtMS)
	}
	if events[2].Target != "slack" || events[2].Payload["text"] != ":white_check_mark: Approved" {
		t.Fatalf("last event = %+v", events[2])
	}
	if events[1].Payload != nil && len(events[1].Payload) != 0 {
		t.Fatalf("empty payload column should stay empty, got %+v", events[1].Payload)
	}
}

func TestScheduleAll(t *testing.T) {
	b := bus.New()
	b.SetClock(2000)

	n := ScheduleAll(b, []Event{
		{AtMS: 1000, Target: "slack", Payload: map[string]any{"text": "past"}},
		{AtMS: 5000, Target: "mail", Payload: map[string]any{"subj": "future"}},
	})
	if n != 2 {
		t.Fatalf("scheduled = %d, want 2", n)
	}

	// The past event is due now; the future one is not.
	e, ok := b.NextIfDue()
	if !ok || e.Target != "slack" {
		t.Fatalf("past event should be due immediately, got %+v ok=%v", e, ok)
	}
	if _, ok := b.NextIfDue(); ok {
		t.Fatalf("future event should not be due at 2000ms")
	}
	b.SetClock(5000)
	e, ok = b.NextIfDue()
	if !ok || e.Target != "mail" || e.Due != 5000 {
		t.Fatalf("future event should be due at 5000ms, got %+v ok=%v", e, ok)
	}
}
