// Package replay loads recorded event timelines and schedules them onto a
// bus, so a captured run can be replayed deterministically. Two sources are
// supported: a JSONL file of events and a SQLite capture database.
package replay

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/strangeloopcanon/vei/internal/bus"
)

// Event is one timeline entry: a payload due for a target at an absolute
// logical time.
type Event struct {
	AtMS    int64          `json:"at_ms"`
	Target  string         `json:"target"`
	Payload map[string]any `json:"payload"`
}

// LoadJSONL reads a timeline from a JSONL file. Lines that fail to parse or
// carry no target are rejected, not skipped: a replay source must be exact.
func LoadJSONL(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open timeline: %w", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("timeline line %d: %w", line, err)
		}
		if ev.Target == "" {
			return nil, fmt.Errorf("timeline line %d: missing target", line)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	sortEvents(events)
	return events, nil
}

// LoadSQLite reads a timeline from a capture database. The payload column
// holds JSON.
func LoadSQLite(path string) ([]Event, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open capture db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT at_ms, target, payload FROM events ORDER BY at_ms`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var raw string
		if err := rows.Scan(&ev.AtMS, &ev.Target, &raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &ev.Payload); err != nil {
				return nil, fmt.Errorf("payload at %dms: %w", ev.AtMS, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	sortEvents(events)
	return events, nil
}

// ScheduleAll enqueues every event relative to the bus clock. Events whose
// at_ms already passed are scheduled immediately, preserving order.
func ScheduleAll(b *bus.Bus, events []Event) int {
	now := b.Now()
	for _, ev := range events {
		b.Schedule(ev.AtMS-now, ev.Target, bus.Payload(ev.Payload))
	}
	return len(events)
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].AtMS < events[j].AtMS })
}
