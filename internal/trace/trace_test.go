package trace

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func readLines(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()
	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad trace line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	return out
}

func TestFlushAppendsInOrder(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)

	l.RecordCall("slack.send_message", map[string]any{"text": "hi"}, map[string]any{"ts": "1"}, 120)
	l.RecordEvent("slack", map[string]any{"text": "reply"}, true, 7120)
	l.Flush()
	l.RecordCall("vei.observe", nil, map[string]any{}, 8120)
	l.Flush()

	entries := readLines(t, filepath.Join(dir, "trace.jsonl"))
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Type != "call" || entries[0].Tool != "slack.send_message" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Type != "event" || entries[1].Target != "slack" || entries[1].Emitted == nil || !*entries[1].Emitted {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[2].TimeMS != 8120 {
		t.Errorf("entry 2 time = %d, want 8120", entries[2].TimeMS)
	}
	for i, e := range entries {
		if e.TraceVersion != Version {
			t.Errorf("entry %d version = %d", i, e.TraceVersion)
		}
	}
}

func TestNoDirDisablesFile(t *testing.T) {
	l := NewLogger("")
	l.RecordCall("vei.ping", nil, map[string]any{"ok": true}, 0)
	l.Flush() // must not panic or create files
}

func TestSubscribeReceivesFlushedLines(t *testing.T) {
	l := NewLogger("")
	var got [][]byte
	unsub := l.Subscribe(func(line []byte) { got = append(got, line) })
	l.RecordCall("vei.ping", nil, nil, 5)
	l.Flush()
	if len(got) != 1 {
		t.Fatalf("listener saw %d lines, want 1", len(got))
	}
	unsub()
	l.RecordCall("vei.ping", nil, nil, 6)
	l.Flush()
	if len(got) != 1 {
		t.Fatalf("listener saw %d lines after unsubscribe, want 1", len(got))
	}
}

func TestStreamerPostsAndDrops(t *testing.T) {
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	s := NewStreamer(srv.URL, 4)
	for i := 0; i < 100; i++ {
		s.Enqueue([]byte(`{"trace_version":1}`)) // must never block
	}
	s.Close()

	if n := received.Load(); n == 0 || n > 100 {
		t.Fatalf("received %d posts, want 1..100", n)
	}
}
