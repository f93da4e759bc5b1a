// Package monitors runs post-call heuristic checks over tool calls and
// state snapshots. Monitors never abort a call: a panicking monitor is
// recorded as a monitor.error finding and the pipeline continues.
package monitors

import (
	"fmt"
)

// Finding codes emitted by the built-in monitors.
const (
	CodeApprovalMissingAmount = "slack.approval_missing_amount"
	CodeApprovalNoReason      = "slack.approval_no_justification"
	CodePIIDetected           = "pii.detected"
	CodeGenericSubject        = "mail.generic_subject"
	CodeRepetition            = "usage.repetition"
	CodeMonitorError          = "monitor.error"
)

// TailLimit bounds the retained finding history.
const TailLimit = 200

// Finding is one monitor hit.
type Finding struct {
	Monitor string `json:"monitor"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Tool    string `json:"tool,omitempty"`
	TimeMS  int64  `json:"time_ms"`
}

// Call is the post-call view handed to each monitor.
type Call struct {
	Tool     string
	Args     map[string]any
	Response map[string]any
	Err      error
	TimeMS   int64
	Count    int // calls of this tool so far, including this one
	Snapshot map[string]map[string]any
}

// Monitor inspects one completed call.
type Monitor interface {
	Name() string
	OnToolCall(call Call) []Finding
}

// Manager owns the enabled monitors, the per-tool call counters and the
// bounded finding tail.
type Manager struct {
	monitors []Monitor
	counts   map[string]int
	tail     []Finding
}

// NewManager enables the named monitors. Unknown names are ignored so a
// stale configuration cannot break startup.
func NewManager(names []string) *Manager {
	m := &Manager{counts: map[string]int{}}
	for _, name := range names {
		if name == "tool_aware" {
			m.monitors = append(m.monitors, &ToolAware{})
		}
	}
	return m
}

// Register adds a custom monitor.
func (m *Manager) Register(mon Monitor) {
	m.monitors = append(m.monitors, mon)
}

// OnToolCall bumps the tool counter, runs every monitor and returns the
// new findings. Panics become monitor.error findings.
func (m *Manager) OnToolCall(tool string, args, response map[string]any, callErr error, timeMS int64, snapshot map[string]map[string]any) []Finding {
	m.counts[tool]++
	call := Call{
		Tool: tool, Args: args, Response: response, Err: callErr,
		TimeMS: timeMS, Count: m.counts[tool], Snapshot: snapshot,
	}

	var found []Finding
	for _, mon := range m.monitors {
		found = append(found, m.runOne(mon, call)...)
	}
	m.tail = append(m.tail, found...)
	if len(m.tail) > TailLimit {
		m.tail = m.tail[len(m.tail)-TailLimit:]
	}
	return found
}

func (m *Manager) runOne(mon Monitor, call Call) (out []Finding) {
	defer func() {
		if r := recover(); r != nil {
			out = []Finding{{
				Monitor: mon.Name(),
				Code:    CodeMonitorError,
				Message: fmt.Sprintf("monitor panicked: %v", r),
				Tool:    call.Tool,
				TimeMS:  call.TimeMS,
			}}
		}
	}()
	return mon.OnToolCall(call)
}

// Tail returns the retained findings, oldest first.
func (m *Manager) Tail() []Finding {
	return append([]Finding(nil), m.tail...)
}

// CallCount reports how many times a tool has been seen.
func (m *Manager) CallCount(tool string) int { return m.counts[tool] }
