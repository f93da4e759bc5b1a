package providers

import (
	"fmt"

	"github.com/strangeloopcanon/vei/internal/bus"
	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

type ticket struct {
	ID       string
	Title    string
	Status   string
	Assignee string
	History  []map[string]any
}

// Tickets is the issue-tracker twin. Every mutation appends to the
// ticket's history: transitions append {status}, field updates append
// {status, update: "fields"}.
type Tickets struct {
	env     *Env
	tickets map[string]*ticket
	seq     int
}

// NewTickets seeds tickets from the scenario.
func NewTickets(env *Env) *Tickets {
	t := &Tickets{env: env, tickets: map[string]*ticket{}}
	for _, st := range env.Scenario.Tickets {
		status := st.Status
		if status == "" {
			status = "OPEN"
		}
		t.tickets[st.ID] = &ticket{ID: st.ID, Title: st.Title, Status: status, Assignee: st.Assignee}
		t.seq++
	}
	return t
}

func (t *Tickets) Specs() []*registry.Spec {
	return []*registry.Spec{
		{Name: "tickets.create", Description: "Create a ticket", Permissions: []string{"tickets.write"}, SideEffects: []string{"tickets"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02,
			ArgsSchema: registry.ObjectSchema([]string{"title"}, map[string]any{
				"title":    map[string]any{"type": "string"},
				"assignee": map[string]any{"type": "string"},
			})},
		{Name: "tickets.get", Description: "Fetch a ticket with its history", Permissions: []string{"tickets.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "tickets.list", Description: "List tickets", Permissions: []string{"tickets.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "tickets.transition", Description: "Move a ticket to a new status", Permissions: []string{"tickets.write"}, SideEffects: []string{"tickets"}, LatencyMS: 60, JitterMS: 25, Cost: 0.02},
		{Name: "tickets.update", Description: "Update ticket fields", Permissions: []string{"tickets.write"}, SideEffects: []string{"tickets"}, LatencyMS: 60, JitterMS: 25, Cost: 0.02},
	}
}

func (t *Tickets) Handles(tool string) bool { return hasPrefix(tool, "tickets") }

func (t *Tickets) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "tickets.create":
		t.seq++
		tk := &ticket{
			ID:       fmt.Sprintf("T-%d", 100+t.seq),
			Title:    strArg(args, "title"),
			Status:   "OPEN",
			Assignee: strArg(args, "assignee"),
		}
		t.tickets[tk.ID] = tk
		return map[string]any{"ticket_id": tk.ID, "status": tk.Status}, nil
	case "tickets.get":
		tk, ok := t.tickets[strArg(args, "ticket_id")]
		if !ok {
			return domainError("unknown_ticket", "no ticket "+strArg(args, "ticket_id")), nil
		}
		return ticketMap(tk), nil
	case "tickets.list":
		ids := sortedKeys(t.tickets)
		out := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			tk := t.tickets[id]
			out = append(out, map[string]any{"ticket_id": tk.ID, "title": tk.Title, "status": tk.Status})
		}
		return map[string]any{"tickets": out}, nil
	case "tickets.transition":
		tk, ok := t.tickets[strArg(args, "ticket_id")]
		if !ok {
			return domainError("unknown_ticket", "no ticket "+strArg(args, "ticket_id")), nil
		}
		tk.Status = strArg(args, "status")
		tk.History = append(tk.History, map[string]any{"status": tk.Status})
		return ticketMap(tk), nil
	case "tickets.update":
		tk, ok := t.tickets[strArg(args, "ticket_id")]
		if !ok {
			return domainError("unknown_ticket", "no ticket "+strArg(args, "ticket_id")), nil
		}
		if v := strArg(args, "title"); v != "" {
			tk.Title = v
		}
		if v := strArg(args, "assignee"); v != "" {
			tk.Assignee = v
		}
		if v := strArg(args, "status"); v != "" {
			tk.Status = v
		}
		tk.History = append(tk.History, map[string]any{"status": tk.Status, "update": "fields"})
		return ticketMap(tk), nil
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "tickets does not handle %s", tool)
}

func ticketMap(tk *ticket) map[string]any {
	return map[string]any{
		"ticket_id": tk.ID, "title": tk.Title, "status": tk.Status,
		"assignee": tk.Assignee, "history": tk.History,
	}
}

func (t *Tickets) Target() string { return "tickets" }

// Deliver applies a drift or trigger payload as a status update.
func (t *Tickets) Deliver(payload bus.Payload) {
	id, _ := payload["ticket_id"].(string)
	tk, ok := t.tickets[id]
	if !ok {
		return
	}
	if status, _ := payload["status"].(string); status != "" {
		tk.Status = status
		tk.History = append(tk.History, map[string]any{"status": status})
	}
}

func (t *Tickets) Name() string { return "tickets" }

func (t *Tickets) StateSnapshot() map[string]any {
	byStatus := map[string]int{}
	for _, tk := range t.tickets {
		byStatus[tk.Status]++
	}
	return map[string]any{"count": len(t.tickets), "by_status": byStatus}
}
