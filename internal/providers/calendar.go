package providers

import (
	"fmt"

	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

type calEvent struct {
	ID        string
	Title     string
	StartMS   int64
	Attendees []string
	Responses map[string]string
	History   []map[string]any
}

// Calendar tracks events and per-attendee accept/decline responses.
type Calendar struct {
	env    *Env
	events map[string]*calEvent
	seq    int
}

// NewCalendar seeds events from the scenario.
func NewCalendar(env *Env) *Calendar {
	c := &Calendar{env: env, events: map[string]*calEvent{}}
	for _, se := range env.Scenario.CalendarEvents {
		c.events[se.ID] = &calEvent{
			ID: se.ID, Title: se.Title, StartMS: se.StartMS,
			Attendees: append([]string(nil), se.Attendees...),
			Responses: map[string]string{},
		}
		c.seq++
	}
	return c
}

func (c *Calendar) Specs() []*registry.Spec {
	return []*registry.Spec{
		{Name: "calendar.create_event", Description: "Create a calendar event", Permissions: []string{"calendar.write"}, SideEffects: []string{"calendar"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02,
			ArgsSchema: registry.ObjectSchema([]string{"title"}, map[string]any{
				"title":     map[string]any{"type": "string"},
				"start_ms":  map[string]any{"type": "number"},
				"attendees": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			})},
		{Name: "calendar.get_event", Description: "Fetch an event with responses", Permissions: []string{"calendar.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "calendar.list_events", Description: "List events", Permissions: []string{"calendar.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "calendar.respond", Description: "Record an attendee's accept or decline", Permissions: []string{"calendar.write"}, SideEffects: []string{"calendar"}, LatencyMS: 60, JitterMS: 25, Cost: 0.02},
	}
}

func (c *Calendar) Handles(tool string) bool { return hasPrefix(tool, "calendar") }

func (c *Calendar) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "calendar.create_event":
		c.seq++
		start, _ := int64Arg(args, "start_ms")
		ev := &calEvent{
			ID:        fmt.Sprintf("ev-%d", c.seq),
			Title:     strArg(args, "title"),
			StartMS:   start,
			Attendees: stringsArg(args, "attendees"),
			Responses: map[string]string{},
		}
		c.events[ev.ID] = ev
		return map[string]any{"event_id": ev.ID}, nil
	case "calendar.get_event":
		ev, ok := c.events[strArg(args, "event_id")]
		if !ok {
			return domainError("unknown_event", "no event "+strArg(args, "event_id")), nil
		}
		return eventMap(ev), nil
	case "calendar.list_events":
		ids := sortedKeys(c.events)
		out := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			out = append(out, eventMap(c.events[id]))
		}
		return map[string]any{"events": out}, nil
	case "calendar.respond":
		return c.respond(args)
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "calendar does not handle %s", tool)
}

// respond records a response keyed by attendee; unknown attendees are
// rejected.
func (c *Calendar) respond(args map[string]any) (map[string]any, error) {
	ev, ok := c.events[strArg(args, "event_id")]
	if !ok {
		return domainError("unknown_event", "no event "+strArg(args, "event_id")), nil
	}
	attendee := strArg(args, "attendee")
	if !contains(ev.Attendees, attendee) {
		return domainError("unknown_attendee", attendee+" is not invited to "+ev.ID), nil
	}
	response := strArg(args, "response")
	if response != "accept" && response != "decline" {
		return nil, toolerr.Newf(toolerr.CodeInvalidArgs, "response must be accept or decline")
	}
	ev.Responses[attendee] = response
	ev.History = append(ev.History, map[string]any{"attendee": attendee, "response": response})
	return eventMap(ev), nil
}

func eventMap(ev *calEvent) map[string]any {
	return map[string]any{
		"event_id": ev.ID, "title": ev.Title, "start_ms": ev.StartMS,
		"attendees": append([]string{}, ev.Attendees...), "responses": ev.Responses,
	}
}

func (c *Calendar) Name() string { return "calendar" }

func (c *Calendar) StateSnapshot() map[string]any {
	return map[string]any{"count": len(c.events)}
}
