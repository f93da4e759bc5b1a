package providers

import (
	"fmt"

	"github.com/strangeloopcanon/vei/internal/bus"
	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

// VendorReplyDelayMS is the fixed compose→reply delay.
const VendorReplyDelayMS = 15_000

// MailMessage is one message in the store.
type MailMessage struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subj"`
	Body    string `json:"body_text"`
	Folder  string `json:"folder"`
	TimeMS  int64  `json:"time_ms"`
}

// Mail is the mail provider: a message map plus an inbox of ids, newest
// first. Every compose schedules exactly one vendor reply.
type Mail struct {
	env      *Env
	messages map[string]*MailMessage
	inbox    []string
	sent     []string
	counter  int
}

// NewMail creates an empty mailbox.
func NewMail(env *Env) *Mail {
	return &Mail{env: env, messages: map[string]*MailMessage{}}
}

func (m *Mail) nextID() string {
	m.counter++
	return fmt.Sprintf("m%d", m.counter)
}

func (m *Mail) Specs() []*registry.Spec {
	return []*registry.Spec{
		{
			Name:        "mail.compose",
			Description: "Compose and send an email to a vendor or colleague",
			Permissions: []string{"mail.write"},
			SideEffects: []string{"mail"},
			LatencyMS:   60, JitterMS: 30, Cost: 0.02,
			Returns: "id of the sent message",
			ArgsSchema: registry.ObjectSchema([]string{"to", "subj"}, map[string]any{
				"to":        map[string]any{"type": "string"},
				"subj":      map[string]any{"type": "string"},
				"body_text": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        "mail.list",
			Description: "List inbox messages, newest first",
			Permissions: []string{"mail.read"},
			LatencyMS:   30, JitterMS: 10, Cost: 0.01,
		},
		{
			Name:        "mail.read",
			Description: "Read a single message by id",
			Permissions: []string{"mail.read"},
			LatencyMS:   30, JitterMS: 10, Cost: 0.01,
		},
	}
}

func (m *Mail) Handles(tool string) bool { return hasPrefix(tool, "mail") }

func (m *Mail) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "mail.compose":
		return m.compose(args)
	case "mail.list":
		return m.list()
	case "mail.read":
		return m.read(args)
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "mail does not handle %s", tool)
}

func (m *Mail) compose(args map[string]any) (map[string]any, error) {
	id := m.nextID()
	msg := &MailMessage{
		ID:      id,
		From:    "agent@vei.example",
		To:      strArg(args, "to"),
		Subject: strArg(args, "subj"),
		Body:    strArg(args, "body_text"),
		Folder:  "Sent",
		TimeMS:  m.env.Bus.Now(),
	}
	m.messages[id] = msg
	m.sent = append([]string{id}, m.sent...)

	// The variant is drawn at compose time so the reply body is fixed by
	// the RNG state, not by delivery order.
	variants := m.env.Scenario.VendorReplies
	body := "Thanks, we will get back to you."
	if len(variants) > 0 {
		body = variants[m.env.RNG.IntN(0, int64(len(variants)-1))]
	}
	m.env.Bus.Schedule(VendorReplyDelayMS, "mail", bus.Payload{
		"from":        m.env.Scenario.VendorEmail,
		"subj":        "RE: " + msg.Subject,
		"body_text":   body,
		"in_reply_to": id,
	})
	return map[string]any{"id": id}, nil
}

func (m *Mail) list() (map[string]any, error) {
	entries := make([]map[string]any, 0, len(m.inbox))
	for _, id := range m.inbox {
		msg := m.messages[id]
		entries = append(entries, map[string]any{
			"id": msg.ID, "from": msg.From, "subj": msg.Subject, "time_ms": msg.TimeMS,
		})
	}
	return map[string]any{"messages": entries, "count": len(entries)}, nil
}

func (m *Mail) read(args map[string]any) (map[string]any, error) {
	id := strArg(args, "id")
	msg, ok := m.messages[id]
	if !ok {
		return nil, toolerr.Newf(toolerr.CodeUnknownMessage, "no message %s", id)
	}
	return map[string]any{
		"id": msg.ID, "from": msg.From, "to": msg.To,
		"subj": msg.Subject, "body_text": msg.Body,
		"folder": msg.Folder, "time_ms": msg.TimeMS,
	}, nil
}

func (m *Mail) Target() string { return "mail" }

// Deliver appends an incoming message to the inbox, newest first.
func (m *Mail) Deliver(payload bus.Payload) {
	id := m.nextID()
	from, _ := payload["from"].(string)
	subj, _ := payload["subj"].(string)
	body, _ := payload["body_text"].(string)
	m.messages[id] = &MailMessage{
		ID: id, From: from, Subject: subj, Body: body,
		Folder: "INBOX", TimeMS: m.env.Bus.Now(),
	}
	m.inbox = append([]string{id}, m.inbox...)
}

func (m *Mail) Name() string { return "mail" }

func (m *Mail) StateSnapshot() map[string]any {
	inbox := make([]map[string]any, 0, len(m.inbox))
	for _, id := range m.inbox {
		msg := m.messages[id]
		inbox = append(inbox, map[string]any{
			"id": msg.ID, "from": msg.From, "subj": msg.Subject, "body_text": msg.Body,
		})
	}
	return map[string]any{"inbox": inbox, "sent": len(m.sent)}
}

// InboxLen reports the inbox size.
func (m *Mail) InboxLen() int { return len(m.inbox) }
