package providers

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/strangeloopcanon/vei/internal/bus"
	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

// ChatMessage is one message in a channel. TS is assigned on append as
// str(len(messages)+1), so numeric ts strictly increases within a channel.
type ChatMessage struct {
	TS       string `json:"ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// ChatChannel holds the ordered message log and an unread counter.
type ChatChannel struct {
	Messages []*ChatMessage `json:"messages"`
	Unread   int            `json:"unread"`
}

// Chat is the Slack-like provider.
type Chat struct {
	env      *Env
	channels map[string]*ChatChannel
}

var (
	firstIntRe   = regexp.MustCompile(`\d+`)
	approvalKeys = []string{"approve", "summary", "budget"}
)

var derailTexts = []string{
	"Quick tangent: did anyone pick a standing desk for the new hire?",
	"Unrelated, but the office badge printer is down again.",
	"Side note: can we also discuss the offsite agenda this week?",
	"btw the coffee machine on 3 is out of order.",
}

// NewChat seeds channels from the scenario and posts the kickoff message.
func NewChat(env *Env) *Chat {
	c := &Chat{env: env, channels: map[string]*ChatChannel{}}
	for _, name := range env.Scenario.Channels {
		c.channels[name] = &ChatChannel{}
	}
	if env.Scenario.InitialMessage != "" {
		ch := c.channel(env.Scenario.InitialChannel)
		c.append(ch, "ops-bot", env.Scenario.InitialMessage, "")
	}
	return c
}

func (c *Chat) channel(name string) *ChatChannel {
	ch, ok := c.channels[name]
	if !ok {
		ch = &ChatChannel{}
		c.channels[name] = ch
	}
	return ch
}

func (c *Chat) append(ch *ChatChannel, user, text, threadTS string) *ChatMessage {
	m := &ChatMessage{
		TS:       strconv.Itoa(len(ch.Messages) + 1),
		User:     user,
		Text:     text,
		ThreadTS: threadTS,
	}
	ch.Messages = append(ch.Messages, m)
	return m
}

func (c *Chat) Specs() []*registry.Spec {
	return []*registry.Spec{
		{
			Name:        "slack.send_message",
			Description: "Send a message to a Slack channel, optionally inside a thread",
			Permissions: []string{"chat.write"},
			SideEffects: []string{"chat"},
			LatencyMS:   40, JitterMS: 20, Cost: 0.01,
			Returns: "ts of the posted message",
			ArgsSchema: registry.ObjectSchema([]string{"text"}, map[string]any{
				"channel":   map[string]any{"type": "string"},
				"text":      map[string]any{"type": "string"},
				"thread_ts": map[string]any{"type": "string"},
			}),
		},
		{
			Name:        "slack.fetch_thread",
			Description: "Fetch a thread: the root message plus replies, in ts order",
			Permissions: []string{"chat.read"},
			LatencyMS:   30, JitterMS: 10, Cost: 0.01,
			Returns: "messages sorted by numeric ts",
		},
		{
			Name:        "slack.read_channel",
			Description: "Read recent messages from a channel and clear its unread counter",
			Permissions: []string{"chat.read"},
			LatencyMS:   30, JitterMS: 10, Cost: 0.01,
		},
		{
			Name:        "slack.list_channels",
			Description: "List channels with message and unread counts",
			Permissions: []string{"chat.read"},
			LatencyMS:   20, JitterMS: 5, Cost: 0.01,
		},
	}
}

func (c *Chat) Handles(tool string) bool { return hasPrefix(tool, "slack") }

func (c *Chat) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "slack.send_message":
		return c.sendMessage(args)
	case "slack.fetch_thread":
		return c.fetchThread(args)
	case "slack.read_channel":
		return c.readChannel(args)
	case "slack.list_channels":
		return c.listChannels()
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "chat does not handle %s", tool)
}

func (c *Chat) sendMessage(args map[string]any) (map[string]any, error) {
	name := strArg(args, "channel")
	if name == "" {
		name = c.env.Scenario.InitialChannel
	}
	ch, ok := c.channels[name]
	if !ok {
		return nil, toolerr.Newf(toolerr.CodeUnknownChannel, "no channel %s", name)
	}
	text := strArg(args, "text")
	m := c.append(ch, "agent", text, strArg(args, "thread_ts"))

	if p := c.env.Scenario.DerailProb; p > 0 && c.env.RNG.NextFloat() < p {
		derail := derailTexts[c.env.RNG.IntN(0, int64(len(derailTexts)-1))]
		c.env.Bus.Schedule(7_000, "slack", bus.Payload{
			"channel": name, "user": "sam.lee", "text": derail, "thread_ts": m.TS,
		})
	}

	if containsApprovalKeyword(text) {
		c.scheduleApprovalReply(name, m.TS, text)
	}
	return map[string]any{"ts": m.TS, "channel": name}, nil
}

func containsApprovalKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range approvalKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (c *Chat) scheduleApprovalReply(channel, threadTS, text string) {
	amountStr := firstIntRe.FindString(strings.ReplaceAll(text, ",", ""))
	if amountStr == "" {
		c.env.Bus.Schedule(9_000, "slack", bus.Payload{
			"channel": channel, "user": "priya.fin", "thread_ts": threadTS,
			"text": "What is the budget amount?",
		})
		return
	}
	amount, _ := strconv.ParseInt(amountStr, 10, 64)
	if amount <= c.env.Scenario.BudgetCapUSD {
		c.env.Bus.Schedule(12_000, "slack", bus.Payload{
			"channel": channel, "user": "priya.fin", "thread_ts": threadTS,
			"text": ":white_check_mark: Approved",
		})
		return
	}
	c.env.Bus.Schedule(10_000, "slack", bus.Payload{
		"channel": channel, "user": "priya.fin", "thread_ts": threadTS,
		"text": "Need clearer budget justification (over cap).",
	})
}

func (c *Chat) fetchThread(args map[string]any) (map[string]any, error) {
	name := strArg(args, "channel")
	if name == "" {
		name = c.env.Scenario.InitialChannel
	}
	ch, ok := c.channels[name]
	if !ok {
		return nil, toolerr.Newf(toolerr.CodeUnknownChannel, "no channel %s", name)
	}
	key := strArg(args, "thread_ts")
	keyNum, err := strconv.ParseFloat(key, 64)
	if err != nil {
		return nil, toolerr.Newf(toolerr.CodeUnknownMessage, "bad thread_ts %q", key)
	}

	var thread []*ChatMessage
	for _, m := range ch.Messages {
		n, err := strconv.ParseFloat(m.TS, 64)
		if err != nil {
			continue
		}
		if m.ThreadTS == key || n >= keyNum {
			thread = append(thread, m)
		}
	}
	sort.SliceStable(thread, func(i, j int) bool {
		a, _ := strconv.ParseFloat(thread[i].TS, 64)
		b, _ := strconv.ParseFloat(thread[j].TS, 64)
		return a < b
	})
	return map[string]any{"messages": messageMaps(thread)}, nil
}

func (c *Chat) readChannel(args map[string]any) (map[string]any, error) {
	name := strArg(args, "channel")
	if name == "" {
		name = c.env.Scenario.InitialChannel
	}
	ch, ok := c.channels[name]
	if !ok {
		return nil, toolerr.Newf(toolerr.CodeUnknownChannel, "no channel %s", name)
	}
	ch.Unread = 0
	return map[string]any{"channel": name, "messages": messageMaps(ch.Messages)}, nil
}

func (c *Chat) listChannels() (map[string]any, error) {
	names := make([]string, 0, len(c.channels))
	for name := range c.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		ch := c.channels[name]
		out = append(out, map[string]any{
			"name": name, "messages": len(ch.Messages), "unread": ch.Unread,
		})
	}
	return map[string]any{"channels": out}, nil
}

func messageMaps(msgs []*ChatMessage) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		e := map[string]any{"ts": m.TS, "user": m.User, "text": m.Text}
		if m.ThreadTS != "" {
			e["thread_ts"] = m.ThreadTS
		}
		out = append(out, e)
	}
	return out
}

func (c *Chat) Target() string { return "slack" }

// Deliver appends a scheduled message to its channel and bumps unread.
func (c *Chat) Deliver(payload bus.Payload) {
	name, _ := payload["channel"].(string)
	if name == "" {
		name = c.env.Scenario.InitialChannel
	}
	ch := c.channel(name)
	user, _ := payload["user"].(string)
	if user == "" {
		user = "ops-bot"
	}
	text, _ := payload["text"].(string)
	threadTS, _ := payload["thread_ts"].(string)
	c.append(ch, user, text, threadTS)
	ch.Unread++
}

func (c *Chat) Name() string { return "slack" }

func (c *Chat) StateSnapshot() map[string]any {
	channels := map[string]any{}
	for name, ch := range c.channels {
		channels[name] = map[string]any{
			"messages": messageMaps(ch.Messages),
			"unread":   ch.Unread,
		}
	}
	return map[string]any{"channels": channels}
}

// LastMessage returns the newest message in a channel, or nil.
func (c *Chat) LastMessage(channel string) *ChatMessage {
	ch, ok := c.channels[channel]
	if !ok || len(ch.Messages) == 0 {
		return nil
	}
	return ch.Messages[len(ch.Messages)-1]
}
