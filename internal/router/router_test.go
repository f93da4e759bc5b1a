package router

import (
	"bytes"
	"strings"
	"testing"

	"github.com/strangeloopcanon/vei/internal/config"
	"github.com/strangeloopcanon/vei/internal/scenario"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

func newRouter(t *testing.T, mutate func(*config.Config), scen *scenario.Scenario) *Router {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	r, err := New(cfg, scen)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

// collectTrace subscribes to flushed trace lines.
func collectTrace(r *Router) *[]string {
	var lines []string
	r.Trace().Subscribe(func(line []byte) {
		lines = append(lines, string(bytes.Clone(line)))
	})
	return &lines
}

func observeN(t *testing.T, r *Router, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := r.Call("vei.observe", nil); err != nil {
			t.Fatalf("observe %d: %v", i, err)
		}
	}
}

func TestApprovalWithAmount(t *testing.T) {
	r := newRouter(t, func(c *config.Config) { c.Seed = 123 }, nil)
	lines := collectTrace(r)

	if _, err := r.Call("slack.send_message", map[string]any{
		"channel": "#procurement", "text": "Please approve; budget $3200.",
	}); err != nil {
		t.Fatalf("send_message: %v", err)
	}
	observeN(t, r, 15)

	approved := 0
	for _, line := range *lines {
		if strings.Contains(line, `"type":"event"`) && strings.Contains(line, ":white_check_mark: Approved") {
			approved++
		}
	}
	if approved != 1 {
		t.Fatalf("approved events = %d, want 1", approved)
	}

	findings, _ := r.Store().State()["policy_findings"].([]any)
	for _, f := range findings {
		entry := f.(map[string]any)
		if entry["code"] == "slack.approval_missing_amount" {
			t.Fatalf("unexpected missing-amount finding: %v", entry)
		}
	}
}

func TestApprovalOverCap(t *testing.T) {
	scen := scenario.Default()
	scen.BudgetCapUSD = 1000
	scen.DerailProb = 0
	r := newRouter(t, nil, scen)
	lines := collectTrace(r)

	if _, err := r.Call("slack.send_message", map[string]any{
		"text": "Request approval, budget $2000",
	}); err != nil {
		t.Fatalf("send_message: %v", err)
	}
	observeN(t, r, 15)

	found := false
	for _, line := range *lines {
		if strings.Contains(line, `"type":"event"`) && strings.Contains(line, "over cap") {
			found = true
		}
	}
	if !found {
		t.Fatal("no over-cap event delivered")
	}
}

func TestVendorReplyDelivery(t *testing.T) {
	r := newRouter(t, nil, nil) // default seed 42042
	if _, err := r.Call("mail.compose", map[string]any{
		"to": "sales@macrocompute.example", "subj": "Quote", "body_text": "please advise",
	}); err != nil {
		t.Fatalf("compose: %v", err)
	}
	res, err := r.Call("vei.tick", map[string]any{"dt_ms": 20_000})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res["delivered"].(int) < 1 {
		t.Fatalf("delivered = %v, want >= 1", res["delivered"])
	}
	if r.mail.InboxLen() < 1 {
		t.Fatalf("inbox = %d, want >= 1", r.mail.InboxLen())
	}
}

func TestBrowserNavigationFlow(t *testing.T) {
	r := newRouter(t, nil, nil)

	find, err := r.Call("browser.find", map[string]any{"query": "button", "top_k": 5})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	hits := find["hits"].([]map[string]any)
	if len(hits) == 0 {
		t.Fatal("no hits for query button")
	}

	page, err := r.Call("browser.click", map[string]any{"node_id": hits[0]["node_id"]})
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if !strings.Contains(page["url"].(string), "/pdp/") {
		t.Fatalf("url after click = %v", page["url"])
	}

	page, err = r.Call("browser.back", nil)
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if page["url"] != "https://vei.example/" {
		t.Fatalf("url after back = %v", page["url"])
	}
}

func TestERPMatchThroughRouter(t *testing.T) {
	r := newRouter(t, nil, nil)
	lines := []any{map[string]any{"item": "macrobook-pro-16", "qty": 2, "unit_price": 1000.00}}

	po, err := r.Call("erp.create_po", map[string]any{"vendor": "MacroCompute", "lines": lines})
	if err != nil {
		t.Fatalf("create_po: %v", err)
	}
	if po["total"] != 2000.00 {
		t.Fatalf("total = %v", po["total"])
	}
	rcpt, err := r.Call("erp.receive_goods", map[string]any{"po_id": po["po_id"], "lines": lines})
	if err != nil {
		t.Fatalf("receive_goods: %v", err)
	}
	inv, err := r.Call("erp.submit_invoice", map[string]any{"po_id": po["po_id"], "lines": lines})
	if err != nil {
		t.Fatalf("submit_invoice: %v", err)
	}
	match, err := r.Call("erp.match_three_way", map[string]any{
		"po_id": po["po_id"], "invoice_id": inv["invoice_id"], "receipt_id": rcpt["receipt_id"],
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match["status"] != "MATCH" {
		t.Fatalf("status = %v (%v)", match["status"], match["reasons"])
	}

	short, err := r.Call("erp.submit_invoice", map[string]any{
		"po_id": po["po_id"],
		"lines": []any{map[string]any{"item": "macrobook-pro-16", "qty": 1, "unit_price": 1000.00}},
	})
	if err != nil {
		t.Fatalf("submit_invoice: %v", err)
	}
	match, err = r.Call("erp.match_three_way", map[string]any{
		"po_id": po["po_id"], "invoice_id": short["invoice_id"],
	})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if match["status"] != "MISMATCH" {
		t.Fatalf("status = %v, want MISMATCH", match["status"])
	}
}

func TestDriftCounterSurvivesBranch(t *testing.T) {
	mutate := func(c *config.Config) {
		c.DriftMode = "fast"
		c.DriftSeed = 4242
	}
	r := newRouter(t, mutate, nil)

	if _, err := r.Call("vei.tick", map[string]any{"dt_ms": 120_000}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	st := r.Store()
	d, _ := st.State()["drift"].(map[string]any)
	if d == nil {
		t.Fatal("no drift state after 120s")
	}
	before := d["delivered"].(int)
	if before < 1 {
		t.Fatalf("delivered = %d, want >= 1", before)
	}

	// Branch state went through a JSON round-trip; counters must keep
	// accumulating instead of restarting from zero.
	branch := st.BranchFrom(st.TakeSnapshot(r.Now()), "alt")
	branch.Append("drift.delivered", map[string]any{"job": "slack-chatter", "target": "slack"}, r.Now(), nil)

	live, _ := branch.State()["drift"].(map[string]any)
	if got := stateInt(live["delivered"]); got != before+1 {
		t.Fatalf("branch live delivered = %d, want %d", got, before+1)
	}
	rebuilt, _ := branch.RebuildState(-1)["drift"].(map[string]any)
	if stateInt(live["delivered"]) != stateInt(rebuilt["delivered"]) {
		t.Fatalf("branch live delivered = %v, rebuilt = %v", live["delivered"], rebuilt["delivered"])
	}
	if stateInt(live["by_job"].(map[string]any)["slack-chatter"]) < 1 {
		t.Fatal("per-job counter lost on branch")
	}
}

func TestDriftDeterminismAndGrowth(t *testing.T) {
	mutate := func(c *config.Config) {
		c.DriftMode = "fast"
		c.DriftSeed = 4242
	}
	r := newRouter(t, mutate, nil)

	if _, err := r.Call("vei.tick", map[string]any{"dt_ms": 120_000}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	d, _ := r.Store().State()["drift"].(map[string]any)
	if d == nil {
		t.Fatal("no drift state after 120s")
	}
	first := d["delivered"].(int)
	if first < 1 {
		t.Fatalf("delivered = %d, want >= 1", first)
	}
	history := len(r.drift.ScheduledHistory())

	if _, err := r.Call("vei.tick", map[string]any{"dt_ms": 200_000}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	d, _ = r.Store().State()["drift"].(map[string]any)
	if d["delivered"].(int) <= first {
		t.Fatalf("delivered did not grow: %v -> %v", first, d["delivered"])
	}
	if len(r.drift.ScheduledHistory()) <= history {
		t.Fatal("scheduled-drift history did not grow")
	}

	// Same seed and mode replays the same timeline.
	r2 := newRouter(t, mutate, nil)
	if _, err := r2.Call("vei.tick", map[string]any{"dt_ms": 120_000}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	d2, _ := r2.Store().State()["drift"].(map[string]any)
	if d2["delivered"].(int) != first {
		t.Fatalf("drift timeline diverged: %v vs %v", first, d2["delivered"])
	}
}

func TestTraceDeterminism(t *testing.T) {
	run := func() string {
		r := newRouter(t, func(c *config.Config) { c.Seed = 7 }, nil)
		lines := collectTrace(r)
		if _, err := r.Call("slack.send_message", map[string]any{"text": "budget approval for $900 because onboarding"}); err != nil {
			t.Fatalf("send: %v", err)
		}
		observeN(t, r, 3)
		if _, err := r.Call("mail.compose", map[string]any{"to": "v@x", "subj": "Quote request"}); err != nil {
			t.Fatalf("compose: %v", err)
		}
		if _, err := r.Call("vei.tick", map[string]any{"dt_ms": 30_000}); err != nil {
			t.Fatalf("tick: %v", err)
		}
		return strings.Join(*lines, "\n")
	}
	if a, b := run(), run(); a != b {
		t.Fatal("same seed and call sequence produced different traces")
	}
}

func TestClockMonotone(t *testing.T) {
	r := newRouter(t, nil, nil)
	last := r.Now()
	step := func(tool string, args map[string]any) {
		_, _ = r.Call(tool, args)
		if now := r.Now(); now < last {
			t.Fatalf("clock went backward: %d -> %d after %s", last, now, tool)
		} else {
			last = now
		}
	}
	step("vei.observe", nil)
	step("slack.read_channel", nil)
	step("vei.tick", map[string]any{"dt_ms": 0})
	step("browser.read", nil)
	step("vei.tick", map[string]any{"dt_ms": 5000})
	step("vei.observe", nil)
}

func TestUnknownToolRecorded(t *testing.T) {
	r := newRouter(t, nil, nil)
	_, err := r.Call("slurp.everything", nil)
	if toolerr.CodeOf(err) != toolerr.CodeUnknownTool {
		t.Fatalf("error = %v", err)
	}
	tail, _ := r.Store().State()["tool_calls"].([]any)
	if len(tail) != 1 {
		t.Fatalf("tool tail = %d entries, want the failed call recorded", len(tail))
	}
	entry := tail[0].(map[string]any)
	if entry["ok"] != false {
		t.Fatalf("entry = %v", entry)
	}
}

func TestDenyTools(t *testing.T) {
	r := newRouter(t, func(c *config.Config) { c.DenyTools = []string{"erp.post_payment"} }, nil)
	_, err := r.Call("erp.post_payment", map[string]any{"invoice_id": "INV-9001"})
	if toolerr.CodeOf(err) != toolerr.CodePermissionDenied {
		t.Fatalf("error = %v", err)
	}
}

func TestInvalidArgsRejected(t *testing.T) {
	r := newRouter(t, nil, nil)
	// mail.compose requires "to" and "subj".
	_, err := r.Call("mail.compose", map[string]any{"body_text": "hello"})
	if toolerr.CodeOf(err) != toolerr.CodeInvalidArgs {
		t.Fatalf("error = %v", err)
	}
}

func TestAliasPackDispatch(t *testing.T) {
	r := newRouter(t, func(c *config.Config) { c.AliasPacks = []string{"xero"} }, nil)
	po, err := r.Call("xero.create_purchase_order", map[string]any{
		"vendor": "MacroCompute",
		"lines":  []any{map[string]any{"item": "x", "qty": 1, "unit_price": 10.0}},
	})
	if err != nil {
		t.Fatalf("alias call: %v", err)
	}
	if po["po_id"] != "PO-1001" {
		t.Fatalf("po_id = %v", po["po_id"])
	}
	list, err := r.Call("erp.list_pos", nil)
	if err != nil {
		t.Fatalf("list_pos: %v", err)
	}
	if len(list["pos"].([]map[string]any)) != 1 {
		t.Fatal("alias call did not reach the base provider")
	}
}

func TestFaultInjection(t *testing.T) {
	r := newRouter(t, nil, nil)
	// Force a certain fault on one tool.
	r.registry.Get("browser.read").FaultProb = 1.0
	_, err := r.Call("browser.read", nil)
	if toolerr.CodeOf(err) != toolerr.CodeFaultInjected {
		t.Fatalf("error = %v", err)
	}
}

func TestInjectAndPending(t *testing.T) {
	r := newRouter(t, nil, nil)
	res, err := r.Call("vei.inject", map[string]any{
		"target": "slack", "dt_ms": 500,
		"payload": map[string]any{"channel": "#general", "user": "ops-bot", "text": "injected"},
	})
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	if res["target"] != "slack" {
		t.Fatalf("inject result = %v", res)
	}
	pending, _ := r.Call("vei.pending", nil)
	if pending["count"].(int) < 1 {
		t.Fatalf("pending = %v", pending)
	}
	if _, err := r.Call("vei.tick", map[string]any{"dt_ms": 1000}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if m := r.chat.LastMessage("#general"); m == nil || m.Text != "injected" {
		t.Fatalf("last #general message = %+v", m)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	r := newRouter(t, nil, nil)
	if _, err := r.Call("mail.compose", map[string]any{"to": "v@x", "subj": "Quote"}); err != nil {
		t.Fatalf("compose: %v", err)
	}
	before := r.Now()
	if before == 0 {
		t.Fatal("clock did not advance")
	}
	if _, err := r.Call("vei.reset", nil); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if r.Now() != 0 {
		t.Fatalf("clock after reset = %d", r.Now())
	}
	if r.mail.InboxLen() != 0 {
		t.Fatal("mailbox survived reset")
	}
}

func TestObserveShape(t *testing.T) {
	r := newRouter(t, nil, nil)
	obs, err := r.Call("vei.observe", map[string]any{"focus": "browser"})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	summary := obs["summary"].(string)
	if !strings.HasPrefix(summary, "Browser: ") {
		t.Fatalf("summary = %q", summary)
	}
	menu := obs["action_menu"].([]map[string]any)
	if len(menu) == 0 {
		t.Fatal("empty browser action menu")
	}

	obs, _ = r.Call("vei.observe", map[string]any{"focus": "mail"})
	if obs["summary"] != "INBOX empty" {
		t.Fatalf("mail summary = %v", obs["summary"])
	}

	obs, _ = r.Call("vei.observe", map[string]any{"focus": "slack"})
	if !strings.Contains(obs["summary"].(string), "#procurement") {
		t.Fatalf("slack summary = %v", obs["summary"])
	}
}

func TestActAndObserve(t *testing.T) {
	r := newRouter(t, nil, nil)
	obs, err := r.Call("vei.act_and_observe", map[string]any{
		"tool": "browser.click", "args": map[string]any{"node_id": "pdp"},
	})
	if err != nil {
		t.Fatalf("act_and_observe: %v", err)
	}
	result := obs["result"].(map[string]any)
	if result["title"] != "MacroBook Pro 16" {
		t.Fatalf("inner result = %v", result)
	}
	if !strings.Contains(obs["summary"].(string), "MacroBook Pro 16") {
		t.Fatalf("summary = %v", obs["summary"])
	}
}

func TestHelpListsTools(t *testing.T) {
	r := newRouter(t, nil, nil)
	res, err := r.Call("vei.help", nil)
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	if res["count"].(int) < 40 {
		t.Fatalf("tool count = %v", res["count"])
	}
}

func TestScenarioTriggerDelivered(t *testing.T) {
	scen := scenario.Default()
	scen.DerailProb = 0
	scen.Triggers = []scenario.Trigger{{
		AtMS: 2_000, Target: "slack",
		Payload: map[string]any{"channel": "#general", "user": "ops-bot", "text": "trigger fired"},
	}}
	r := newRouter(t, nil, scen)
	if _, err := r.Call("vei.tick", map[string]any{"dt_ms": 5_000}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if m := r.chat.LastMessage("#general"); m == nil || m.Text != "trigger fired" {
		t.Fatalf("last message = %+v", m)
	}
}
