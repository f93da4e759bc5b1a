package router

import (
	"fmt"
)

// observe drains at most one due event, applies the step grace, and
// composes the observation for the requested focus.
func (r *Router) observe(focus string) map[string]any {
	r.drainOne()
	r.bus.Advance(StepGraceMS)
	r.trace.Flush()

	if focus == "" {
		focus = "browser"
	}
	return map[string]any{
		"time_ms":           r.bus.Now(),
		"focus":             focus,
		"pending_events":    r.bus.PendingCount(""),
		"pending_by_target": r.bus.PendingTargets(),
		"summary":           r.summary(focus),
		"action_menu":       r.actionMenu(focus),
	}
}

func (r *Router) summary(focus string) string {
	switch focus {
	case "browser":
		if n := r.browser.Current(); n != nil {
			return fmt.Sprintf("Browser: %s — %s", n.Title, n.Excerpt)
		}
		return "Browser: no page"
	case "slack":
		if m := r.chat.LastMessage(r.scen.InitialChannel); m != nil {
			return fmt.Sprintf("%s %s: %s", r.scen.InitialChannel, m.User, m.Text)
		}
		return r.scen.InitialChannel + " is quiet"
	case "mail":
		snap := r.mail.StateSnapshot()
		inbox, _ := snap["inbox"].([]map[string]any)
		if len(inbox) == 0 {
			return "INBOX empty"
		}
		top := inbox[0]
		return fmt.Sprintf("INBOX: %s — %s", top["from"], top["subj"])
	case "erp", "crm":
		for _, s := range r.snaps {
			if s.Name() == focus {
				return fmt.Sprintf("%s: %v", focus, s.StateSnapshot())
			}
		}
	}
	return ""
}

// actionMenu lists the affordances for the focus: live page affordances
// for the browser, a static schema list for service focuses.
func (r *Router) actionMenu(focus string) []map[string]any {
	if focus == "browser" {
		var menu []map[string]any
		if n := r.browser.Current(); n != nil {
			for _, a := range n.Affordances {
				item := map[string]any{"tool": a.Tool, "label": a.Label}
				if a.NodeID != "" {
					item["args"] = map[string]any{"node_id": a.NodeID}
				}
				menu = append(menu, item)
			}
		}
		return menu
	}

	var names []string
	switch focus {
	case "slack":
		names = []string{"slack.send_message"}
	case "mail":
		names = []string{"mail.compose"}
	case "erp":
		names = []string{"erp.create_po", "erp.list_pos", "erp.submit_invoice", "erp.match_three_way"}
	case "crm":
		names = []string{"crm.create_contact", "crm.create_company", "crm.create_deal", "crm.update_deal_stage", "crm.log_activity"}
	}
	menu := make([]map[string]any, 0, len(names))
	for _, name := range names {
		spec := r.registry.Get(name)
		if spec == nil {
			continue
		}
		item := map[string]any{"tool": spec.Name, "label": spec.Description}
		if spec.ArgsSchema != nil {
			item["args_schema"] = spec.ArgsSchema
		}
		menu = append(menu, item)
	}
	return menu
}
