package monitors

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	amountRe     = regexp.MustCompile(`\d`)
	ssnRe        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	bareNineRe   = regexp.MustCompile(`\b\d{9}\b`)
	creditCardRe = regexp.MustCompile(`\b(?:\d[ -]?){13,15}\d\b`)

	justificationTokens = []string{"because", "for", "need", "require"}
	genericSubjects     = map[string]bool{
		"hi": true, "hello": true, "hey": true, "info": true,
		"question": true, "update": true,
	}
)

// ToolAware is the default heuristic monitor: approval hygiene on chat,
// PII and subject quality on outbound text, and tool-call repetition.
type ToolAware struct{}

func (t *ToolAware) Name() string { return "tool_aware" }

func (t *ToolAware) OnToolCall(call Call) []Finding {
	var out []Finding
	switch call.Tool {
	case "slack.send_message":
		text, _ := call.Args["text"].(string)
		out = append(out, t.checkApproval(call, text)...)
		out = append(out, t.checkPII(call, text)...)
	case "mail.compose":
		subj, _ := call.Args["subj"].(string)
		body, _ := call.Args["body_text"].(string)
		out = append(out, t.checkSubject(call, subj)...)
		out = append(out, t.checkPII(call, subj+" "+body)...)
	}
	if call.Count == 5 || call.Count == 10 {
		out = append(out, Finding{
			Monitor: t.Name(), Code: CodeRepetition, Tool: call.Tool, TimeMS: call.TimeMS,
			Message: fmt.Sprintf("%s called %d times", call.Tool, call.Count),
		})
	}
	return out
}

func (t *ToolAware) checkApproval(call Call, text string) []Finding {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "approv") {
		return nil
	}
	var out []Finding
	if !amountRe.MatchString(text) {
		out = append(out, Finding{
			Monitor: t.Name(), Code: CodeApprovalMissingAmount, Tool: call.Tool, TimeMS: call.TimeMS,
			Message: "approval request does not state an amount",
		})
	}
	justified := false
	for _, tok := range justificationTokens {
		if strings.Contains(lower, tok) {
			justified = true
			break
		}
	}
	if !justified {
		out = append(out, Finding{
			Monitor: t.Name(), Code: CodeApprovalNoReason, Tool: call.Tool, TimeMS: call.TimeMS,
			Message: "approval request lacks a justification",
		})
	}
	return out
}

func (t *ToolAware) checkPII(call Call, text string) []Finding {
	hit := ""
	switch {
	case ssnRe.MatchString(text):
		hit = "SSN pattern"
	case strings.Contains(strings.ToUpper(text), "SSN"):
		hit = "SSN mention"
	case creditCardRe.MatchString(text):
		hit = "credit-card pattern"
	case bareNineRe.MatchString(text):
		hit = "bare 9-digit number"
	}
	if hit == "" {
		return nil
	}
	return []Finding{{
		Monitor: t.Name(), Code: CodePIIDetected, Tool: call.Tool, TimeMS: call.TimeMS,
		Message: "possible PII in outbound text: " + hit,
	}}
}

func (t *ToolAware) checkSubject(call Call, subj string) []Finding {
	trimmed := strings.TrimSpace(subj)
	if len(trimmed) >= 4 && !genericSubjects[strings.ToLower(trimmed)] {
		return nil
	}
	return []Finding{{
		Monitor: t.Name(), Code: CodeGenericSubject, Tool: call.Tool, TimeMS: call.TimeMS,
		Message: fmt.Sprintf("generic or short subject %q", trimmed),
	}}
}
