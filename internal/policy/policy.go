// Package policy promotes monitor findings to severity-tagged policy
// findings. The promotion map is configurable per finding code.
package policy

import (
	"strings"

	"github.com/strangeloopcanon/vei/internal/monitors"
)

// Severities, in increasing order of concern.
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// Finding is a promoted monitor finding.
type Finding struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Monitor  string `json:"monitor"`
	Message  string `json:"message"`
	Tool     string `json:"tool,omitempty"`
	TimeMS   int64  `json:"time_ms"`
}

// Engine holds the promotion map.
type Engine struct {
	promotions map[string]string
}

func defaultPromotions() map[string]string {
	return map[string]string{
		monitors.CodeApprovalMissingAmount: SeverityWarn,
		monitors.CodeApprovalNoReason:      SeverityWarn,
		monitors.CodePIIDetected:           SeverityError,
		monitors.CodeGenericSubject:        SeverityInfo,
		monitors.CodeRepetition:            SeverityWarn,
		monitors.CodeMonitorError:          SeverityError,
	}
}

// NewEngine builds an engine from the defaults plus overrides.
func NewEngine(overrides map[string]string) *Engine {
	p := defaultPromotions()
	for code, sev := range overrides {
		p[code] = sev
	}
	return &Engine{promotions: p}
}

// ParsePromotions parses comma-separated "code:severity" pairs. Malformed
// entries are skipped.
func ParsePromotions(s string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		code, sev, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || code == "" || sev == "" {
			continue
		}
		out[code] = sev
	}
	return out
}

// Evaluate promotes each monitor finding. Codes without a mapping default
// to info; the underlying finding is never altered.
func (e *Engine) Evaluate(found []monitors.Finding) []Finding {
	out := make([]Finding, 0, len(found))
	for _, f := range found {
		sev, ok := e.promotions[f.Code]
		if !ok {
			sev = SeverityInfo
		}
		out = append(out, Finding{
			Code: f.Code, Severity: sev, Monitor: f.Monitor,
			Message: f.Message, Tool: f.Tool, TimeMS: f.TimeMS,
		})
	}
	return out
}
