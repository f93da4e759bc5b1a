package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/strangeloopcanon/vei/internal/simrand"
)

// DSL is the on-disk scene description. Prices and ETAs may be plain
// numbers or [lo, hi] ranges; ranges are sampled deterministically from the
// compile seed.
type DSL struct {
	Meta   map[string]any `json:"meta" yaml:"meta"`
	Budget struct {
		CapUSD            int64 `json:"cap_usd" yaml:"cap_usd"`
		ApprovalThreshold int64 `json:"approval_threshold" yaml:"approval_threshold"`
	} `json:"budget" yaml:"budget"`
	Slack struct {
		InitialMessage string   `json:"initial_message" yaml:"initial_message"`
		DerailProb     float64  `json:"derail_prob" yaml:"derail_prob"`
		Channels       []string `json:"channels" yaml:"channels"`
	} `json:"slack" yaml:"slack"`
	Mail struct {
		Folders []string `json:"folders" yaml:"folders"`
	} `json:"mail" yaml:"mail"`
	Vendors        []VendorDSL      `json:"vendors" yaml:"vendors"`
	BrowserNodes   map[string]*Node `json:"browser_nodes" yaml:"browser_nodes"`
	Participants   []string         `json:"participants" yaml:"participants"`
	Documents      []Document       `json:"documents" yaml:"documents"`
	CalendarEvents []CalendarEvent  `json:"calendar_events" yaml:"calendar_events"`
	Tickets        []Ticket         `json:"tickets" yaml:"tickets"`
	Triggers       []Trigger        `json:"triggers" yaml:"triggers"`
	Identity       Identity         `json:"identity" yaml:"identity"`
	ServiceDesk    ServiceDesk      `json:"servicedesk" yaml:"servicedesk"`
}

// VendorDSL describes one vendor with templated replies.
type VendorDSL struct {
	Name      string   `json:"name" yaml:"name"`
	Email     string   `json:"email" yaml:"email"`
	Price     any      `json:"price" yaml:"price"`
	EtaDays   any      `json:"eta_days" yaml:"eta_days"`
	Templates []string `json:"templates" yaml:"templates"`
}

// LoadFile parses a scene file (.yaml/.yml, or JSON/JSONC otherwise) and
// compiles it with seed.
func LoadFile(path string, seed uint32) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var d DSL
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parse scenario yaml: %w", err)
		}
	default:
		std, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("parse scenario jsonc: %w", err)
		}
		if err := json.Unmarshal(std, &d); err != nil {
			return nil, fmt.Errorf("parse scenario json: %w", err)
		}
	}
	return Compile(&d, seed), nil
}

// Compile turns a DSL into a runtime Scenario, sampling any price/eta
// ranges with an LCG stream seeded by seed. Unset sections inherit the
// default scenario so every service has state to serve.
func Compile(d *DSL, seed uint32) *Scenario {
	s := Default()
	rng := simrand.New(seed)

	if name, ok := d.Meta["name"].(string); ok && name != "" {
		s.Name = name
	}
	if len(d.Meta) > 0 {
		meta := map[string]any{}
		for k, v := range d.Meta {
			meta[k] = v
		}
		s.Metadata = meta
	}
	if d.Budget.CapUSD > 0 {
		s.BudgetCapUSD = d.Budget.CapUSD
	}
	if d.Budget.ApprovalThreshold > 0 {
		s.Metadata["approval_threshold"] = d.Budget.ApprovalThreshold
	}
	if d.Slack.InitialMessage != "" {
		s.InitialMessage = d.Slack.InitialMessage
	}
	if d.Slack.DerailProb > 0 {
		s.DerailProb = d.Slack.DerailProb
	}
	if len(d.Slack.Channels) > 0 {
		s.Channels = d.Slack.Channels
		s.InitialChannel = d.Slack.Channels[0]
	}
	if len(d.Mail.Folders) > 0 {
		s.MailFolders = d.Mail.Folders
	}
	if len(d.Vendors) > 0 {
		s.VendorReplies = nil
		for _, v := range d.Vendors {
			price := sampleFloat(rng, v.Price, 3199)
			eta := sampleInt(rng, v.EtaDays, 5)
			if v.Name != "" {
				s.VendorName = v.Name
			}
			if v.Email != "" {
				s.VendorEmail = v.Email
			}
			for _, tpl := range v.Templates {
				s.VendorReplies = append(s.VendorReplies, expandTemplate(tpl, v.Name, price, eta))
			}
		}
		if len(s.VendorReplies) == 0 {
			s.VendorReplies = Default().VendorReplies
		}
	}
	if len(d.BrowserNodes) > 0 {
		s.BrowserNodes = d.BrowserNodes
		if _, ok := s.BrowserNodes["home"]; ok {
			s.BrowserStart = "home"
		} else {
			// No "home" node: start at the lexically first.
			for id := range s.BrowserNodes {
				if s.BrowserStart == "" || id < s.BrowserStart {
					s.BrowserStart = id
				}
			}
		}
	}
	if len(d.Participants) > 0 {
		s.Participants = d.Participants
	}
	if len(d.Documents) > 0 {
		s.Documents = d.Documents
	}
	if len(d.CalendarEvents) > 0 {
		s.CalendarEvents = d.CalendarEvents
	}
	if len(d.Tickets) > 0 {
		s.Tickets = d.Tickets
	}
	if len(d.Triggers) > 0 {
		s.Triggers = d.Triggers
	}
	if len(d.Identity.Users) > 0 || len(d.Identity.Groups) > 0 || len(d.Identity.Applications) > 0 {
		s.Identity = d.Identity
	}
	if len(d.ServiceDesk.Incidents) > 0 || len(d.ServiceDesk.Requests) > 0 {
		s.ServiceDesk = d.ServiceDesk
	}
	return s
}

func expandTemplate(tpl, vendor string, price float64, eta int64) string {
	out := strings.ReplaceAll(tpl, "{price}", fmt.Sprintf("$%.2f", price))
	out = strings.ReplaceAll(out, "{eta}", fmt.Sprintf("%d", eta))
	out = strings.ReplaceAll(out, "{vendor}", vendor)
	return out
}

// sampleFloat resolves a number-or-[lo,hi] DSL value.
func sampleFloat(rng *simrand.Stream, v any, fallback float64) float64 {
	lo, hi, ok := rangeOf(v)
	if !ok {
		if f, ok := numberOf(v); ok {
			return f
		}
		return fallback
	}
	// Sampled to whole cents so the value survives formatting round-trips.
	cents := rng.IntN(int64(lo*100), int64(hi*100))
	return float64(cents) / 100
}

func sampleInt(rng *simrand.Stream, v any, fallback int64) int64 {
	lo, hi, ok := rangeOf(v)
	if !ok {
		if f, ok := numberOf(v); ok {
			return int64(f)
		}
		return fallback
	}
	return rng.IntN(int64(lo), int64(hi))
}

func rangeOf(v any) (lo, hi float64, ok bool) {
	list, isList := v.([]any)
	if !isList || len(list) != 2 {
		return 0, 0, false
	}
	lo, okLo := numberOf(list[0])
	hi, okHi := numberOf(list[1])
	return lo, hi, okLo && okHi
}

func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
