// Package scenario defines the immutable simulation seed and the scene DSL
// compiler that produces it.
package scenario

// Affordance is a clickable item declared on a browser node.
type Affordance struct {
	Tool   string `json:"tool" yaml:"tool"`
	NodeID string `json:"node_id,omitempty" yaml:"node_id"`
	Label  string `json:"label" yaml:"label"`
}

// Node is one page in the virtual browser graph. Next maps an action
// (usually a node id, or the special "BACK" key) to an adjacent node.
type Node struct {
	URL         string            `json:"url" yaml:"url"`
	Title       string            `json:"title" yaml:"title"`
	Excerpt     string            `json:"excerpt" yaml:"excerpt"`
	Affordances []Affordance      `json:"affordances" yaml:"affordances"`
	Next        map[string]string `json:"next" yaml:"next"`
}

// BackKey is the reserved Next key recording a node's parent.
const BackKey = "BACK"

// Trigger is a pre-scheduled bus event.
type Trigger struct {
	AtMS    int64          `json:"at_ms" yaml:"at_ms"`
	Target  string         `json:"target" yaml:"target"`
	Payload map[string]any `json:"payload" yaml:"payload"`
}

// Document seeds the docs service.
type Document struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}

// CalendarEvent seeds the calendar service.
type CalendarEvent struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	StartMS   int64    `json:"start_ms" yaml:"start_ms"`
	Attendees []string `json:"attendees" yaml:"attendees"`
}

// Ticket seeds the ticket service.
type Ticket struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Status   string `json:"status" yaml:"status"`
	Assignee string `json:"assignee" yaml:"assignee"`
}

// User seeds the identity service.
type User struct {
	ID     string `json:"id" yaml:"id"`
	Email  string `json:"email" yaml:"email"`
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
}

// Group seeds the identity service.
type Group struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members" yaml:"members"`
}

// Application seeds the identity service.
type Application struct {
	ID          string   `json:"id" yaml:"id"`
	Label       string   `json:"label" yaml:"label"`
	Assignments []string `json:"assignments" yaml:"assignments"`
}

// Identity groups the identity seed data.
type Identity struct {
	Users        []User        `json:"users" yaml:"users"`
	Groups       []Group       `json:"groups" yaml:"groups"`
	Applications []Application `json:"applications" yaml:"applications"`
}

// Incident seeds the service desk.
type Incident struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Severity string `json:"severity" yaml:"severity"`
	Status   string `json:"status" yaml:"status"`
}

// Request seeds the service desk.
type Request struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Status string `json:"status" yaml:"status"`
}

// ServiceDesk groups the service-desk seed data.
type ServiceDesk struct {
	Incidents []Incident `json:"incidents" yaml:"incidents"`
	Requests  []Request  `json:"requests" yaml:"requests"`
}

// Scenario is the immutable seed for one simulation.
type Scenario struct {
	Name           string
	BudgetCapUSD   int64
	DerailProb     float64
	InitialChannel string
	InitialMessage string
	Channels       []string
	MailFolders    []string
	VendorName     string
	VendorEmail    string
	VendorReplies  []string
	BrowserNodes   map[string]*Node
	BrowserStart   string
	Participants   []string
	Documents      []Document
	CalendarEvents []CalendarEvent
	Tickets        []Ticket
	Triggers       []Trigger
	Identity       Identity
	ServiceDesk    ServiceDesk
	Metadata       map[string]any
}

// Default is the built-in procurement scenario: gather a laptop quote,
// get budget approval on Slack, raise the PO.
func Default() *Scenario {
	return &Scenario{
		Name:           "macrobook-procurement",
		BudgetCapUSD:   5000,
		DerailProb:     0.08,
		InitialChannel: "#procurement",
		InitialMessage: "We need a MacroBook Pro 16 for the new hire. Gather a quote, get budget approval here, then raise the PO.",
		Channels:       []string{"#procurement", "#general"},
		MailFolders:    []string{"INBOX", "Sent"},
		VendorName:     "MacroCompute",
		VendorEmail:    "sales@macrocompute.example",
		VendorReplies: []string{
			"Thanks for reaching out! The MacroBook Pro 16 is $3,199.00 per unit. ETA 5 business days. — MacroCompute Sales",
			"Quote: MacroBook Pro 16 at $3,199.00. ETA 7 business days from PO receipt. Best, MacroCompute.",
			"Hello! Current pricing for the MacroBook Pro 16 is $3,249.00 with delivery ETA 4 business days.",
			"Our quote comes to $3,199.00, ETA 6 business days. Let us know if you need anything for the PO. — MacroCompute",
		},
		BrowserNodes: map[string]*Node{
			"home": {
				URL:     "https://vei.example/",
				Title:   "MacroCompute Store — Search",
				Excerpt: "Results for \"MacroBook Pro 16\": 1 product found.",
				Affordances: []Affordance{
					{Tool: "browser.click", NodeID: "pdp", Label: "Open MacroBook Pro 16 product page button"},
				},
				Next: map[string]string{"pdp": "pdp"},
			},
			"pdp": {
				URL:     "https://vei.example/pdp/macrobook-pro-16",
				Title:   "MacroBook Pro 16",
				Excerpt: "MacroBook Pro 16 — $3,199.00. In stock. ETA 5 business days.",
				Affordances: []Affordance{
					{Tool: "browser.click", NodeID: "specs", Label: "Full specifications button"},
					{Tool: "browser.back", Label: "Back to results"},
				},
				Next: map[string]string{"specs": "specs", BackKey: "home"},
			},
			"specs": {
				URL:     "https://vei.example/pdp/macrobook-pro-16/specs",
				Title:   "MacroBook Pro 16 — Specifications",
				Excerpt: "16-inch display, 36GB RAM, 1TB SSD. Ships from the Fremont warehouse.",
				Next:    map[string]string{BackKey: "pdp"},
			},
		},
		BrowserStart: "home",
		Participants: []string{"dana.ops", "sam.lee", "priya.fin"},
		Documents: []Document{
			{ID: "doc-1", Title: "Procurement Policy", Body: "Purchases above the budget cap require CFO sign-off."},
		},
		CalendarEvents: []CalendarEvent{
			{ID: "ev-1", Title: "Procurement sync", StartMS: 3_600_000, Attendees: []string{"dana.ops", "priya.fin"}},
		},
		Tickets: []Ticket{
			{ID: "T-100", Title: "New hire laptop", Status: "OPEN", Assignee: "dana.ops"},
		},
		Identity: Identity{
			Users: []User{
				{ID: "u-dana", Email: "dana.ops@vei.example", Name: "Dana Ops", Status: "ACTIVE"},
				{ID: "u-sam", Email: "sam.lee@vei.example", Name: "Sam Lee", Status: "ACTIVE"},
				{ID: "u-old", Email: "former@vei.example", Name: "Former Employee", Status: "DEPROVISIONED"},
			},
			Groups: []Group{
				{ID: "g-eng", Name: "Engineering", Members: []string{"u-sam"}},
			},
			Applications: []Application{
				{ID: "app-erp", Label: "ERP", Assignments: []string{"u-dana"}},
			},
		},
		ServiceDesk: ServiceDesk{
			Incidents: []Incident{
				{ID: "INC-1", Title: "VPN flapping in EU region", Severity: "SEV3", Status: "OPEN"},
			},
			Requests: []Request{
				{ID: "REQ-1", Title: "Software license request", Status: "PENDING"},
			},
		},
		Metadata: map[string]any{"scenario": "macrobook-procurement", "success_mode": "email"},
	}
}
