// Package drift injects deterministic background activity: chatter in
// channels, newsletter mail, ticket churn. A given (seed, mode) pair
// always yields the same drift timeline.
package drift

import (
	"github.com/strangeloopcanon/vei/internal/bus"
	"github.com/strangeloopcanon/vei/internal/simrand"
)

// Modes.
const (
	ModeOff        = "off"
	ModeLight      = "light"
	ModeSlow       = "slow"
	ModeFast       = "fast"
	ModeAggressive = "aggressive"
)

// Job is one recurring background activity source.
type Job struct {
	Name      string
	Target    string
	CadenceMS int64
	JitterMS  int64
	Templates []bus.Payload
}

// Engine owns the drift jobs and their re-arming cycle.
type Engine struct {
	bus       *bus.Bus
	rng       *simrand.Stream
	mode      string
	jobs      map[string]*Job
	primed    bool
	scheduled []string
	delivered map[string]int
}

// New creates an engine. The stream should be independent of the main
// simulation stream so drift draws do not perturb provider draws.
func New(b *bus.Bus, rng *simrand.Stream, mode string) *Engine {
	if mode == "" {
		mode = ModeOff
	}
	return &Engine{
		bus: b, rng: rng, mode: mode,
		jobs:      map[string]*Job{},
		delivered: map[string]int{},
	}
}

func baseJobs() []*Job {
	return []*Job{
		{
			Name: "slack-chatter", Target: "slack", CadenceMS: 30_000, JitterMS: 5_000,
			Templates: []bus.Payload{
				{"channel": "#general", "user": "sam.lee", "text": "Anyone joining the platform guild call?"},
				{"channel": "#general", "user": "dana.ops", "text": "Reminder: expense reports due Friday."},
				{"channel": "#general", "user": "sam.lee", "text": "Build times look better after the cache change."},
			},
		},
		{
			Name: "mail-newsletter", Target: "mail", CadenceMS: 45_000, JitterMS: 10_000,
			Templates: []bus.Payload{
				{"from": "newsletter@vendorweekly.example", "subj": "Vendor Weekly digest", "body_text": "Top procurement stories this week."},
				{"from": "it-notices@vei.example", "subj": "Scheduled maintenance window", "body_text": "SSO maintenance Saturday 02:00 UTC."},
			},
		},
		{
			Name: "ticket-churn", Target: "tickets", CadenceMS: 90_000, JitterMS: 15_000,
			Templates: []bus.Payload{
				{"ticket_id": "T-100", "status": "IN_PROGRESS"},
				{"ticket_id": "T-100", "status": "WAITING"},
			},
		},
	}
}

func securityJob() *Job {
	return &Job{
		Name: "security-alert", Target: "slack", CadenceMS: 60_000, JitterMS: 10_000,
		Templates: []bus.Payload{
			{"channel": "#general", "user": "sec-bot", "text": "Unusual sign-in detected for u-old; review in the identity console."},
			{"channel": "#general", "user": "sec-bot", "text": "Phishing campaign reported; do not click invoice links from unknown senders."},
		},
	}
}

// Prime registers the mode's job set and arms each job once. It is a
// no-op on repeat calls and when the mode is off.
func (e *Engine) Prime() {
	if e.primed || e.mode == ModeOff {
		return
	}
	e.primed = true

	jobs := baseJobs()
	if e.mode == ModeFast || e.mode == ModeAggressive {
		jobs = append(jobs, securityJob())
	}
	for _, j := range jobs {
		switch e.mode {
		case ModeLight, ModeSlow:
			j.CadenceMS *= 2
		case ModeAggressive:
			j.CadenceMS /= 2
		}
		e.jobs[j.Name] = j
		e.arm(j)
	}
}

// arm schedules one instance of the job: cadence plus jitter, payload
// drawn uniformly from the templates.
func (e *Engine) arm(j *Job) {
	delay := j.CadenceMS
	if j.JitterMS > 0 {
		delay += e.rng.IntN(0, j.JitterMS)
	}
	tmpl := j.Templates[e.rng.IntN(0, int64(len(j.Templates)-1))]
	payload := bus.Payload{"drift": true, "drift_job": j.Name}
	for k, v := range tmpl {
		payload[k] = v
	}
	e.bus.Schedule(delay, j.Target, payload)
	e.scheduled = append(e.scheduled, j.Name)
}

// IsDrift reports whether a payload came from a drift job.
func IsDrift(payload bus.Payload) bool {
	v, _ := payload["drift"].(bool)
	return v
}

// HandleDelivery records the delivery and re-arms the job. It returns the
// job name, or false for payloads that are not drift-tagged.
func (e *Engine) HandleDelivery(payload bus.Payload) (string, bool) {
	if !IsDrift(payload) {
		return "", false
	}
	name, _ := payload["drift_job"].(string)
	j, ok := e.jobs[name]
	if !ok {
		return name, true
	}
	e.delivered[name]++
	e.arm(j)
	return name, true
}

// DeliveredCount reports deliveries per job name ("" totals all jobs).
func (e *Engine) DeliveredCount(name string) int {
	if name == "" {
		total := 0
		for _, n := range e.delivered {
			total += n
		}
		return total
	}
	return e.delivered[name]
}

// ScheduledHistory returns the job names in scheduling order.
func (e *Engine) ScheduledHistory() []string {
	return append([]string(nil), e.scheduled...)
}

// Mode returns the configured drift mode.
func (e *Engine) Mode() string { return e.mode }
