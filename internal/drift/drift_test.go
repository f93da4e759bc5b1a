package drift

import (
	"reflect"
	"testing"

	"github.com/strangeloopcanon/vei/internal/bus"
	"github.com/strangeloopcanon/vei/internal/simrand"
)

// runTimeline primes an engine and delivers everything due within the
// window, returning (due, job) pairs.
func runTimeline(seed uint32, mode string, windowMS int64) [][2]any {
	b := bus.New()
	e := New(b, simrand.New(seed), mode)
	e.Prime()

	var timeline [][2]any
	b.Advance(windowMS)
	for {
		entry, ok := b.NextIfDue()
		if !ok {
			break
		}
		name, _ := e.HandleDelivery(entry.Payload)
		timeline = append(timeline, [2]any{entry.Due, name})
		if entry.Due > windowMS {
			break
		}
	}
	return timeline
}

func TestDriftOffSchedulesNothing(t *testing.T) {
	b := bus.New()
	e := New(b, simrand.New(1), ModeOff)
	e.Prime()
	if b.PendingCount("") != 0 {
		t.Fatalf("off mode scheduled %d entries", b.PendingCount(""))
	}
}

func TestPrimeIsIdempotent(t *testing.T) {
	b := bus.New()
	e := New(b, simrand.New(1), ModeFast)
	e.Prime()
	n := b.PendingCount("")
	e.Prime()
	if b.PendingCount("") != n {
		t.Fatalf("second Prime changed pending count: %d -> %d", n, b.PendingCount(""))
	}
	// fast mode carries the security-alert job on top of the base three.
	if n != 4 {
		t.Fatalf("fast mode armed %d jobs, want 4", n)
	}
}

func TestLightModeStretchesCadence(t *testing.T) {
	fast := New(bus.New(), simrand.New(7), ModeFast)
	fast.Prime()
	light := New(bus.New(), simrand.New(7), ModeLight)
	light.Prime()
	if fast.jobs["slack-chatter"].CadenceMS*2 != light.jobs["slack-chatter"].CadenceMS {
		t.Fatalf("cadences fast=%d light=%d", fast.jobs["slack-chatter"].CadenceMS, light.jobs["slack-chatter"].CadenceMS)
	}
	if _, ok := light.jobs["security-alert"]; ok {
		t.Fatal("light mode should not carry the security-alert job")
	}
}

func TestDriftTimelineDeterministic(t *testing.T) {
	a := runTimeline(4242, ModeFast, 120_000)
	b := runTimeline(4242, ModeFast, 120_000)
	if len(a) == 0 {
		t.Fatal("no drift delivered in 120s window")
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed+mode produced different timelines:\n%v\n%v", a, b)
	}
	c := runTimeline(4243, ModeFast, 120_000)
	if reflect.DeepEqual(a, c) {
		t.Fatal("different seeds produced identical timelines")
	}
}

func TestDeliveryReArmsJob(t *testing.T) {
	b := bus.New()
	e := New(b, simrand.New(9), ModeFast)
	e.Prime()
	before := len(e.ScheduledHistory())

	b.Advance(300_000)
	delivered := 0
	for {
		entry, ok := b.NextIfDue()
		if !ok || entry.Due > 300_000 {
			break
		}
		if _, ok := e.HandleDelivery(entry.Payload); ok {
			delivered++
		}
	}
	if delivered == 0 {
		t.Fatal("nothing delivered")
	}
	if len(e.ScheduledHistory()) != before+delivered {
		t.Fatalf("scheduled history grew by %d, want %d", len(e.ScheduledHistory())-before, delivered)
	}
	if e.DeliveredCount("") != delivered {
		t.Fatalf("delivered count = %d, want %d", e.DeliveredCount(""), delivered)
	}
}
