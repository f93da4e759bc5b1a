package bus

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Delivery order always matches (due asc, insertion order) regardless of the
// order and values of scheduled delays.
func TestDeliveryOrderProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200

	properties := gopter.NewProperties(params)

	properties.Property("drain order is (due, seq) sorted", prop.ForAll(
		func(delays []int64) bool {
			b := New()
			type key struct{ due, seq int64 }
			var want []key
			for i, d := range delays {
				e := b.Schedule(d%5000, "t", Payload{"i": i})
				want = append(want, key{e.Due, e.Seq})
			}
			sort.Slice(want, func(i, j int) bool {
				if want[i].due != want[j].due {
					return want[i].due < want[j].due
				}
				return want[i].seq < want[j].seq
			})
			b.Advance(5000)
			for _, w := range want {
				e, ok := b.NextIfDue()
				if !ok || e.Due != w.due || e.Seq != w.seq {
					return false
				}
			}
			_, ok := b.NextIfDue()
			return !ok
		},
		gen.SliceOf(gen.Int64Range(0, 4999)),
	))

	properties.TestingRun(t)
}
