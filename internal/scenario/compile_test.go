package scenario

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleYAML = `
meta:
  name: tight-budget
budget:
  cap_usd: 1000
slack:
  initial_message: "Need a quote under $1000."
  derail_prob: 0.2
  channels: ["#procurement"]
vendors:
  - name: MacroCompute
    email: sales@macrocompute.example
    price: [900, 1100]
    eta_days: [3, 9]
    templates:
      - "Quote from {vendor}: {price}, ETA {eta} business days."
triggers:
  - at_ms: 5000
    target: slack
    payload: {channel: "#procurement", text: "ping"}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	s, err := LoadFile(writeFile(t, "scene.yaml", sampleYAML), 42042)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "tight-budget" || s.BudgetCapUSD != 1000 || s.DerailProb != 0.2 {
		t.Fatalf("compiled scenario = %+v", s)
	}
	if len(s.VendorReplies) != 1 {
		t.Fatalf("vendor replies = %v", s.VendorReplies)
	}
	reply := s.VendorReplies[0]
	if !strings.Contains(reply, "MacroCompute") || !strings.Contains(reply, "$") || !strings.Contains(reply, "ETA") {
		t.Fatalf("template not expanded: %q", reply)
	}
	if len(s.Triggers) != 1 || s.Triggers[0].AtMS != 5000 || s.Triggers[0].Target != "slack" {
		t.Fatalf("triggers = %+v", s.Triggers)
	}
}

func TestCompileDeterministicSampling(t *testing.T) {
	path := writeFile(t, "scene.yaml", sampleYAML)
	a, err := LoadFile(path, 7)
	if err != nil {
		t.Fatal(err)
	}
	b, err := LoadFile(path, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.VendorReplies, b.VendorReplies) {
		t.Fatalf("same seed produced different replies:\n%v\n%v", a.VendorReplies, b.VendorReplies)
	}
	c, err := LoadFile(path, 8)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a.VendorReplies, c.VendorReplies) {
		t.Log("different seeds produced identical samples (possible, but suspicious)")
	}
}

func TestLoadJSONC(t *testing.T) {
	content := `{
  // comment stripped by hujson
  "budget": {"cap_usd": 2500},
  "slack": {"channels": ["#ops", "#general"]},
}`
	s, err := LoadFile(writeFile(t, "scene.jsonc", content), 1)
	if err != nil {
		t.Fatal(err)
	}
	if s.BudgetCapUSD != 2500 || s.InitialChannel != "#ops" {
		t.Fatalf("jsonc scenario = cap %d channel %s", s.BudgetCapUSD, s.InitialChannel)
	}
}

func TestDefaultsInherited(t *testing.T) {
	s := Compile(&DSL{}, 42042)
	if len(s.VendorReplies) != 4 {
		t.Fatalf("default vendor replies = %d, want 4", len(s.VendorReplies))
	}
	if s.BrowserNodes["home"] == nil || s.BrowserNodes["pdp"] == nil {
		t.Fatal("default browser graph missing")
	}
	if s.BrowserNodes["pdp"].Next[BackKey] != "home" {
		t.Fatal("pdp BACK edge missing")
	}
	if len(s.Identity.Users) == 0 || len(s.Tickets) == 0 {
		t.Fatal("default twins not seeded")
	}
}
