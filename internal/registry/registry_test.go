package registry

import (
	"testing"

	"github.com/strangeloopcanon/vei/internal/toolerr"
)

func seed(t *testing.T) *Registry {
	t.Helper()
	r := New()
	specs := []*Spec{
		{Name: "slack.send_message", Description: "Send a message to a Slack channel"},
		{Name: "slack.fetch_thread", Description: "Fetch a message thread"},
		{Name: "mail.compose", Description: "Compose and send an email"},
		{Name: "erp.create_po", Description: "Create a purchase order"},
		{Name: "vei.observe", Description: "Observe the current focus"},
	}
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := seed(t)
	if err := r.Register(&Spec{Name: "mail.compose"}); err == nil {
		t.Fatal("duplicate registration succeeded")
	}
}

func TestFreezeForbidsRegistration(t *testing.T) {
	r := seed(t)
	r.Freeze()
	if err := r.Register(&Spec{Name: "late.tool"}); err == nil {
		t.Fatal("post-freeze registration succeeded")
	}
}

func TestSearchSubstringOfName(t *testing.T) {
	r := seed(t)
	got := r.Search("send_message", 3)
	if len(got) == 0 || got[0].Name != "slack.send_message" {
		t.Fatalf("Search(send_message) head = %v", names(got))
	}
}

func TestSearchTokenMatch(t *testing.T) {
	r := seed(t)
	got := r.Search("compose email", 3)
	if len(got) == 0 || got[0].Name != "mail.compose" {
		t.Fatalf("Search(compose email) head = %v", names(got))
	}
}

func TestSearchEmptyQueryAlphabeticalHead(t *testing.T) {
	r := seed(t)
	got := r.Search("", 2)
	if len(got) != 2 || got[0].Name != "erp.create_po" {
		t.Fatalf("empty query head = %v", names(got))
	}
}

func TestSearchNoHitFallsBack(t *testing.T) {
	r := seed(t)
	got := r.Search("zzz-nothing", 2)
	if len(got) != 2 || got[0].Name != "erp.create_po" {
		t.Fatalf("no-hit fallback = %v", names(got))
	}
}

func TestSearchVeiBiasBreaksTies(t *testing.T) {
	r := New()
	if err := r.Register(&Spec{Name: "aaa.observe", Description: ""}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&Spec{Name: "vei.observe", Description: ""}); err != nil {
		t.Fatal(err)
	}
	got := r.Search("observe", 2)
	if got[0].Name != "vei.observe" {
		t.Fatalf("vei bias not applied: %v", names(got))
	}
}

func TestValidateArgs(t *testing.T) {
	r := New()
	err := r.Register(&Spec{
		Name:        "mail.compose",
		Description: "Compose an email",
		ArgsSchema: ObjectSchema([]string{"to", "subj"}, map[string]any{
			"to":        map[string]any{"type": "string"},
			"subj":      map[string]any{"type": "string"},
			"body_text": map[string]any{"type": "string"},
		}),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.ValidateArgs("mail.compose", map[string]any{"to": "a@b.example", "subj": "Quote"}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
	err = r.ValidateArgs("mail.compose", map[string]any{"to": "a@b.example"})
	if err == nil {
		t.Fatal("missing required arg accepted")
	}
	if !toolerr.Is(err, toolerr.CodeInvalidArgs) {
		t.Fatalf("error code = %s, want invalid_args", toolerr.CodeOf(err))
	}
	// Tools without a schema accept anything.
	if err := r.ValidateArgs("unknown.tool", map[string]any{"x": 1}); err != nil {
		t.Fatalf("schemaless validation failed: %v", err)
	}
}

func names(specs []*Spec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}
