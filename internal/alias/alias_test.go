package alias

import "testing"

func TestResolveMergesPacks(t *testing.T) {
	m := Resolve([]string{"xero", "hubspot", "nonexistent"})
	if m["xero.create_purchase_order"] != "erp.create_po" {
		t.Fatalf("xero alias = %q", m["xero.create_purchase_order"])
	}
	if m["hubspot.log_activity"] != "crm.log_activity" {
		t.Fatalf("hubspot alias = %q", m["hubspot.log_activity"])
	}
	if len(Resolve(nil)) != 0 {
		t.Fatal("empty pack list should resolve to no aliases")
	}
}

func TestPackNamesStable(t *testing.T) {
	names := PackNames()
	if len(names) != 2 || names[0] != "hubspot" || names[1] != "xero" {
		t.Fatalf("pack names = %v", names)
	}
}
