// Package alias maps vendor-style tool names onto the base tool surface.
// Packs are enabled at construction; each alias becomes a passthrough
// registry entry that dispatches to its base tool.
package alias

import "sort"

var packs = map[string]map[string]string{
	"xero": {
		"xero.create_purchase_order": "erp.create_po",
		"xero.get_purchase_order":    "erp.get_po",
		"xero.list_purchase_orders":  "erp.list_pos",
		"xero.create_invoice":        "erp.submit_invoice",
		"xero.get_invoice":           "erp.get_invoice",
		"xero.create_payment":        "erp.post_payment",
	},
	"hubspot": {
		"hubspot.create_contact":    "crm.create_contact",
		"hubspot.get_contact":       "crm.get_contact",
		"hubspot.list_contacts":     "crm.list_contacts",
		"hubspot.create_company":    "crm.create_company",
		"hubspot.create_deal":       "crm.create_deal",
		"hubspot.update_deal_stage": "crm.update_deal_stage",
		"hubspot.log_activity":      "crm.log_activity",
	},
}

// PackNames lists the available packs.
func PackNames() []string {
	names := make([]string, 0, len(packs))
	for name := range packs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve merges the named packs into one alias→base map. Unknown pack
// names are ignored.
func Resolve(names []string) map[string]string {
	out := map[string]string{}
	for _, name := range names {
		for aliasName, base := range packs[name] {
			out[aliasName] = base
		}
	}
	return out
}
