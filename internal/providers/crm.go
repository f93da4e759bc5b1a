package providers

import (
	"fmt"
	"sort"

	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

// Contact carries the do-not-contact consent flag.
type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	CompanyID    string `json:"company_id,omitempty"`
	DoNotContact bool   `json:"do_not_contact"`
}

// Company is a CRM account.
type Company struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

// Deal is a pipeline entry with a stage and amount.
type Deal struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	CompanyID string  `json:"company_id,omitempty"`
	Stage     string  `json:"stage"`
	Amount    float64 `json:"amount"`
}

// Activity is a logged touchpoint against a contact or deal.
type Activity struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	ContactID string `json:"contact_id,omitempty"`
	DealID    string `json:"deal_id,omitempty"`
	Note      string `json:"note,omitempty"`
	TimeMS    int64  `json:"time_ms"`
}

// CRM enforces contact consent: email outreach against a do-not-contact
// contact fails probabilistically at the configured error rate.
type CRM struct {
	env        *Env
	contacts   map[string]*Contact
	companies  map[string]*Company
	deals      map[string]*Deal
	activities []*Activity
	contactSeq int
	companySeq int
	dealSeq    int
}

// NewCRM creates an empty CRM twin.
func NewCRM(env *Env) *CRM {
	return &CRM{
		env:       env,
		contacts:  map[string]*Contact{},
		companies: map[string]*Company{},
		deals:     map[string]*Deal{},
	}
}

func (c *CRM) Specs() []*registry.Spec {
	return []*registry.Spec{
		{
			Name:        "crm.create_contact",
			Description: "Create a contact",
			Permissions: []string{"crm.write"},
			SideEffects: []string{"crm"},
			LatencyMS:   80, JitterMS: 30, Cost: 0.02,
			ArgsSchema: registry.ObjectSchema([]string{"name"}, map[string]any{
				"name":           map[string]any{"type": "string"},
				"email":          map[string]any{"type": "string"},
				"company_id":     map[string]any{"type": "string"},
				"do_not_contact": map[string]any{"type": "boolean"},
			}),
		},
		{Name: "crm.get_contact", Description: "Fetch a contact by id", Permissions: []string{"crm.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "crm.list_contacts", Description: "List contacts", Permissions: []string{"crm.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "crm.create_company", Description: "Create a company", Permissions: []string{"crm.write"}, SideEffects: []string{"crm"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "crm.create_deal", Description: "Create a deal with a stage and amount", Permissions: []string{"crm.write"}, SideEffects: []string{"crm"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "crm.update_deal_stage", Description: "Move a deal to a new stage", Permissions: []string{"crm.write"}, SideEffects: []string{"crm"}, LatencyMS: 60, JitterMS: 25, Cost: 0.02},
		{Name: "crm.log_activity", Description: "Log an activity such as a call or email outreach", Permissions: []string{"crm.write"}, SideEffects: []string{"crm"}, LatencyMS: 60, JitterMS: 25, Cost: 0.02},
	}
}

func (c *CRM) Handles(tool string) bool { return hasPrefix(tool, "crm") }

func (c *CRM) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "crm.create_contact":
		return c.createContact(args)
	case "crm.get_contact":
		return c.getContact(args)
	case "crm.list_contacts":
		return c.listContacts()
	case "crm.create_company":
		return c.createCompany(args)
	case "crm.create_deal":
		return c.createDeal(args)
	case "crm.update_deal_stage":
		return c.updateDealStage(args)
	case "crm.log_activity":
		return c.logActivity(args)
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "crm does not handle %s", tool)
}

func (c *CRM) createContact(args map[string]any) (map[string]any, error) {
	c.contactSeq++
	ct := &Contact{
		ID:           fmt.Sprintf("C-%d", c.contactSeq),
		Name:         strArg(args, "name"),
		Email:        strArg(args, "email"),
		CompanyID:    strArg(args, "company_id"),
		DoNotContact: boolArg(args, "do_not_contact"),
	}
	c.contacts[ct.ID] = ct
	return map[string]any{"contact_id": ct.ID}, nil
}

func (c *CRM) getContact(args map[string]any) (map[string]any, error) {
	ct, ok := c.contacts[strArg(args, "contact_id")]
	if !ok {
		return domainError("unknown_contact", "no contact "+strArg(args, "contact_id")), nil
	}
	return map[string]any{
		"contact_id": ct.ID, "name": ct.Name, "email": ct.Email,
		"company_id": ct.CompanyID, "do_not_contact": ct.DoNotContact,
	}, nil
}

func (c *CRM) listContacts() (map[string]any, error) {
	ids := make([]string, 0, len(c.contacts))
	for id := range c.contacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		ct := c.contacts[id]
		out = append(out, map[string]any{"contact_id": ct.ID, "name": ct.Name, "email": ct.Email})
	}
	return map[string]any{"contacts": out}, nil
}

func (c *CRM) createCompany(args map[string]any) (map[string]any, error) {
	c.companySeq++
	co := &Company{
		ID:     fmt.Sprintf("CO-%d", c.companySeq),
		Name:   strArg(args, "name"),
		Domain: strArg(args, "domain"),
	}
	c.companies[co.ID] = co
	return map[string]any{"company_id": co.ID}, nil
}

func (c *CRM) createDeal(args map[string]any) (map[string]any, error) {
	if id := strArg(args, "company_id"); id != "" {
		if _, ok := c.companies[id]; !ok {
			return domainError("unknown_company", "no company "+id), nil
		}
	}
	stage := strArg(args, "stage")
	if stage == "" {
		stage = "prospecting"
	}
	amount, _ := floatArg(args, "amount")
	c.dealSeq++
	d := &Deal{
		ID:        fmt.Sprintf("D-%d", c.dealSeq),
		Name:      strArg(args, "name"),
		CompanyID: strArg(args, "company_id"),
		Stage:     stage,
		Amount:    amount,
	}
	c.deals[d.ID] = d
	return map[string]any{"deal_id": d.ID, "stage": d.Stage}, nil
}

func (c *CRM) updateDealStage(args map[string]any) (map[string]any, error) {
	d, ok := c.deals[strArg(args, "deal_id")]
	if !ok {
		return domainError("unknown_deal", "no deal "+strArg(args, "deal_id")), nil
	}
	d.Stage = strArg(args, "stage")
	return map[string]any{"deal_id": d.ID, "stage": d.Stage}, nil
}

func (c *CRM) logActivity(args map[string]any) (map[string]any, error) {
	kind := strArg(args, "kind")
	contactID := strArg(args, "contact_id")
	var ct *Contact
	if contactID != "" {
		var ok bool
		ct, ok = c.contacts[contactID]
		if !ok {
			return domainError("unknown_contact", "no contact "+contactID), nil
		}
	}
	if dealID := strArg(args, "deal_id"); dealID != "" {
		if _, ok := c.deals[dealID]; !ok {
			return domainError("unknown_deal", "no deal "+dealID), nil
		}
	}
	if kind == "email_outreach" && ct != nil && ct.DoNotContact {
		if rate := c.env.CRMErrorRate; rate > 0 && c.env.RNG.NextFloat() < rate {
			return domainError("consent_violation", "contact has do_not_contact set"), nil
		}
	}
	a := &Activity{
		ID:        fmt.Sprintf("A-%d", len(c.activities)+1),
		Kind:      kind,
		ContactID: contactID,
		DealID:    strArg(args, "deal_id"),
		Note:      strArg(args, "note"),
		TimeMS:    c.env.Bus.Now(),
	}
	c.activities = append(c.activities, a)
	return map[string]any{"activity_id": a.ID}, nil
}

func (c *CRM) Name() string { return "crm" }

func (c *CRM) StateSnapshot() map[string]any {
	return map[string]any{
		"contacts": len(c.contacts), "companies": len(c.companies),
		"deals": len(c.deals), "activities": len(c.activities),
	}
}
