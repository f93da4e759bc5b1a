package providers

import (
	"sort"

	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

// Identity user lifecycle states.
const (
	UserActive        = "ACTIVE"
	UserSuspended     = "SUSPENDED"
	UserProvisioned   = "PROVISIONED"
	UserDeprovisioned = "DEPROVISIONED"
)

type idUser struct {
	ID     string
	Email  string
	Name   string
	Status string
	Groups []string
}

type idGroup struct {
	ID      string
	Name    string
	Members []string
}

type idApp struct {
	ID          string
	Label       string
	Assignments []string
}

// Identity is the Okta-like provider. Group membership is mirrored on both
// the user and the group.
type Identity struct {
	env    *Env
	users  map[string]*idUser
	groups map[string]*idGroup
	apps   map[string]*idApp
}

// NewIdentity seeds users, groups and applications from the scenario.
func NewIdentity(env *Env) *Identity {
	p := &Identity{
		env:    env,
		users:  map[string]*idUser{},
		groups: map[string]*idGroup{},
		apps:   map[string]*idApp{},
	}
	for _, u := range env.Scenario.Identity.Users {
		status := u.Status
		if status == "" {
			status = UserActive
		}
		p.users[u.ID] = &idUser{ID: u.ID, Email: u.Email, Name: u.Name, Status: status}
	}
	for _, g := range env.Scenario.Identity.Groups {
		p.groups[g.ID] = &idGroup{ID: g.ID, Name: g.Name, Members: append([]string(nil), g.Members...)}
		for _, uid := range g.Members {
			if u, ok := p.users[uid]; ok {
				u.Groups = append(u.Groups, g.ID)
			}
		}
	}
	for _, a := range env.Scenario.Identity.Applications {
		p.apps[a.ID] = &idApp{ID: a.ID, Label: a.Label, Assignments: append([]string(nil), a.Assignments...)}
	}
	return p
}

func (p *Identity) Specs() []*registry.Spec {
	return []*registry.Spec{
		{Name: "okta.get_user", Description: "Fetch an identity user by id", Permissions: []string{"identity.read"}, LatencyMS: 50, JitterMS: 20, Cost: 0.01},
		{Name: "okta.list_users", Description: "List identity users", Permissions: []string{"identity.read"}, LatencyMS: 50, JitterMS: 20, Cost: 0.01},
		{Name: "okta.suspend_user", Description: "Suspend an active user", Permissions: []string{"identity.admin"}, SideEffects: []string{"identity"}, LatencyMS: 100, JitterMS: 40, Cost: 0.03},
		{Name: "okta.unsuspend_user", Description: "Reactivate a suspended user", Permissions: []string{"identity.admin"}, SideEffects: []string{"identity"}, LatencyMS: 100, JitterMS: 40, Cost: 0.03},
		{Name: "okta.deactivate_user", Description: "Deprovision a user", Permissions: []string{"identity.admin"}, SideEffects: []string{"identity"}, LatencyMS: 100, JitterMS: 40, Cost: 0.03},
		{Name: "okta.reset_password", Description: "Send a password reset to a user", Permissions: []string{"identity.admin"}, SideEffects: []string{"identity"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "okta.list_groups", Description: "List identity groups with members", Permissions: []string{"identity.read"}, LatencyMS: 50, JitterMS: 20, Cost: 0.01},
		{Name: "okta.add_user_to_group", Description: "Add a user to a group", Permissions: []string{"identity.admin"}, SideEffects: []string{"identity"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "okta.remove_user_from_group", Description: "Remove a user from a group", Permissions: []string{"identity.admin"}, SideEffects: []string{"identity"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "okta.assign_app", Description: "Assign an application to a user", Permissions: []string{"identity.admin"}, SideEffects: []string{"identity"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "okta.list_apps", Description: "List applications with assignments", Permissions: []string{"identity.read"}, LatencyMS: 50, JitterMS: 20, Cost: 0.01},
	}
}

func (p *Identity) Handles(tool string) bool { return hasPrefix(tool, "okta") }

func (p *Identity) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "okta.get_user":
		u, err := p.user(args)
		if err != nil {
			return nil, err
		}
		return userMap(u), nil
	case "okta.list_users":
		return p.listUsers()
	case "okta.suspend_user":
		return p.transition(args, UserActive, UserSuspended)
	case "okta.unsuspend_user":
		return p.transition(args, UserSuspended, UserActive)
	case "okta.deactivate_user":
		return p.deactivate(args)
	case "okta.reset_password":
		return p.resetPassword(args)
	case "okta.list_groups":
		return p.listGroups()
	case "okta.add_user_to_group":
		return p.addToGroup(args)
	case "okta.remove_user_from_group":
		return p.removeFromGroup(args)
	case "okta.assign_app":
		return p.assignApp(args)
	case "okta.list_apps":
		return p.listApps()
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "okta does not handle %s", tool)
}

func (p *Identity) user(args map[string]any) (*idUser, error) {
	id := strArg(args, "user_id")
	u, ok := p.users[id]
	if !ok {
		return nil, toolerr.Newf("okta.user_not_found", "no user %s", id)
	}
	return u, nil
}

func (p *Identity) transition(args map[string]any, from, to string) (map[string]any, error) {
	u, err := p.user(args)
	if err != nil {
		return nil, err
	}
	if u.Status != from {
		return nil, toolerr.Newf("okta.invalid_state", "user %s is %s, not %s", u.ID, u.Status, from)
	}
	u.Status = to
	return userMap(u), nil
}

func (p *Identity) deactivate(args map[string]any) (map[string]any, error) {
	u, err := p.user(args)
	if err != nil {
		return nil, err
	}
	if u.Status == UserDeprovisioned {
		return nil, toolerr.Newf("okta.invalid_state", "user %s already deprovisioned", u.ID)
	}
	u.Status = UserDeprovisioned
	return userMap(u), nil
}

func (p *Identity) resetPassword(args map[string]any) (map[string]any, error) {
	u, err := p.user(args)
	if err != nil {
		return nil, err
	}
	if u.Status == UserDeprovisioned {
		return nil, toolerr.Newf("okta.invalid_state", "cannot reset password for deprovisioned user %s", u.ID)
	}
	return map[string]any{"user_id": u.ID, "status": "RESET_SENT"}, nil
}

func (p *Identity) listUsers() (map[string]any, error) {
	ids := sortedKeys(p.users)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, userMap(p.users[id]))
	}
	return map[string]any{"users": out}, nil
}

func (p *Identity) listGroups() (map[string]any, error) {
	ids := sortedKeys(p.groups)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		g := p.groups[id]
		out = append(out, map[string]any{"group_id": g.ID, "name": g.Name, "members": append([]string{}, g.Members...)})
	}
	return map[string]any{"groups": out}, nil
}

// addToGroup mirrors the membership on both the user and the group.
func (p *Identity) addToGroup(args map[string]any) (map[string]any, error) {
	u, err := p.user(args)
	if err != nil {
		return nil, err
	}
	g, ok := p.groups[strArg(args, "group_id")]
	if !ok {
		return nil, toolerr.Newf("okta.group_not_found", "no group %s", strArg(args, "group_id"))
	}
	if !contains(g.Members, u.ID) {
		g.Members = append(g.Members, u.ID)
	}
	if !contains(u.Groups, g.ID) {
		u.Groups = append(u.Groups, g.ID)
	}
	return map[string]any{"group_id": g.ID, "members": append([]string{}, g.Members...)}, nil
}

func (p *Identity) removeFromGroup(args map[string]any) (map[string]any, error) {
	u, err := p.user(args)
	if err != nil {
		return nil, err
	}
	g, ok := p.groups[strArg(args, "group_id")]
	if !ok {
		return nil, toolerr.Newf("okta.group_not_found", "no group %s", strArg(args, "group_id"))
	}
	g.Members = remove(g.Members, u.ID)
	u.Groups = remove(u.Groups, g.ID)
	return map[string]any{"group_id": g.ID, "members": append([]string{}, g.Members...)}, nil
}

func (p *Identity) assignApp(args map[string]any) (map[string]any, error) {
	u, err := p.user(args)
	if err != nil {
		return nil, err
	}
	a, ok := p.apps[strArg(args, "app_id")]
	if !ok {
		return nil, toolerr.Newf("okta.app_not_found", "no application %s", strArg(args, "app_id"))
	}
	if !contains(a.Assignments, u.ID) {
		a.Assignments = append(a.Assignments, u.ID)
	}
	return map[string]any{"app_id": a.ID, "assignments": append([]string{}, a.Assignments...)}, nil
}

func (p *Identity) listApps() (map[string]any, error) {
	ids := sortedKeys(p.apps)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		a := p.apps[id]
		out = append(out, map[string]any{"app_id": a.ID, "label": a.Label, "assignments": append([]string{}, a.Assignments...)})
	}
	return map[string]any{"apps": out}, nil
}

func userMap(u *idUser) map[string]any {
	return map[string]any{
		"user_id": u.ID, "email": u.Email, "name": u.Name,
		"status": u.Status, "groups": append([]string{}, u.Groups...),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func (p *Identity) Name() string { return "okta" }

func (p *Identity) StateSnapshot() map[string]any {
	statuses := map[string]int{}
	for _, u := range p.users {
		statuses[u.Status]++
	}
	return map[string]any{
		"users": len(p.users), "groups": len(p.groups),
		"apps": len(p.apps), "statuses": statuses,
	}
}
