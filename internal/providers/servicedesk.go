package providers

import (
	"fmt"

	"github.com/strangeloopcanon/vei/internal/registry"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

type sdIncident struct {
	ID       string
	Title    string
	Severity string
	Status   string
	History  []map[string]any
}

type sdRequest struct {
	ID      string
	Title   string
	Status  string
	History []map[string]any
}

// ServiceDesk is the ITSM twin: incidents and service requests with
// append-only history.
type ServiceDesk struct {
	env       *Env
	incidents map[string]*sdIncident
	requests  map[string]*sdRequest
	incSeq    int
	reqSeq    int
}

// NewServiceDesk seeds incidents and requests from the scenario.
func NewServiceDesk(env *Env) *ServiceDesk {
	s := &ServiceDesk{env: env, incidents: map[string]*sdIncident{}, requests: map[string]*sdRequest{}}
	for _, in := range env.Scenario.ServiceDesk.Incidents {
		status := in.Status
		if status == "" {
			status = "OPEN"
		}
		s.incidents[in.ID] = &sdIncident{ID: in.ID, Title: in.Title, Severity: in.Severity, Status: status}
		s.incSeq++
	}
	for _, rq := range env.Scenario.ServiceDesk.Requests {
		status := rq.Status
		if status == "" {
			status = "PENDING"
		}
		s.requests[rq.ID] = &sdRequest{ID: rq.ID, Title: rq.Title, Status: status}
		s.reqSeq++
	}
	return s
}

func (s *ServiceDesk) Specs() []*registry.Spec {
	return []*registry.Spec{
		{Name: "servicedesk.create_incident", Description: "Open an incident", Permissions: []string{"servicedesk.write"}, SideEffects: []string{"servicedesk"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "servicedesk.get_incident", Description: "Fetch an incident with its history", Permissions: []string{"servicedesk.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "servicedesk.update_incident", Description: "Update an incident's status", Permissions: []string{"servicedesk.write"}, SideEffects: []string{"servicedesk"}, LatencyMS: 60, JitterMS: 25, Cost: 0.02},
		{Name: "servicedesk.create_request", Description: "Open a service request", Permissions: []string{"servicedesk.write"}, SideEffects: []string{"servicedesk"}, LatencyMS: 80, JitterMS: 30, Cost: 0.02},
		{Name: "servicedesk.get_request", Description: "Fetch a service request", Permissions: []string{"servicedesk.read"}, LatencyMS: 40, JitterMS: 15, Cost: 0.01},
		{Name: "servicedesk.approve_request", Description: "Approve a service request", Permissions: []string{"servicedesk.write"}, SideEffects: []string{"servicedesk"}, LatencyMS: 60, JitterMS: 25, Cost: 0.02},
	}
}

func (s *ServiceDesk) Handles(tool string) bool { return hasPrefix(tool, "servicedesk") }

func (s *ServiceDesk) Call(tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "servicedesk.create_incident":
		s.incSeq++
		severity := strArg(args, "severity")
		if severity == "" {
			severity = "SEV4"
		}
		in := &sdIncident{
			ID:       fmt.Sprintf("INC-%d", s.incSeq),
			Title:    strArg(args, "title"),
			Severity: severity,
			Status:   "OPEN",
		}
		s.incidents[in.ID] = in
		return incidentMap(in), nil
	case "servicedesk.get_incident":
		in, err := s.incident(args)
		if err != nil {
			return nil, err
		}
		return incidentMap(in), nil
	case "servicedesk.update_incident":
		in, err := s.incident(args)
		if err != nil {
			return nil, err
		}
		if status := strArg(args, "status"); status != "" {
			in.Status = status
		}
		in.History = append(in.History, map[string]any{"status": in.Status})
		return incidentMap(in), nil
	case "servicedesk.create_request":
		s.reqSeq++
		rq := &sdRequest{
			ID:     fmt.Sprintf("REQ-%d", s.reqSeq),
			Title:  strArg(args, "title"),
			Status: "PENDING",
		}
		s.requests[rq.ID] = rq
		return requestMap(rq), nil
	case "servicedesk.get_request":
		rq, err := s.request(args)
		if err != nil {
			return nil, err
		}
		return requestMap(rq), nil
	case "servicedesk.approve_request":
		rq, err := s.request(args)
		if err != nil {
			return nil, err
		}
		rq.Status = "APPROVED"
		rq.History = append(rq.History, map[string]any{"status": rq.Status})
		return requestMap(rq), nil
	}
	return nil, toolerr.Newf(toolerr.CodeUnsupportedTool, "servicedesk does not handle %s", tool)
}

func (s *ServiceDesk) incident(args map[string]any) (*sdIncident, error) {
	id := strArg(args, "incident_id")
	in, ok := s.incidents[id]
	if !ok {
		return nil, toolerr.Newf("servicedesk.incident_not_found", "no incident %s", id)
	}
	return in, nil
}

func (s *ServiceDesk) request(args map[string]any) (*sdRequest, error) {
	id := strArg(args, "request_id")
	rq, ok := s.requests[id]
	if !ok {
		return nil, toolerr.Newf("servicedesk.request_not_found", "no request %s", id)
	}
	return rq, nil
}

func incidentMap(in *sdIncident) map[string]any {
	return map[string]any{
		"incident_id": in.ID, "title": in.Title, "severity": in.Severity,
		"status": in.Status, "history": in.History,
	}
}

func requestMap(rq *sdRequest) map[string]any {
	return map[string]any{
		"request_id": rq.ID, "title": rq.Title, "status": rq.Status, "history": rq.History,
	}
}

func (s *ServiceDesk) Name() string { return "servicedesk" }

func (s *ServiceDesk) StateSnapshot() map[string]any {
	return map[string]any{"incidents": len(s.incidents), "requests": len(s.requests)}
}
