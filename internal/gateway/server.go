// Package gateway serves the simulation over HTTP: tool calls, observations
// and state dumps as JSON, plus a WebSocket trace stream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strangeloopcanon/vei/internal/gateway/ws"
	"github.com/strangeloopcanon/vei/internal/router"
	"github.com/strangeloopcanon/vei/internal/toolerr"
)

// Server is the simulation gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	rt         *router.Router
}

// NewServer creates a gateway over the router, listening on host:port.
func NewServer(rt *router.Router, host string, port int) *Server {
	hub := ws.NewHub(rt.Trace())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{hub: hub, rt: rt}

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/call", s.handleCall)
	r.Get("/api/observe", s.handleObserve)
	r.Get("/api/state", s.handleState)
	r.Get("/api/trace/ws", hub.ServeWS)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}
	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"time_ms": s.rt.Now(),
	})
}

// handleCall runs one tool call: {"tool": "...", "args": {...}}.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if req.Tool == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing tool"})
		return
	}

	result, err := s.rt.Call(req.Tool, req.Args)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{
			"error": map[string]any{"code": toolerr.CodeOf(err), "message": err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{}
	if focus := r.URL.Query().Get("focus"); focus != "" {
		args["focus"] = focus
	}
	result, err := s.rt.Call("vei.observe", args)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	result, err := s.rt.Call("vei.state", map[string]any{})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// statusFor maps the simulation's error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var te *toolerr.Error
	if !errors.As(err, &te) {
		return http.StatusInternalServerError
	}
	switch te.Code {
	case toolerr.CodeUnknownTool:
		return http.StatusNotFound
	case toolerr.CodeInvalidArgs:
		return http.StatusBadRequest
	case toolerr.CodePermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
