// Package server provides the web chat server: a chi router exposing
// health, metrics, session listing and the websocket chat endpoint.
//
// Every websocket connection gets its own ChatSession carrying a fresh
// agent instance and guard machine, so concurrent chats never share
// conversational or guard state.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/schemaflow-ai/schemaflow/pkg/agent"
	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/guard"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/observability"
	"github.com/schemaflow-ai/schemaflow/pkg/session"
	"github.com/schemaflow-ai/schemaflow/pkg/toolkits/interaction"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

//go:embed static/index.html
var indexHTML []byte

// agentBuilder constructs a per-connection agent with the connection's
// interactor and middleware injected. Replaceable in tests.
type agentBuilder func(name string, interactor interaction.Interactor, mw []tools.Middleware) (agent.Agent, error)

// Server is the web chat server.
type Server struct {
	cfg      *config.Config
	llms     *llms.Registry
	sessions session.Service
	build    agentBuilder

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New assembles a server from configuration, the LLM registry and the
// session store.
func New(cfg *config.Config, llmRegistry *llms.Registry, sessions session.Service) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Server == nil {
		cfg.Server = &config.ServerConfig{}
		cfg.Server.SetDefaults()
	}
	if sessions == nil {
		sessions = session.NewMemoryService(cfg.Server.DefaultAgent)
	}

	s := &Server{
		cfg:      cfg,
		llms:     llmRegistry,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.build = func(name string, interactor interaction.Interactor, mw []tools.Middleware) (agent.Agent, error) {
		return agent.New(name, agent.Dependencies{
			Config:     cfg,
			LLMs:       llmRegistry,
			Interactor: interactor,
			Middleware: mw,
		})
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	})
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", observability.GetGlobalMetrics().Handler().ServeHTTP)
	r.Get("/api/agents", s.handleListAgents)
	r.Get("/api/sessions", s.handleListSessions)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		slog.Info("Web chat server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	type agentInfo struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}

	agents := make([]agentInfo, 0, len(s.cfg.Agents))
	for name, cfg := range s.cfg.Agents {
		agents = append(agents, agentInfo{
			Name:        name,
			Type:        string(cfg.Type),
			Description: cfg.Description,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleListSessions(w http.ResponseWriter, req *http.Request) {
	sessions, err := s.sessions.List(req.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	agentName := req.URL.Query().Get("agent")
	if agentName == "" {
		agentName = s.cfg.Server.DefaultAgent
	}
	if agentName == "" {
		http.Error(w, "no agent specified and no default_agent configured", http.StatusBadRequest)
		return
	}
	if _, ok := s.cfg.Agents[agentName]; !ok {
		http.Error(w, "unknown agent: "+agentName, http.StatusNotFound)
		return
	}

	sessionID := req.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	chat := newChatSession(sessionID, conn, s.sessions)

	g := guard.New()
	chat.guard = g

	chatAgent, err := s.build(agentName, chat, []tools.Middleware{guard.Middleware(g, guard.DefaultRuleSet())})
	if err != nil {
		chat.send(wsEvent{Type: eventError, Text: err.Error()})
		conn.Close()
		return
	}
	chat.agent = chatAgent

	slog.Info("Chat connected", "agent", agentName, "session", sessionID)
	chat.serve(req.Context())
	slog.Info("Chat disconnected", "agent", agentName, "session", sessionID)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
