// Package api provides HTTP handlers and the main API server logic for ZapDesk.
//
// It exposes RESTful endpoints for editing conversation flows, starting
// sessions, and managing triggers, quick replies and settings.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZapDesk/ZapDesk/internal/flow"
	"github.com/ZapDesk/ZapDesk/internal/genai"
	"github.com/ZapDesk/ZapDesk/internal/messaging"
	"github.com/ZapDesk/ZapDesk/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// Server bundles the dependencies the HTTP handlers need.
type Server struct {
	msgService messaging.Service
	engine     *flow.Engine
	store      store.Store
	drafter    *genai.Drafter
	addr       string
}

// NewServer creates a new API server instance.
func NewServer(msgService messaging.Service, engine *flow.Engine, st store.Store, drafter *genai.Drafter, addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		msgService: msgService,
		engine:     engine,
		store:      st,
		drafter:    drafter,
		addr:       addr,
	}
}

// Routes registers all handlers on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/flows", s.flowsHandler)
	mux.HandleFunc("/flows/", s.flowItemHandler)
	mux.HandleFunc("/triggers", s.triggersHandler)
	mux.HandleFunc("/triggers/", s.triggerItemHandler)
	mux.HandleFunc("/quick-replies", s.quickRepliesHandler)
	mux.HandleFunc("/quick-replies/", s.quickReplyItemHandler)
	mux.HandleFunc("/suggest", s.suggestHandler)
	mux.HandleFunc("/settings", s.settingsHandler)
	mux.HandleFunc("/draft", s.draftHandler)
	mux.HandleFunc("/conversations/", s.conversationHandler)
	mux.HandleFunc("/health", s.healthHandler)

	// Twilio inbound webhook, only when the Twilio transport is active
	if twilioService, ok := s.msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", twilioService.TwilioWebhookHandler)
		slog.Info("Server.Routes: Twilio webhook registered", "path", "/webhook/twilio")
	}

	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ZapDesk API running", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"active_sessions": s.engine.ActiveSessions(),
	})
}
