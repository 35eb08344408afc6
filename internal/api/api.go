package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/campaign"
	"github.com/preconak-maker/aman-reactivation-bot/internal/messaging"
	"github.com/preconak-maker/aman-reactivation-bot/internal/store"
	"github.com/preconak-maker/aman-reactivation-bot/internal/timer"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// DefaultTriggerTimeout bounds an API-triggered campaign run.
const DefaultTriggerTimeout = 2 * time.Hour

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the HTTP endpoints to the campaign runner, the store, the
// reply intake and the delayed-send timer.
type Server struct {
	addr    string
	st      store.Store
	runner  *campaign.Runner
	replies *messaging.ReplyHandler
	timer   timer.Timer

	httpServer *http.Server
}

// NewServer creates an API server around the given collaborators.
func NewServer(st store.Store, runner *campaign.Runner, replies *messaging.ReplyHandler, tm timer.Timer, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		addr:    cfg.Addr,
		st:      st,
		runner:  runner,
		replies: replies,
		timer:   tm,
	}
}

// Handler returns the route table. Split out so tests can drive the mux
// through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/sms", s.smsWebhookHandler)
	mux.HandleFunc("/campaign/trigger", s.triggerHandler)
	mux.HandleFunc("/campaign/pause", s.pauseHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/leads", s.leadsHandler)
	mux.HandleFunc("/conversations", s.conversationsHandler)
	return mux
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Server.Run: API server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("Server.Shutdown: stopping API server")
	return s.httpServer.Shutdown(ctx)
}
