package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/auditchain/internal/adapters/web/handlers"
	ws "github.com/lcalzada-xor/auditchain/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
	"github.com/lcalzada-xor/auditchain/internal/core/services/broadcast"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr string

	WSManager     *ws.Manager
	EntryHandler  *handlers.EntryHandler
	VerifyHandler *handlers.VerifyHandler
	RuleHandler   *handlers.RuleHandler
	AlertHandler  *handlers.AlertHandler
	StatsHandler  *handlers.StatsHandler

	srv *http.Server
}

// NewServer creates a new web server over the core services.
func NewServer(addr string, ledger ports.Ledger, rules ports.RuleAdmin, alerts ports.AlertManager, stats handlers.StatsProvider, broadcaster *broadcast.Broadcaster) *Server {
	return &Server{
		Addr:          addr,
		WSManager:     ws.NewManager(broadcaster),
		EntryHandler:  handlers.NewEntryHandler(ledger),
		VerifyHandler: handlers.NewVerifyHandler(ledger),
		RuleHandler:   handlers.NewRuleHandler(rules),
		AlertHandler:  handlers.NewAlertHandler(alerts),
		StatsHandler:  handlers.NewStatsHandler(ledger, stats),
	}
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	handler := SetupRoutes(s)

	// Instrument with OpenTelemetry
	instrumentedHandler := otelhttp.NewHandler(handler, "auditchain-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumentedHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown implementation
	go func() {
		<-ctx.Done()
		log.Println("Web Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web Server shutdown error: %v", err)
		}
	}()

	log.Printf("Web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
