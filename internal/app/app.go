package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lcalzada-xor/auditchain/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/auditchain/internal/adapters/web/server"
	"github.com/lcalzada-xor/auditchain/internal/config"
	"github.com/lcalzada-xor/auditchain/internal/core/services/alerting"
	"github.com/lcalzada-xor/auditchain/internal/core/services/broadcast"
	"github.com/lcalzada-xor/auditchain/internal/core/services/ledger"
	"github.com/lcalzada-xor/auditchain/internal/core/services/pipeline"
	"github.com/lcalzada-xor/auditchain/internal/core/services/policy"
	"github.com/lcalzada-xor/auditchain/internal/telemetry"
)

// Application holds the core components and acts as the facade wiring the
// ingestion pipeline: ledger -> policy -> alerting -> broadcast.
type Application struct {
	Config       *config.Config
	Store        *storage.SQLiteStore
	Ledger       *ledger.Service
	PolicyEngine *policy.Engine
	AlertManager *alerting.Manager
	Broadcaster  *broadcast.Broadcaster
	Pipeline     *pipeline.Pipeline
	WebServer    *webserver.Server
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	telemetry.InitMetrics()

	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create DB directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	app.Store = store

	app.Broadcaster = broadcast.New(
		broadcast.WithBufferSize(app.Config.SubscriberBuffer),
		broadcast.WithHeartbeatInterval(app.Config.HeartbeatInterval),
	)

	app.PolicyEngine = policy.NewEngine(store)
	app.AlertManager = alerting.NewManager(store, app.Broadcaster)
	app.Pipeline = pipeline.New(app.PolicyEngine, app.AlertManager, store, app.Broadcaster)

	// The ledger publishes into the pipeline, which forwards every event
	// to the broadcaster after queueing entries for evaluation.
	app.Ledger, err = ledger.New(context.Background(), store, app.Pipeline,
		ledger.WithAppendTimeout(app.Config.AppendTimeout))
	if err != nil {
		return fmt.Errorf("failed to init ledger: %w", err)
	}

	app.WebServer = webserver.NewServer(
		app.Config.Addr,
		app.Ledger,
		app.PolicyEngine,
		app.AlertManager,
		app.Store,
		app.Broadcaster,
	)
	return nil
}

// Run starts every concurrent unit and blocks on the web server until ctx
// is cancelled.
func (app *Application) Run(ctx context.Context) error {
	app.Broadcaster.Start(ctx)
	app.Pipeline.Start(ctx)
	app.Ledger.Start(ctx)

	go app.drainWarnings(ctx)

	defer func() {
		if err := app.Store.Close(); err != nil {
			slog.Error("storage close failed", "error", err)
		}
	}()

	return app.WebServer.Run(ctx)
}

// drainWarnings surfaces policy evaluation diagnostics in the logs.
func (app *Application) drainWarnings(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case warning := <-app.PolicyEngine.Warnings():
			slog.Warn("malformed rule condition",
				"rule", warning.RuleID,
				"field", warning.Field,
				"reason", warning.Reason,
			)
		}
	}
}
