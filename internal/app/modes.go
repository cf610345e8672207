package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/predictiond/internal/engine"
	"github.com/alanyoungcy/predictiond/internal/pipeline"
	"github.com/alanyoungcy/predictiond/internal/server"
	"github.com/alanyoungcy/predictiond/internal/server/handler"
	"github.com/alanyoungcy/predictiond/internal/server/ws"
	"github.com/alanyoungcy/predictiond/internal/service"
)

// shutdownGrace bounds how long in-flight requests may run after the context
// is cancelled.
const shutdownGrace = 10 * time.Second

// ServeMode runs the full ledger: the HTTP + WebSocket API against Postgres
// and Redis, plus the settlement archiver when enabled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")
	return a.runLedger(ctx, deps, "serve")
}

// StandaloneMode runs the ledger entirely in process, for local development
// and testing. State does not survive a restart.
func (a *App) StandaloneMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting standalone mode; state is in-memory only")
	return a.runLedger(ctx, deps, "standalone")
}

// runLedger builds the service and API from the wired dependencies and
// supervises all goroutines until the context is cancelled.
func (a *App) runLedger(ctx context.Context, deps *Dependencies, mode string) error {
	g, ctx := errgroup.WithContext(ctx)

	marketSvc := service.NewMarketService(service.Deps{
		Ledger:      engine.New(engine.Config{FeeBps: uint64(a.cfg.Market.FeeBps)}),
		Markets:     deps.Markets,
		Predictions: deps.Predictions,
		Bets:        deps.Bets,
		Locks:       deps.Locks,
		Cache:       deps.MarketCache,
		Bus:         deps.Bus,
		Audit:       deps.Audit,
		Logger:      a.logger,
	})

	// WebSocket hub bridging ledger events to clients.
	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// HTTP API.
	if a.cfg.Server.Enabled {
		srv := server.NewServer(
			server.Config{
				Port:            a.cfg.Server.Port,
				CORSOrigins:     a.cfg.Server.CORSOrigins,
				APIKey:          a.cfg.Server.APIKey,
				RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
			},
			server.Handlers{
				Health:      handler.NewHealthHandler(a.logger),
				Markets:     handler.NewMarketHandler(marketSvc, a.logger),
				Predictions: handler.NewPredictionHandler(marketSvc, a.logger),
			},
			hub,
			deps.RateLimiter,
			a.logger,
		)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Settlement archiver.
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		interval := a.cfg.Archive.Interval.Duration
		g.Go(func() error {
			return archiver.RunInterval(ctx, interval)
		})
	}

	a.logger.InfoContext(ctx, "ledger running",
		slog.String("mode", mode),
		slog.Bool("server", a.cfg.Server.Enabled),
		slog.Bool("archive", a.cfg.Archive.Enabled),
	)

	return g.Wait()
}
