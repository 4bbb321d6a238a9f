package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/ucsindex/ucs/internal/calendar"
	"github.com/ucsindex/ucs/internal/config"
	"github.com/ucsindex/ucs/internal/database"
	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/engine"
	"github.com/ucsindex/ucs/internal/export"
	"github.com/ucsindex/ucs/internal/graph"
	"github.com/ucsindex/ucs/internal/metrics"
	"github.com/ucsindex/ucs/internal/quote"
	"github.com/ucsindex/ucs/internal/simulation"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "ucs",
		Usage: "UCS index calculation and dependency propagation engine",
		Commands: []*cli.Command{
			serveCommand(),
			computeCommand(),
			previewCommand(),
			migrateCommand(),
			holidaysCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("ucs: %v", err)
	}
}

// runtime holds the wired services shared by the subcommands.
type runtime struct {
	cfg      config.Config
	pool     *pgxpool.Pool
	registry *prometheus.Registry
	recorder *metrics.Recorder
	calendar *calendar.Calendar
	engine   *engine.Service
	sim      *simulation.Service
}

func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}

// indexAssets returns the configured batch, defaulting to the index family.
func (rt *runtime) indexAssets() []domain.AssetID {
	if len(rt.cfg.CalcAssets) > 0 {
		return rt.cfg.CalcAssets
	}
	return export.IndexAssets()
}

// setup connects storage and builds the engine. Without DATABASE_URL it
// fails when requireDB is set and otherwise falls back to an in-memory store.
func setup(ctx context.Context, cfg config.Config, requireDB bool) (*runtime, error) {
	rt := &runtime{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		calendar: calendar.New(cfg.ExtraHolidays...),
	}
	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt.recorder = metrics.New(rt.registry)

	g, err := loadGraph(cfg.GraphFile)
	if err != nil {
		return nil, err
	}

	var store quote.Store
	switch {
	case cfg.DatabaseURL != "":
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		store = quote.NewPgRepository(pool)
	case requireDB:
		return nil, errors.New("DATABASE_URL is required")
	default:
		slog.Warn("DATABASE_URL not set, using in-memory quote store")
		store = quote.NewMemoryStore()
	}

	rt.engine = engine.NewService(g, quote.NewCachedStore(store, cfg.QuoteCacheTTL), rt.calendar, engine.Options{
		Location: cfg.Location,
		Lookback: cfg.PreviousDayLookback,
		Metrics:  rt.recorder,
	})
	rt.sim = simulation.NewService(rt.engine, rt.recorder)
	return rt, nil
}

func loadGraph(path string) (*graph.Graph, error) {
	if path == "" {
		return graph.Default()
	}
	g, err := graph.LoadFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded dependency graph", "file", path, "nodes", len(g.Nodes()))
	return g, nil
}

func migrate(ctx context.Context, pool database.Pool) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	applied, err := database.RunMigrations(ctx, pool, sub)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	for _, name := range applied {
		slog.Info("applied migration", "file", name)
	}
	return nil
}
