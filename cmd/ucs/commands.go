package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ucsindex/ucs/internal/api"
	"github.com/ucsindex/ucs/internal/calendar"
	"github.com/ucsindex/ucs/internal/config"
	"github.com/ucsindex/ucs/internal/database"
	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/export"
	"github.com/ucsindex/ucs/internal/worker"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and the scheduled calculation worker",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-worker", Usage: "disable the scheduled calculation"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg := config.Load()

			rt, err := setup(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			var hook worker.AfterCalcHook
			if cfg.SheetsEnabled() {
				writer, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheetID, cfg.GoogleCredentialsJSON)
				if err != nil {
					return fmt.Errorf("creating sheets writer: %w", err)
				}
				hook = export.NewPublisher(writer)
				slog.Info("sheets publishing enabled", "spreadsheet", cfg.SheetsSpreadsheetID)
			}

			if cfg.AdminAPIKey == "" {
				slog.Warn("ADMIN_API_KEY not set, calculation endpoint is unprotected")
			}

			handler := api.NewHandler(rt.engine, rt.sim, rt.indexAssets())
			srv := api.NewServer(cfg.HTTPPort, handler, cfg.AdminAPIKey, rt.registry)

			g, gctx := errgroup.WithContext(ctx)
			if !c.Bool("no-worker") {
				calc := worker.NewCalcWorker(rt.engine, rt.indexAssets(), cfg.CalcSchedule, cfg.Location, hook)
				g.Go(func() error { return calc.Run(gctx) })
			}
			g.Go(func() error {
				slog.Info("HTTP server listening", "port", cfg.HTTPPort)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("HTTP server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				slog.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			slog.Info("shutdown complete")
			return err
		},
	}
}

func computeCommand() *cli.Command {
	return &cli.Command{
		Name:  "compute",
		Usage: "compute assets for a date and persist eligible results",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "asset", Aliases: []string{"a"}, Usage: "asset ID (repeatable)"},
			&cli.BoolFlag{Name: "all", Usage: "compute the configured index assets"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "YYYY-MM-DD or dd/mm/yyyy (default: today)"},
		},
		Action: func(c *cli.Context) error {
			rt, err := setup(c.Context, config.Load(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			ids := lo.Map(c.StringSlice("asset"), func(s string, _ int) domain.AssetID { return domain.AssetID(s) })
			if c.Bool("all") {
				ids = lo.Uniq(append(ids, rt.indexAssets()...))
			}
			if len(ids) == 0 {
				return cli.Exit("specify --asset or --all", 2)
			}

			date := rt.engine.DateOrToday(c.String("date"))
			outcomes, err := rt.engine.ComputeMany(c.Context, ids, date)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			computed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", o.AssetID, o.Err)
					continue
				}
				computed++
				if err := enc.Encode(o.Result); err != nil {
					return fmt.Errorf("writing result: %w", err)
				}
			}
			if computed == 0 {
				return cli.Exit("no asset computable for "+date.Format(domain.DateLayout), 1)
			}
			return nil
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "show which derived assets an edit would change, without writing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "asset", Aliases: []string{"a"}, Required: true, Usage: "edited asset ID"},
			&cli.StringFlag{Name: "value", Required: true, Usage: "new value for the edited asset"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "YYYY-MM-DD or dd/mm/yyyy (default: today)"},
		},
		Action: func(c *cli.Context) error {
			value, err := decimal.NewFromString(c.String("value"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid value %q", c.String("value")), 2)
			}

			rt, err := setup(c.Context, config.Load(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			date := rt.engine.DateOrToday(c.String("date"))
			impacted, err := rt.sim.PreviewImpact(c.Context, domain.AssetID(c.String("asset")), value, date)
			if err != nil {
				return err
			}
			if len(impacted) == 0 {
				fmt.Fprintln(c.App.Writer, "no downstream asset changes")
				return nil
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DEPTH\tASSET\tOLD\tNEW\tCHANGE %\tFORMULA")
			for _, a := range impacted {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					a.Depth, a.ID, a.OldValue.StringFixed(4), a.NewValue.StringFixed(4),
					a.PercentageChange.StringFixed(4), a.Formula)
			}
			return tw.Flush()
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			pool, err := database.Connect(c.Context, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			return migrate(c.Context, pool)
		},
	}
}

func holidaysCommand() *cli.Command {
	return &cli.Command{
		Name:  "holidays",
		Usage: "list the non-business days of a year",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "calendar year (default: current)"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			year := c.Int("year")
			if year == 0 {
				year = domain.Today(cfg.Location).Year()
			}

			cal := calendar.New(cfg.ExtraHolidays...)
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			for _, h := range cal.Holidays(year) {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Date.Format(domain.DateLayout), h.Date.Weekday(), h.Name)
			}
			return tw.Flush()
		},
	}
}
