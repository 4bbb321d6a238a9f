package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/engine"
)

// Calculator defines the engine calls the worker makes.
type Calculator interface {
	ComputeMany(ctx context.Context, ids []domain.AssetID, date time.Time) ([]engine.Outcome, error)
	Persistable(date time.Time) bool
	Today() time.Time
}

// AfterCalcHook is called after each successful calculation run.
type AfterCalcHook interface {
	Publish(ctx context.Context, date time.Time, outcomes []engine.Outcome) error
}

// CalcWorker computes the configured assets for the current date on a cron schedule.
type CalcWorker struct {
	calc     Calculator
	assets   []domain.AssetID
	schedule string
	loc      *time.Location
	hook     AfterCalcHook // optional
}

// NewCalcWorker creates a new CalcWorker with an optional post-calculation hook.
func NewCalcWorker(calc Calculator, assets []domain.AssetID, schedule string, loc *time.Location, hook AfterCalcHook) *CalcWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &CalcWorker{
		calc:     calc,
		assets:   assets,
		schedule: schedule,
		loc:      loc,
		hook:     hook,
	}
}

// runHook calls the post-calculation hook if one is configured.
func (w *CalcWorker) runHook(ctx context.Context, date time.Time, outcomes []engine.Outcome) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Publish(ctx, date, outcomes); err != nil {
		slog.Error("CalcWorker: publish hook failed", "error", err)
	} else {
		slog.Info("CalcWorker: publish hook completed")
	}
}

// RunOnce computes every configured asset for today. Days that cannot be
// persisted (weekends and holidays) are skipped.
func (w *CalcWorker) RunOnce(ctx context.Context) error {
	date := w.calc.Today()
	if !w.calc.Persistable(date) {
		slog.Info("CalcWorker: skipping non-business day", "date", date.Format(domain.DateLayout))
		return nil
	}

	outcomes, err := w.calc.ComputeMany(ctx, w.assets, date)
	if err != nil {
		return fmt.Errorf("computing assets: %w", err)
	}

	computed := 0
	for _, o := range outcomes {
		if o.Err == nil {
			computed++
		}
	}
	slog.Info("CalcWorker: calculation completed",
		"date", date.Format(domain.DateLayout), "computed", computed, "total", len(outcomes))

	if computed > 0 {
		w.runHook(ctx, date, outcomes)
	}
	return nil
}

// Run schedules RunOnce and blocks until the context is cancelled.
// It returns an error only if the schedule cannot be parsed.
func (w *CalcWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(w.loc))
	_, err := c.AddFunc(w.schedule, func() {
		if err := w.RunOnce(ctx); err != nil {
			slog.Error("CalcWorker: run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("parsing schedule %q: %w", w.schedule, err)
	}

	slog.Info("CalcWorker: starting", "schedule", w.schedule, "assets", len(w.assets))
	c.Start()

	<-ctx.Done()
	slog.Info("CalcWorker: shutting down")
	<-c.Stop().Done()
	return nil
}
