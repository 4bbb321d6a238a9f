package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/formula"
	"github.com/ucsindex/ucs/internal/graph"
	"github.com/ucsindex/ucs/internal/quote"
)

// Result is the answer to "what is asset X worth on date D".
type Result struct {
	AssetID        domain.AssetID                     `json:"assetId"`
	Name           string                             `json:"name"`
	Currency       domain.Currency                    `json:"currency"`
	Date           string                             `json:"date"`
	Price          decimal.Decimal                    `json:"price"`
	Change         decimal.Decimal                    `json:"change"`
	AbsoluteChange decimal.Decimal                    `json:"absoluteChange"`
	PreviousDate   string                             `json:"previousDate,omitempty"`
	PreviousPrice  decimal.Decimal                    `json:"previousPrice"`
	Components     map[domain.AssetID]decimal.Decimal `json:"components,omitempty"`
	Rents          map[formula.Role]decimal.Decimal   `json:"rents,omitempty"`
	Cached         bool                               `json:"cached"`
	Persisted      bool                               `json:"persisted"`
}

// Compute resolves id on date, then resolves it on the previous business day
// to derive the daily change. The change baseline is the closest business day
// before date, not date minus one calendar day. A stored record still carrying
// a zero change is patched once a real variation is known.
func (s *Service) Compute(ctx context.Context, id domain.AssetID, date time.Time) (Result, error) {
	start := time.Now()
	defer func() { s.metrics.RecordLatency("compute", time.Since(start).Seconds()) }()

	date = domain.DateOf(date)
	node, ok := s.graph.Node(id)
	if !ok {
		return Result{}, fmt.Errorf("asset %q: %w: %w", id, ErrNotComputable, graph.ErrUnknownAsset)
	}

	cur, err := s.Resolve(ctx, id, date, ReadWrite)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		AssetID:    id,
		Name:       node.Name,
		Currency:   node.Currency,
		Date:       date.Format(domain.DateLayout),
		Price:      cur.Quote.Close,
		Components: cur.Quote.Components,
		Rents:      cur.Rents,
		Cached:     cur.Cached,
		Persisted:  cur.Persisted,
	}

	if prevDate, ok := s.calendar.PreviousBusinessDay(date, s.lookback); ok {
		prev, err := s.Resolve(ctx, id, prevDate, ReadWrite)
		switch {
		case err == nil:
			res.PreviousDate = prevDate.Format(domain.DateLayout)
			res.PreviousPrice = prev.Quote.Close
		case !errors.Is(err, ErrNotComputable):
			return Result{}, fmt.Errorf("resolving previous day: %w", err)
		}
	}

	res.Change = domain.PercentChange(res.Price, res.PreviousPrice)
	if res.PreviousPrice.IsPositive() {
		res.AbsoluteChange = res.Price.Sub(res.PreviousPrice)
	}

	if (cur.Cached || cur.Persisted) && cur.Quote.ChangePct.IsZero() && !res.Change.IsZero() {
		err := s.store.UpdateChangePct(ctx, id, date, res.Change)
		switch {
		case err == nil:
			s.metrics.RecordBackfill(string(id))
		case !errors.Is(err, quote.ErrNotFound):
			return Result{}, fmt.Errorf("backfilling change for %s: %w", id, err)
		}
	}

	s.metrics.RecordLastValue(string(id), res.Price.InexactFloat64())
	return res, nil
}

// Outcome is one asset's result within a batch.
type Outcome struct {
	AssetID domain.AssetID
	Result  Result
	Err     error
}

// ComputeMany computes every id for date with bounded concurrency. Assets
// that are not computable are reported in their Outcome without stopping
// the batch; any other failure cancels the batch and is returned.
func (s *Service) ComputeMany(ctx context.Context, ids []domain.AssetID, date time.Time) ([]Outcome, error) {
	out := make([]Outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.Compute(gctx, id, date)
			if err != nil && !errors.Is(err, ErrNotComputable) {
				return fmt.Errorf("computing %s: %w", id, err)
			}
			out[i] = Outcome{AssetID: id, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, o := range out {
		if o.Err != nil {
			slog.Warn("asset not computable", "asset", o.AssetID, "date", date.Format(domain.DateLayout), "error", o.Err)
		}
	}
	return out, nil
}

// Latest returns the most recent stored quote for id dated on or before date.
// It never computes.
func (s *Service) Latest(ctx context.Context, id domain.AssetID, date time.Time) (domain.Quote, error) {
	if _, ok := s.graph.Node(id); !ok {
		return domain.Quote{}, fmt.Errorf("asset %q: %w", id, graph.ErrUnknownAsset)
	}
	q, err := s.store.GetLatest(ctx, id, domain.DateOf(date))
	if err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}
