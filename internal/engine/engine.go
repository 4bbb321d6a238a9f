package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/calendar"
	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/formula"
	"github.com/ucsindex/ucs/internal/graph"
	"github.com/ucsindex/ucs/internal/metrics"
	"github.com/ucsindex/ucs/internal/quote"
)

// ErrNotComputable indicates that an asset has no usable value for the date,
// usually because an upstream quote is missing.
var ErrNotComputable = errors.New("not computable")

// Mode controls whether a resolution may write to the quote store.
type Mode int

const (
	// ReadWrite persists newly computed values on eligible dates.
	ReadWrite Mode = iota
	// ReadOnly never writes.
	ReadOnly
)

// Recorder receives engine activity. *metrics.Recorder implements it.
type Recorder interface {
	RecordComputation(asset, outcome string)
	RecordPersisted(asset string)
	RecordBackfill(asset string)
	RecordLastValue(asset string, value float64)
	RecordLatency(op string, seconds float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordComputation(string, string) {}
func (nopRecorder) RecordPersisted(string) {}
func (nopRecorder) RecordBackfill(string) {}
func (nopRecorder) RecordLastValue(string, float64) {}
func (nopRecorder) RecordLatency(string, float64) {}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	Location *time.Location
	Lookback int
	Metrics  Recorder
	Now      func() time.Time
}

// Service resolves asset values per date: it returns stored quotes when they
// exist and otherwise evaluates formulas over the dependency graph.
type Service struct {
	graph    *graph.Graph
	store    quote.Store
	calendar *calendar.Calendar
	loc      *time.Location
	lookback int
	metrics  Recorder
	now      func() time.Time
}

// NewService creates a calculation service.
func NewService(g *graph.Graph, store quote.Store, cal *calendar.Calendar, opts Options) *Service {
	s := &Service{
		graph:    g,
		store:    store,
		calendar: cal,
		loc:      opts.Location,
		lookback: opts.Lookback,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.lookback <= 0 {
		s.lookback = calendar.DefaultLookback
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Graph returns the dependency graph the service evaluates.
func (s *Service) Graph() *graph.Graph {
	return s.graph
}

// Today returns the current calendar date in the service's timezone.
func (s *Service) Today() time.Time {
	return domain.DateOf(s.now().In(s.loc))
}

// DateOrToday parses raw as a date. Empty or invalid input yields today;
// invalid input is logged so caller bugs stay visible.
func (s *Service) DateOrToday(raw string) time.Time {
	if raw == "" {
		return s.Today()
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		slog.Warn("invalid date, using today", "date", raw, "error", err)
		return s.Today()
	}
	return d
}

// Persistable reports whether a computed value for date may be written:
// the date must be a business day and not in the future.
func (s *Service) Persistable(date time.Time) bool {
	date = domain.DateOf(date)
	return !date.After(s.Today()) && s.calendar.IsBusinessDay(date)
}

// Resolution is the value of one asset on one date and how it was obtained.
type Resolution struct {
	Quote     domain.Quote
	Rents     map[formula.Role]decimal.Decimal
	Cached    bool
	Persisted bool
}

// Resolve returns the value of id on date. A stored quote with a positive
// close is returned as is. Otherwise the asset's dependencies are resolved
// for the same date and its formula applied; in ReadWrite mode a positive
// result on a persistable date is saved with a zero change placeholder.
func (s *Service) Resolve(ctx context.Context, id domain.AssetID, date time.Time, mode Mode) (Resolution, error) {
	r := &resolver{
		svc:  s,
		date: domain.DateOf(date),
		mode: mode,
		memo: make(map[domain.AssetID]memoEntry),
	}
	return r.resolve(ctx, id)
}

type memoEntry struct {
	res Resolution
	err error
}

// resolver memoizes dependency resolutions within one call so shared inputs
// such as exchange rates are looked up once.
type resolver struct {
	svc  *Service
	date time.Time
	mode Mode
	memo map[domain.AssetID]memoEntry
}

func (r *resolver) resolve(ctx context.Context, id domain.AssetID) (Resolution, error) {
	if e, ok := r.memo[id]; ok {
		return e.res, e.err
	}
	res, err := r.compute(ctx, id)
	r.memo[id] = memoEntry{res: res, err: err}
	return res, err
}

func (r *resolver) compute(ctx context.Context, id domain.AssetID) (Resolution, error) {
	s := r.svc
	node, ok := s.graph.Node(id)
	if !ok {
		return Resolution{}, fmt.Errorf("asset %q: %w: %w", id, ErrNotComputable, graph.ErrUnknownAsset)
	}

	stored, err := s.store.GetQuote(ctx, id, r.date)
	switch {
	case err == nil && stored.Usable():
		s.metrics.RecordComputation(string(id), metrics.OutcomeCacheHit)
		return Resolution{Quote: stored, Rents: rentsFor(node, stored.Components), Cached: true}, nil
	case err != nil && !errors.Is(err, quote.ErrNotFound):
		return Resolution{}, fmt.Errorf("reading %s: %w", id, err)
	}

	if !node.Derived() {
		return Resolution{}, r.notComputable(id, "no quote for base asset")
	}

	components := make(map[domain.AssetID]decimal.Decimal, len(node.DependsOn))
	for _, dep := range node.DependsOn {
		depRes, err := r.resolve(ctx, dep)
		if err != nil {
			if errors.Is(err, ErrNotComputable) {
				return Resolution{}, r.notComputable(id, fmt.Sprintf("dependency %s unavailable", dep))
			}
			return Resolution{}, err
		}
		components[dep] = depRes.Quote.Close
	}

	in := inputsFor(node, components)
	value := formula.Evaluate(node.Formula, in)
	if !value.IsPositive() {
		return Resolution{}, r.notComputable(id, "formula produced zero")
	}

	res := Resolution{
		Quote: domain.NewQuote(id, r.date, value, components),
		Rents: rentsFor(node, components),
	}
	s.metrics.RecordComputation(string(id), metrics.OutcomeComputed)

	if r.mode == ReadWrite && s.Persistable(r.date) {
		if err := s.store.SaveQuote(ctx, res.Quote); err != nil {
			return Resolution{}, fmt.Errorf("persisting %s: %w", id, err)
		}
		res.Persisted = true
		s.metrics.RecordPersisted(string(id))
		slog.Debug("persisted quote", "asset", id, "date", r.date.Format(domain.DateLayout), "close", value.String())
	}
	return res, nil
}

func (r *resolver) notComputable(id domain.AssetID, reason string) error {
	r.svc.metrics.RecordComputation(string(id), metrics.OutcomeNotComputable)
	slog.Debug("asset not computable", "asset", id, "date", r.date.Format(domain.DateLayout), "reason", reason)
	return fmt.Errorf("asset %s on %s: %s: %w", id, r.date.Format(domain.DateLayout), reason, ErrNotComputable)
}

// inputsFor binds resolved dependency values to the node's formula roles.
func inputsFor(node graph.Node, components map[domain.AssetID]decimal.Decimal) formula.Inputs {
	values := make(map[formula.Role]decimal.Decimal, len(node.Inputs))
	for role, asset := range node.Inputs {
		values[role] = components[asset]
	}
	return formula.Inputs{Values: values, Weights: node.RoleWeights()}
}

// rentsFor returns the normalized rent of every raw commodity the node's
// formula consumes, or nil when it consumes none.
func rentsFor(node graph.Node, components map[domain.AssetID]decimal.Decimal) map[formula.Role]decimal.Decimal {
	if !node.Derived() || len(components) == 0 {
		return nil
	}
	rents := formula.Rents(inputsFor(node, components))
	if len(rents) == 0 {
		return nil
	}
	return rents
}
