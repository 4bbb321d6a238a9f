package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/engine"
	"github.com/ucsindex/ucs/internal/formula"
	"github.com/ucsindex/ucs/internal/graph"
)

// ErrInvalidValue indicates a negative override value.
var ErrInvalidValue = errors.New("override value must not be negative")

// NegligibleChange is the absolute percentage change below which a
// downstream asset is left out of a preview.
var NegligibleChange = decimal.RequireFromString("0.001")

// Resolver reads asset values without writing. *engine.Service implements it.
type Resolver interface {
	Graph() *graph.Graph
	Resolve(ctx context.Context, id domain.AssetID, date time.Time, mode engine.Mode) (engine.Resolution, error)
}

// Recorder receives preview activity. *metrics.Recorder implements it.
type Recorder interface {
	RecordPreview(asset string)
	RecordLatency(op string, seconds float64)
}

// ImpactedAsset describes how one downstream asset would move under an override.
type ImpactedAsset struct {
	ID               domain.AssetID  `json:"id"`
	Name             string          `json:"name"`
	OldValue         decimal.Decimal `json:"oldValue"`
	NewValue         decimal.Decimal `json:"newValue"`
	PercentageChange decimal.Decimal `json:"percentageChange"`
	Formula          string          `json:"formula"`
	Depth            int             `json:"depth"`
}

// Service previews the effect of editing one asset's value. It never writes.
type Service struct {
	resolver Resolver
	metrics  Recorder
}

// NewService creates a simulation service. rec may be nil.
func NewService(resolver Resolver, rec Recorder) *Service {
	return &Service{resolver: resolver, metrics: rec}
}

// Snapshot returns the current value of every asset on date. Assets that are
// not computable contribute zero.
func (s *Service) Snapshot(ctx context.Context, date time.Time) (map[domain.AssetID]decimal.Decimal, error) {
	ids := s.resolver.Graph().TopologicalOrder()
	values := make(map[domain.AssetID]decimal.Decimal, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			v := decimal.Zero
			res, err := s.resolver.Resolve(gctx, id, date, engine.ReadOnly)
			switch {
			case err == nil:
				v = res.Quote.Close
			case !errors.Is(err, engine.ErrNotComputable):
				return fmt.Errorf("resolving %s: %w", id, err)
			}
			mu.Lock()
			values[id] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// PreviewImpact replays the formula pipeline for date with edited set to
// value and reports every downstream asset whose value moves by more than
// NegligibleChange percent, ordered by depth from the edited asset.
func (s *Service) PreviewImpact(ctx context.Context, edited domain.AssetID, value decimal.Decimal, date time.Time) ([]ImpactedAsset, error) {
	start := time.Now()
	g := s.resolver.Graph()
	if _, ok := g.Node(edited); !ok {
		return nil, fmt.Errorf("asset %q: %w", edited, graph.ErrUnknownAsset)
	}
	if value.IsNegative() {
		return nil, ErrInvalidValue
	}

	before, err := s.Snapshot(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("taking snapshot: %w", err)
	}

	after := lo.Assign(before)
	after[edited] = value

	affected := g.AffectedAssets(edited)
	depths := g.Depths([]domain.AssetID{edited}, affected)

	var impacted []ImpactedAsset
	for _, id := range affected {
		node, _ := g.Node(id)
		after[id] = evaluate(node, after)

		oldValue, newValue := before[id], after[id]
		if negligible(oldValue, newValue) {
			continue
		}
		impacted = append(impacted, ImpactedAsset{
			ID:               id,
			Name:             node.Name,
			OldValue:         oldValue,
			NewValue:         newValue,
			PercentageChange: domain.PercentChange(newValue, oldValue),
			Formula:          node.Formula.Label(),
			Depth:            depths[id],
		})
	}
	sort.SliceStable(impacted, func(i, j int) bool { return impacted[i].Depth < impacted[j].Depth })

	if s.metrics != nil {
		s.metrics.RecordPreview(string(edited))
		s.metrics.RecordLatency("preview", time.Since(start).Seconds())
	}
	return impacted, nil
}

func evaluate(node graph.Node, values map[domain.AssetID]decimal.Decimal) decimal.Decimal {
	in := formula.Inputs{
		Values:  make(map[formula.Role]decimal.Decimal, len(node.Inputs)),
		Weights: node.RoleWeights(),
	}
	for role, asset := range node.Inputs {
		in.Values[role] = values[asset]
	}
	return formula.Evaluate(node.Formula, in)
}

// negligible reports whether moving from oldValue to newValue is noise.
// A change from zero to a positive value is always significant.
func negligible(oldValue, newValue decimal.Decimal) bool {
	if oldValue.IsZero() {
		return newValue.IsZero()
	}
	return domain.PercentChange(newValue, oldValue).Abs().LessThan(NegligibleChange)
}
