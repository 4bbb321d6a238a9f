package quote

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
)

// ErrNotFound indicates that no quote exists for the requested asset and date.
var ErrNotFound = errors.New("quote not found")

// Store is the quote persistence used by the calculation engine.
// Records are keyed by (asset, calendar date); SaveQuote overwrites by key.
type Store interface {
	GetQuote(ctx context.Context, id domain.AssetID, date time.Time) (domain.Quote, error)
	// GetLatest returns the most recent quote dated on or before date.
	GetLatest(ctx context.Context, id domain.AssetID, date time.Time) (domain.Quote, error)
	SaveQuote(ctx context.Context, q domain.Quote) error
	UpdateChangePct(ctx context.Context, id domain.AssetID, date time.Time, pct decimal.Decimal) error
}
