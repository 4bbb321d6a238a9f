package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetID identifies an asset in the dependency graph (e.g. "soja", "vus", "ucs_ase").
type AssetID string

// Category classifies an asset node.
type Category string

const (
	CategoryBase       Category = "base"
	CategoryCalculated Category = "calculated"
	CategorySubIndex   Category = "sub-index"
	CategoryIndex      Category = "index"
	CategoryCurrency   Category = "currency"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBase, CategoryCalculated, CategorySubIndex, CategoryIndex, CategoryCurrency:
		return true
	}
	return false
}

// Currency is the ISO code an asset's close is expressed in.
type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Quote is the resolved value of one asset on one calendar date.
// Components holds the direct-dependency values a derived close was computed from.
type Quote struct {
	AssetID    AssetID                     `json:"assetId"`
	Date       time.Time                   `json:"date"`
	Timestamp  int64                       `json:"timestamp"`
	Close      decimal.Decimal             `json:"close"`
	ChangePct  decimal.Decimal             `json:"changePct"`
	Components map[AssetID]decimal.Decimal `json:"components,omitempty"`
	UpdatedAt  time.Time                   `json:"updatedAt"`
}

// NewQuote builds a quote for the given date, deriving the millisecond timestamp from it.
func NewQuote(id AssetID, date time.Time, value decimal.Decimal, components map[AssetID]decimal.Decimal) Quote {
	d := DateOf(date)
	return Quote{
		AssetID:    id,
		Date:       d,
		Timestamp:  d.UnixMilli(),
		Close:      value,
		ChangePct:  decimal.Zero,
		Components: components,
	}
}

// Usable reports whether the quote carries a positive close.
// Zero closes mean the value could not be computed and are never trusted.
func (q Quote) Usable() bool {
	return q.Close.IsPositive()
}
