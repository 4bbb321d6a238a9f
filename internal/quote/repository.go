package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/database"
	"github.com/ucsindex/ucs/internal/domain"
)

const selectColumns = `asset_id, quote_date, ts, close, change_pct, components, updated_at`

// PgRepository implements Store with PostgreSQL.
type PgRepository struct {
	pool database.Pool
}

// NewPgRepository creates a new PostgreSQL quote repository.
func NewPgRepository(pool database.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) GetQuote(ctx context.Context, id domain.AssetID, date time.Time) (domain.Quote, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+`
		 FROM quotes
		 WHERE asset_id = $1 AND quote_date = $2`, string(id), domain.DateOf(date))
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quote{}, ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("getting quote %s on %s: %w", id, date.Format(domain.DateLayout), err)
	}
	return q, nil
}

func (r *PgRepository) GetLatest(ctx context.Context, id domain.AssetID, date time.Time) (domain.Quote, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+`
		 FROM quotes
		 WHERE asset_id = $1 AND quote_date <= $2
		 ORDER BY quote_date DESC
		 LIMIT 1`, string(id), domain.DateOf(date))
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quote{}, ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("getting latest quote %s: %w", id, err)
	}
	return q, nil
}

func (r *PgRepository) SaveQuote(ctx context.Context, q domain.Quote) error {
	components, err := json.Marshal(q.Components)
	if err != nil {
		return fmt.Errorf("marshaling components: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO quotes (asset_id, quote_date, ts, close, change_pct, components, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, NOW())
		 ON CONFLICT (asset_id, quote_date)
		 DO UPDATE SET ts = $3, close = $4, change_pct = $5, components = $6::jsonb, updated_at = NOW()`,
		string(q.AssetID), domain.DateOf(q.Date), q.Timestamp, q.Close, q.ChangePct, components)
	if err != nil {
		return fmt.Errorf("saving quote %s: %w", q.AssetID, err)
	}
	return nil
}

func (r *PgRepository) UpdateChangePct(ctx context.Context, id domain.AssetID, date time.Time, pct decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quotes SET change_pct = $3, updated_at = NOW()
		 WHERE asset_id = $1 AND quote_date = $2`,
		string(id), domain.DateOf(date), pct)
	if err != nil {
		return fmt.Errorf("updating change for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanQuote(row pgx.Row) (domain.Quote, error) {
	var (
		q          domain.Quote
		assetID    string
		components []byte
	)
	if err := row.Scan(&assetID, &q.Date, &q.Timestamp, &q.Close, &q.ChangePct, &components, &q.UpdatedAt); err != nil {
		return domain.Quote{}, err
	}
	q.AssetID = domain.AssetID(assetID)
	q.Date = domain.DateOf(q.Date)
	if len(components) > 0 {
		if err := json.Unmarshal(components, &q.Components); err != nil {
			return domain.Quote{}, fmt.Errorf("decoding components: %w", err)
		}
	}
	return q, nil
}
