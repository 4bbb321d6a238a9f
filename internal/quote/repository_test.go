package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
)

var quoteColumns = []string{"asset_id", "quote_date", "ts", "close", "change_pct", "components", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestPgRepositoryGetQuote(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 3, 14, 22, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM quotes\\s+WHERE asset_id = \\$1 AND quote_date = \\$2").
		WithArgs("vus", date).
		WillReturnRows(pgxmock.NewRows(quoteColumns).AddRow(
			"vus", date, date.UnixMilli(),
			decimal.RequireFromString("203847"), decimal.RequireFromString("1.5"),
			[]byte(`{"soja":"120","milho":"60"}`), updated,
		))

	q, err := repo.GetQuote(context.Background(), "vus", date)
	if err != nil {
		t.Fatalf("GetQuote(): %v", err)
	}
	if q.AssetID != "vus" || !q.Date.Equal(date) {
		t.Errorf("got %s on %s", q.AssetID, q.Date)
	}
	if !q.Close.Equal(decimal.NewFromInt(203847)) {
		t.Errorf("Close = %s, want 203847", q.Close)
	}
	if !q.Components["soja"].Equal(decimal.NewFromInt(120)) {
		t.Errorf("Components[soja] = %s, want 120", q.Components["soja"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPgRepositoryGetQuoteNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM quotes").
		WithArgs("soja", date).
		WillReturnRows(pgxmock.NewRows(quoteColumns))

	_, err := repo.GetQuote(context.Background(), "soja", date)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPgRepositoryGetQuoteError(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)

	mock.ExpectQuery("FROM quotes").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetQuote(context.Background(), "soja", time.Now())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want a wrapped store failure", err)
	}
}

func TestPgRepositoryGetLatest(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	asOf := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	friday := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("quote_date <= \\$2\\s+ORDER BY quote_date DESC").
		WithArgs("ucs", asOf).
		WillReturnRows(pgxmock.NewRows(quoteColumns).AddRow(
			"ucs", friday, friday.UnixMilli(),
			decimal.RequireFromString("120.5"), decimal.Zero,
			[]byte(`{"pdm":"216900"}`), friday,
		))

	q, err := repo.GetLatest(context.Background(), "ucs", asOf)
	if err != nil {
		t.Fatalf("GetLatest(): %v", err)
	}
	if !q.Date.Equal(friday) {
		t.Errorf("Date = %s, want %s", q.Date, friday)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPgRepositorySaveQuote(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	q := domain.NewQuote("ucs", date, decimal.RequireFromString("120.5"),
		map[domain.AssetID]decimal.Decimal{"pdm": decimal.NewFromInt(216900)})

	mock.ExpectExec("INSERT INTO quotes[\\s\\S]+ON CONFLICT \\(asset_id, quote_date\\)").
		WithArgs("ucs", date, date.UnixMilli(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.SaveQuote(context.Background(), q); err != nil {
		t.Fatalf("SaveQuote(): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPgRepositoryUpdateChangePct(t *testing.T) {
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"patched", 1, nil},
		{"missing row", 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewPgRepository(mock)

			mock.ExpectExec("UPDATE quotes SET change_pct").
				WithArgs("ucs", date, pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := repo.UpdateChangePct(context.Background(), "ucs", date, decimal.RequireFromString("2.5"))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}
