package export

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/engine"
)

// IndexSheet is the sheet that receives one row per calculation day.
const IndexSheet = "UCS_INDEX"

// indexCol describes one column of the index sheet.
// change selects the daily change instead of the price.
type indexCol struct {
	header string
	asset  domain.AssetID
	change bool
}

// indexColumns defines the data columns (B onwards) in order.
// Column A (Date) is prepended separately in buildIndexRows.
var indexColumns = []indexCol{
	{header: "UCS", asset: "ucs"},
	{header: "UCS Var %", asset: "ucs", change: true},
	{header: "UCS ASE", asset: "ucs_ase"},
	{header: "UCS ASE Var %", asset: "ucs_ase", change: true},
	{header: "UCS ASE USD", asset: "ucs_ase_usd"},
	{header: "UCS ASE EUR", asset: "ucs_ase_eur"},
	{header: "PDM", asset: "pdm"},
	{header: "Valor Uso Solo", asset: "valor_uso_solo"},
	{header: "VUS", asset: "vus"},
	{header: "VMAD", asset: "vmad"},
	{header: "CRS Carbono", asset: "carbono_crs"},
	{header: "CRS Água", asset: "custo_agua"},
}

// IndexAssets lists the assets the index sheet reads, in column order.
func IndexAssets() []domain.AssetID {
	return lo.Uniq(lo.Map(indexColumns, func(c indexCol, _ int) domain.AssetID { return c.asset }))
}

// SheetWriter appends a row to a spreadsheet sheet, writing the header first
// when the sheet is empty.
type SheetWriter interface {
	AppendRow(ctx context.Context, sheet string, header, row []any) error
}

// Publisher turns a day's calculation outcomes into an index sheet row.
// Implements worker.AfterCalcHook.
type Publisher struct {
	writer SheetWriter
}

// NewPublisher creates a Publisher writing through writer.
func NewPublisher(writer SheetWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Publish appends the index row for date.
func (p *Publisher) Publish(ctx context.Context, date time.Time, outcomes []engine.Outcome) error {
	header, row := buildIndexRows(outcomes, date)
	if err := p.writer.AppendRow(ctx, IndexSheet, header, row); err != nil {
		return fmt.Errorf("appending index row: %w", err)
	}
	return nil
}

// buildIndexRows builds the header row and the data row for date. Assets
// without a result leave their cells empty.
func buildIndexRows(outcomes []engine.Outcome, date time.Time) (header, row []any) {
	byID := lo.KeyBy(
		lo.Filter(outcomes, func(o engine.Outcome, _ int) bool { return o.Err == nil }),
		func(o engine.Outcome) domain.AssetID { return o.AssetID },
	)

	header = make([]any, 1+len(indexColumns))
	header[0] = "Data"
	for i, col := range indexColumns {
		header[i+1] = col.header
	}

	row = make([]any, 1+len(indexColumns))
	row[0] = domain.FormatDisplay(date)
	for i, col := range indexColumns {
		o, ok := byID[col.asset]
		if !ok {
			row[i+1] = nil
			continue
		}
		if col.change {
			row[i+1] = toFloat(o.Result.Change)
		} else {
			row[i+1] = toFloat(o.Result.Price)
		}
	}
	return header, row
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
