package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/engine"
	"github.com/ucsindex/ucs/internal/graph"
	"github.com/ucsindex/ucs/internal/quote"
	"github.com/ucsindex/ucs/internal/simulation"
)

// Calculator is the engine surface the handlers call.
type Calculator interface {
	Graph() *graph.Graph
	DateOrToday(raw string) time.Time
	Compute(ctx context.Context, id domain.AssetID, date time.Time) (engine.Result, error)
	ComputeMany(ctx context.Context, ids []domain.AssetID, date time.Time) ([]engine.Outcome, error)
	Latest(ctx context.Context, id domain.AssetID, date time.Time) (domain.Quote, error)
}

// Previewer runs what-if simulations.
type Previewer interface {
	PreviewImpact(ctx context.Context, edited domain.AssetID, value decimal.Decimal, date time.Time) ([]simulation.ImpactedAsset, error)
}

// Handler provides HTTP endpoints for the calculation engine.
type Handler struct {
	calc          Calculator
	preview       Previewer
	defaultAssets []domain.AssetID
}

// NewHandler creates a new API handler. defaultAssets is the batch used when
// a calculation request names no assets.
func NewHandler(calc Calculator, preview Previewer, defaultAssets []domain.AssetID) *Handler {
	return &Handler{calc: calc, preview: preview, defaultAssets: defaultAssets}
}

type assetView struct {
	graph.Node
	Dependents []domain.AssetID `json:"dependents"`
	Affected   []domain.AssetID `json:"affected,omitempty"`
	Upstream   []domain.AssetID `json:"upstream,omitempty"`
}

// ListAssets handles GET /api/v1/assets.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	g := h.calc.Graph()
	views := lo.Map(g.Nodes(), func(n graph.Node, _ int) assetView {
		return assetView{Node: n, Dependents: orEmpty(g.DirectDependents(n.ID))}
	})
	writeJSON(w, http.StatusOK, views)
}

// GetAsset handles GET /api/v1/assets/{id}.
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	g := h.calc.Graph()
	id := domain.AssetID(r.PathValue("id"))
	node, ok := g.Node(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown asset")
		return
	}
	writeJSON(w, http.StatusOK, assetView{
		Node:       node,
		Dependents: orEmpty(g.DirectDependents(id)),
		Affected:   g.AffectedAssets(id),
		Upstream:   g.Closure(id),
	})
}

// ComputeAsset handles GET /api/v1/assets/{id}/compute?date=.
func (h *Handler) ComputeAsset(w http.ResponseWriter, r *http.Request) {
	id := domain.AssetID(r.PathValue("id"))
	date := h.calc.DateOrToday(r.URL.Query().Get("date"))

	res, err := h.calc.Compute(r.Context(), id, date)
	if err != nil {
		h.writeEngineError(w, err, "compute", id)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LatestQuote handles GET /api/v1/assets/{id}/latest?date=.
func (h *Handler) LatestQuote(w http.ResponseWriter, r *http.Request) {
	id := domain.AssetID(r.PathValue("id"))
	date := h.calc.DateOrToday(r.URL.Query().Get("date"))

	q, err := h.calc.Latest(r.Context(), id, date)
	if err != nil {
		h.writeEngineError(w, err, "latest", id)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type outcomeView struct {
	AssetID domain.AssetID `json:"assetId"`
	Result  *engine.Result `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RunCalculation handles POST /api/v1/calculations.
func (h *Handler) RunCalculation(w http.ResponseWriter, r *http.Request) {
	var req calculationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ids := lo.Map(req.Assets, func(s string, _ int) domain.AssetID { return domain.AssetID(s) })
	if len(ids) == 0 {
		ids = h.defaultAssets
	}

	date := h.calc.DateOrToday(req.Date)
	outcomes, err := h.calc.ComputeMany(r.Context(), ids, date)
	if err != nil {
		slog.Error("failed to run calculation", "date", date.Format(domain.DateLayout), "error", err)
		writeError(w, http.StatusInternalServerError, "calculation failed")
		return
	}

	views := lo.Map(outcomes, func(o engine.Outcome, _ int) outcomeView {
		if o.Err != nil {
			return outcomeView{AssetID: o.AssetID, Error: o.Err.Error()}
		}
		return outcomeView{AssetID: o.AssetID, Result: &o.Result}
	})
	writeJSON(w, http.StatusOK, views)
}

// PreviewImpact handles POST /api/v1/preview.
func (h *Handler) PreviewImpact(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id := domain.AssetID(req.AssetID)
	date := h.calc.DateOrToday(req.Date)
	impacted, err := h.preview.PreviewImpact(r.Context(), id, *req.Value, date)
	if err != nil {
		h.writeEngineError(w, err, "preview", id)
		return
	}
	if len(impacted) > req.Limit {
		impacted = impacted[:req.Limit]
	}
	writeJSON(w, http.StatusOK, previewResponse{
		AssetID:  id,
		Date:     date.Format(domain.DateLayout),
		Impacted: orEmpty(impacted),
	})
}

type previewResponse struct {
	AssetID  domain.AssetID             `json:"assetId"`
	Date     string                     `json:"date"`
	Impacted []simulation.ImpactedAsset `json:"impacted"`
}

// writeEngineError maps engine sentinels onto HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error, op string, id domain.AssetID) {
	switch {
	case errors.Is(err, graph.ErrUnknownAsset):
		writeError(w, http.StatusNotFound, "unknown asset")
	case errors.Is(err, engine.ErrNotComputable):
		slog.Debug("asset not computable", "op", op, "asset", id, "error", err)
		writeError(w, http.StatusNotFound, "asset not computable for date")
	case errors.Is(err, quote.ErrNotFound):
		writeError(w, http.StatusNotFound, "no quote found")
	case errors.Is(err, simulation.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "op", op, "asset", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
