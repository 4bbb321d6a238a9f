package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/calendar"
	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/engine"
	"github.com/ucsindex/ucs/internal/graph"
	"github.com/ucsindex/ucs/internal/quote"
	"github.com/ucsindex/ucs/internal/simulation"
)

var (
	thursday = time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	friday   = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
)

type apiFixture struct {
	handler *Handler
	mux     *http.ServeMux
	store   *quote.MemoryStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	g, err := graph.Default()
	if err != nil {
		t.Fatal(err)
	}
	store := quote.NewMemoryStore()
	calc := engine.NewService(g, store, calendar.New(), engine.Options{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2025, 3, 20, 15, 0, 0, 0, time.UTC) },
	})
	sim := simulation.NewService(calc, nil)
	handler := NewHandler(calc, sim, []domain.AssetID{"ucs", "ucs_ase"})

	base := map[domain.AssetID]string{
		"soja": "20", "milho": "60", "boi_gordo": "300", "madeira": "100",
		"carbono": "10", "usd": "5", "eur": "6",
	}
	for _, date := range []time.Time{thursday, friday} {
		for id, v := range base {
			q := domain.NewQuote(id, date, decimal.RequireFromString(v), nil)
			if err := store.SaveQuote(context.Background(), q); err != nil {
				t.Fatal(err)
			}
		}
	}
	return &apiFixture{handler: handler, mux: NewMux(handler, "", nil), store: store}
}

func (f *apiFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func TestListAssets(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/assets", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var views []struct {
		ID         string   `json:"id"`
		Dependents []string `json:"dependents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 18 {
		t.Errorf("got %d assets, want 18", len(views))
	}
	for _, v := range views {
		if v.Dependents == nil {
			t.Errorf("%s: dependents should be an empty list, not null", v.ID)
		}
	}
}

func TestGetAsset(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/assets/soja", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var view struct {
		ID         string   `json:"id"`
		Category   string   `json:"category"`
		Dependents []string `json:"dependents"`
		Affected   []string `json:"affected"`
		Upstream   []string `json:"upstream"`
	}
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Category != "base" {
		t.Errorf("category = %q, want base", view.Category)
	}
	if !lo.Contains(view.Dependents, "vus") || lo.Contains(view.Dependents, "ucs") {
		t.Errorf("dependents = %v, want direct dependents only", view.Dependents)
	}
	if !lo.Contains(view.Affected, "ucs_ase_eur") || lo.Contains(view.Affected, "soja") {
		t.Errorf("affected = %v", view.Affected)
	}
	if len(view.Upstream) != 0 {
		t.Errorf("upstream of a base asset = %v, want none", view.Upstream)
	}

	w = f.do(t, http.MethodGet, "/api/v1/assets/ucs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	view.Upstream = nil
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"pdm", "custo_agua", "ch2o_agua", "soja", "usd"} {
		if !lo.Contains(view.Upstream, want) {
			t.Errorf("upstream of ucs = %v, missing %s", view.Upstream, want)
		}
	}
	if lo.Contains(view.Upstream, "ucs") || lo.Contains(view.Upstream, "ucs_ase") {
		t.Errorf("upstream of ucs = %v, want dependencies only", view.Upstream)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/assets/ouro", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown asset status = %d, want 404", w.Code)
	}
}

func TestComputeAsset(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "index on business day", target: "/api/v1/assets/ucs/compute?date=2025-03-14", wantStatus: http.StatusOK},
		{name: "display date format", target: "/api/v1/assets/vus/compute?date=14/03/2025", wantStatus: http.StatusOK},
		{name: "no quotes for date", target: "/api/v1/assets/ucs/compute?date=2025-03-18", wantStatus: http.StatusNotFound},
		{name: "unknown asset", target: "/api/v1/assets/ouro/compute?date=2025-03-14", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			w := f.do(t, http.MethodGet, tt.target, "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestComputeAssetBody(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/assets/ucs/compute?date=2025-03-14", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var res engine.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Price.IsPositive() {
		t.Errorf("price = %s, want positive", res.Price)
	}
	if res.Date != "2025-03-14" || res.PreviousDate != "2025-03-13" {
		t.Errorf("date = %s, previousDate = %s", res.Date, res.PreviousDate)
	}
	if !res.Persisted {
		t.Error("business day result should be persisted")
	}
	if _, err := f.store.GetQuote(context.Background(), "ucs", friday); err != nil {
		t.Errorf("ucs not stored: %v", err)
	}
}

func TestLatestQuote(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(t, http.MethodGet, "/api/v1/assets/ucs/latest?date=2025-03-16", ""); w.Code != http.StatusNotFound {
		t.Errorf("status before compute = %d, want 404", w.Code)
	}

	f.do(t, http.MethodGet, "/api/v1/assets/ucs/compute?date=2025-03-14", "")

	w := f.do(t, http.MethodGet, "/api/v1/assets/ucs/latest?date=2025-03-16", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var q domain.Quote
	if err := json.NewDecoder(w.Body).Decode(&q); err != nil {
		t.Fatal(err)
	}
	if !q.Date.Equal(friday) {
		t.Errorf("date = %v, want %v", q.Date, friday)
	}
}

func TestPreviewImpact(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
	}{
		{name: "soy edit", body: `{"assetId":"soja","value":"22","date":"2025-03-14"}`, wantStatus: http.StatusOK, wantCount: -1},
		{name: "numeric value", body: `{"assetId":"soja","value":22,"date":"2025-03-14","limit":1}`, wantStatus: http.StatusOK, wantCount: 1},
		{name: "missing value", body: `{"assetId":"soja"}`, wantStatus: http.StatusBadRequest},
		{name: "missing asset", body: `{"value":"1"}`, wantStatus: http.StatusBadRequest},
		{name: "negative value", body: `{"assetId":"soja","value":"-1"}`, wantStatus: http.StatusBadRequest},
		{name: "limit out of range", body: `{"assetId":"soja","value":"1","limit":500}`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"assetId":"soja","value":"1","extra":true}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "unknown asset", body: `{"assetId":"ouro","value":"1"}`, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			w := f.do(t, http.MethodPost, "/api/v1/preview", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp previewResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Impacted) == 0 {
				t.Fatal("expected impacted assets")
			}
			if tt.wantCount >= 0 && len(resp.Impacted) != tt.wantCount {
				t.Errorf("impacted = %d, want %d", len(resp.Impacted), tt.wantCount)
			}
			first := resp.Impacted[0]
			if first.Depth != 1 || !lo.Contains([]domain.AssetID{"vus", "ch2o_agua"}, first.ID) {
				t.Errorf("first impacted = %s at depth %d, want a direct dependent of soja", first.ID, first.Depth)
			}
			if f.store.Len() != 14 {
				t.Errorf("preview wrote to the store: %d quotes", f.store.Len())
			}
		})
	}
}

func TestRunCalculation(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/calculations", `{"date":"2025-03-14"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var views []outcomeView
	if err := json.NewDecoder(w.Body).Decode(&views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].AssetID != "ucs" || views[1].AssetID != "ucs_ase" {
		t.Fatalf("outcomes = %+v, want default assets", views)
	}
	for _, v := range views {
		if v.Result == nil || v.Error != "" {
			t.Errorf("%s: result = %v, error = %q", v.AssetID, v.Result, v.Error)
		}
	}

	w = f.do(t, http.MethodPost, "/api/v1/calculations", `{"date":"2025-03-14","assets":["vus","ouro"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	views = nil
	if err := json.NewDecoder(w.Body).Decode(&views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].Result == nil || views[1].Error == "" {
		t.Errorf("outcomes = %+v, want vus computed and ouro not computable", views)
	}

	if w := f.do(t, http.MethodPost, "/api/v1/calculations", `{"assets":[""]}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty asset status = %d, want 400", w.Code)
	}
}
