package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ucsindex/ucs/internal/domain"
	"github.com/ucsindex/ucs/internal/engine"
)

type mockCalculator struct {
	callCount   atomic.Int32
	persistable bool
	err         error
}

func (m *mockCalculator) ComputeMany(_ context.Context, ids []domain.AssetID, _ time.Time) ([]engine.Outcome, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]engine.Outcome, len(ids))
	for i, id := range ids {
		out[i] = engine.Outcome{AssetID: id}
	}
	return out, nil
}

func (m *mockCalculator) Persistable(time.Time) bool { return m.persistable }

func (m *mockCalculator) Today() time.Time {
	return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
}

type mockHook struct {
	callCount atomic.Int32
}

func (m *mockHook) Publish(_ context.Context, _ time.Time, _ []engine.Outcome) error {
	m.callCount.Add(1)
	return nil
}

func TestCalcWorkerRunOnce(t *testing.T) {
	calc := &mockCalculator{persistable: true}
	hook := &mockHook{}
	w := NewCalcWorker(calc, []domain.AssetID{"ucs", "ucs_ase"}, "@daily", time.UTC, hook)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce(): %v", err)
	}
	if got := calc.callCount.Load(); got != 1 {
		t.Errorf("compute calls = %d, want 1", got)
	}
	if got := hook.callCount.Load(); got != 1 {
		t.Errorf("hook calls = %d, want 1", got)
	}
}

func TestCalcWorkerSkipsNonBusinessDays(t *testing.T) {
	calc := &mockCalculator{persistable: false}
	hook := &mockHook{}
	w := NewCalcWorker(calc, []domain.AssetID{"ucs"}, "@daily", time.UTC, hook)

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce(): %v", err)
	}
	if got := calc.callCount.Load(); got != 0 {
		t.Errorf("compute calls = %d, want 0", got)
	}
	if got := hook.callCount.Load(); got != 0 {
		t.Errorf("hook calls = %d, want 0", got)
	}
}

func TestCalcWorkerRunOnceError(t *testing.T) {
	calc := &mockCalculator{persistable: true, err: errors.New("store down")}
	hook := &mockHook{}
	w := NewCalcWorker(calc, []domain.AssetID{"ucs"}, "@daily", time.UTC, hook)

	if err := w.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := hook.callCount.Load(); got != 0 {
		t.Errorf("hook calls = %d, want 0 after failure", got)
	}
}

func TestCalcWorkerRunsAndShutdown(t *testing.T) {
	calc := &mockCalculator{persistable: true}
	w := NewCalcWorker(calc, []domain.AssetID{"ucs"}, "@every 1s", time.UTC, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if got := calc.callCount.Load(); got < 1 {
		t.Errorf("call count = %d, want >= 1", got)
	}
}

func TestCalcWorkerRejectsBadSchedule(t *testing.T) {
	w := NewCalcWorker(&mockCalculator{}, nil, "not a schedule", time.UTC, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected schedule error")
	}
}
