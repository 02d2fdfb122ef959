package recon

import (
	"context"
	"errors"
	"testing"

	"stock_sync/internal/lock"
	"stock_sync/internal/model"
)

type deniedLocker struct{}

func (deniedLocker) Acquire(ctx context.Context, productID string) (func(context.Context), error) {
	return nil, lock.ErrNotObtained
}

type trackLocker struct {
	acquired int
	released int
}

func (l *trackLocker) Acquire(ctx context.Context, productID string) (func(context.Context), error) {
	l.acquired++
	return func(context.Context) { l.released++ }, nil
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func TestOrchestratorPriceThenStock(t *testing.T) {
	fc := newFakeClient(sku("a", at(1), 5), sku("b", at(2), 5))
	e := NewEngine(fc, 1000, nil)
	jnl := newMemJournal()
	orch := NewOrchestrator(e, lock.NoopLocker{}, jnl, nil)

	out, err := orch.Run(context.Background(), "req-1", "p1", ReconRequest{
		DesiredStock: i64(20),
		NewPrice:     f64(30),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != model.ReconPassSucceeded {
		t.Fatalf("status = %v, want succeeded", out.Status)
	}
	// 价格先行：所有 price 更新必须在 stock 更新之前下发
	calls := fc.updateCalls()
	if len(calls) != 3 {
		t.Fatalf("expected 2 price + 1 stock updates, got %d", len(calls))
	}
	for _, call := range calls[:2] {
		if call.Patch.Price == nil {
			t.Fatalf("expected price update first, got %+v", call)
		}
	}
	if calls[2].Patch.Stock == nil {
		t.Fatalf("expected stock update last, got %+v", calls[2])
	}
	if out.UpdatedCount != 3 || out.FailedCount != 0 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if jnl.status[1] != model.ReconPassSucceeded {
		t.Fatalf("journal status = %v, want succeeded", jnl.status[1])
	}
	if len(jnl.actions[1]) != 3 {
		t.Fatalf("journal actions = %d, want 3", len(jnl.actions[1]))
	}
}

func TestOrchestratorLockDeniedFailsPass(t *testing.T) {
	fc := newFakeClient(sku("a", at(1), 5))
	e := NewEngine(fc, 1000, nil)
	jnl := newMemJournal()
	orch := NewOrchestrator(e, deniedLocker{}, jnl, nil)

	out, err := orch.Run(context.Background(), "req-1", "p1", ReconRequest{DesiredStock: i64(9)})
	if !errors.Is(err, lock.ErrNotObtained) {
		t.Fatalf("expected ErrNotObtained, got %v", err)
	}
	if out.Status != model.ReconPassFailed {
		t.Fatalf("status = %v, want failed", out.Status)
	}
	if len(fc.updateCalls()) != 0 {
		t.Fatal("no updates may be issued without the product lock")
	}
	if jnl.status[1] != model.ReconPassFailed {
		t.Fatalf("journal status = %v, want failed", jnl.status[1])
	}
}

func TestOrchestratorLockReleasedAfterRun(t *testing.T) {
	fc := newFakeClient(sku("a", at(1), 5))
	e := NewEngine(fc, 1000, nil)
	locker := &trackLocker{}
	orch := NewOrchestrator(e, locker, newMemJournal(), nil)

	if _, err := orch.Run(context.Background(), "req-1", "p1", ReconRequest{DesiredStock: i64(3)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locker.acquired != 1 || locker.released != 1 {
		t.Fatalf("lock acquired=%d released=%d, want 1/1", locker.acquired, locker.released)
	}
}

func TestOrchestratorNoopWhenNothingChanges(t *testing.T) {
	fc := newFakeClient(sku("a", at(1), 5))
	e := NewEngine(fc, 1000, nil)
	orch := NewOrchestrator(e, lock.NoopLocker{}, newMemJournal(), nil)

	out, err := orch.Run(context.Background(), "req-1", "p1", ReconRequest{DesiredStock: i64(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != model.ReconPassNoop {
		t.Fatalf("status = %v, want noop", out.Status)
	}
	if len(fc.updateCalls()) != 0 {
		t.Fatal("noop pass must not issue updates")
	}
}

func TestOrchestratorPartialOnPerSKUFailure(t *testing.T) {
	fc := newFakeClient(sku("a", at(1), 5), sku("b", at(2), 5))
	fc.failSKU["b"] = errors.New("boom")
	e := NewEngine(fc, 1000, nil)
	orch := NewOrchestrator(e, lock.NoopLocker{}, newMemJournal(), nil)

	out, err := orch.Run(context.Background(), "req-1", "p1", ReconRequest{NewPrice: f64(15)})
	if err != nil {
		t.Fatalf("per-sku failure must not fail the pass outright: %v", err)
	}
	if out.Status != model.ReconPassPartial {
		t.Fatalf("status = %v, want partial", out.Status)
	}
	if out.UpdatedCount != 1 || out.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
}

func TestOrchestratorPriceFailureDoesNotBlockStock(t *testing.T) {
	fc := newFakeClient(sku("a", at(1), 5))
	e := NewEngine(fc, 1000, nil)
	orch := NewOrchestrator(e, lock.NoopLocker{}, newMemJournal(), nil)

	// 无效价格被本地吸收为 no-op，库存对账照常执行
	out, err := orch.Run(context.Background(), "req-1", "p1", ReconRequest{
		DesiredStock: i64(8),
		NewPrice:     f64(-1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Stock.UpdatedCount != 1 {
		t.Fatalf("stock must still be reconciled: %+v", out)
	}
	if out.Price.UpdatedCount != 0 {
		t.Fatalf("invalid price must propagate nothing: %+v", out)
	}
	if out.Status != model.ReconPassSucceeded {
		t.Fatalf("status = %v, want succeeded", out.Status)
	}
}

func TestOrchestratorFailedWhenSnapshotUnavailable(t *testing.T) {
	fc := newFakeClient(sku("a", at(1), 5))
	fc.listErr = errors.New("record api down")
	e := NewEngine(fc, 1000, nil)
	jnl := newMemJournal()
	orch := NewOrchestrator(e, lock.NoopLocker{}, jnl, nil)

	out, err := orch.Run(context.Background(), "req-1", "p1", ReconRequest{DesiredStock: i64(3)})
	if err != nil {
		t.Fatalf("run itself reports via status, got %v", err)
	}
	if out.Status != model.ReconPassFailed {
		t.Fatalf("status = %v, want failed", out.Status)
	}
	if out.ErrorMsg == "" {
		t.Fatal("expected error message on failed pass")
	}
}
