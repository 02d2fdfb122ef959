package recon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock_sync/internal/model"

	"github.com/shopspring/decimal"
)

// fakeRecordClient 内存版记录服务：记录每次更新调用并回放到快照，
// 可按 SKU 注入更新失败。
type fakeRecordClient struct {
	mu      sync.Mutex
	skus    []model.SKU
	listErr error
	failSKU map[string]error
	updates []updateCall
}

type updateCall struct {
	SKUID string
	Patch model.SKUPatch
}

func newFakeClient(skus ...model.SKU) *fakeRecordClient {
	return &fakeRecordClient{skus: skus, failSKU: map[string]error{}}
}

func (f *fakeRecordClient) ListSKUsByProduct(ctx context.Context, productID string, limit int) ([]model.SKU, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.SKU, len(f.skus))
	copy(out, f.skus)
	return out, nil
}

func (f *fakeRecordClient) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	return model.Product{ID: productID}, nil
}

func (f *fakeRecordClient) UpdateSKU(ctx context.Context, skuID string, patch model.SKUPatch) (model.SKU, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{SKUID: skuID, Patch: patch})
	if err, ok := f.failSKU[skuID]; ok {
		return model.SKU{}, err
	}
	for i := range f.skus {
		if f.skus[i].ID == skuID {
			if patch.Stock != nil {
				f.skus[i].Stock = *patch.Stock
			}
			if patch.Price != nil {
				f.skus[i].Price = *patch.Price
			}
			return f.skus[i], nil
		}
	}
	return model.SKU{}, fmt.Errorf("sku %s not found", skuID)
}

func (f *fakeRecordClient) UpdateProduct(ctx context.Context, productID string, patch model.ProductPatch) (model.Product, error) {
	return model.Product{ID: productID}, nil
}

func (f *fakeRecordClient) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]updateCall, len(f.updates))
	copy(out, f.updates)
	return out
}

func (f *fakeRecordClient) stockOf(skuID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.skus {
		if s.ID == skuID {
			return s.Stock
		}
	}
	return -1
}

func (f *fakeRecordClient) totalStock() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, s := range f.skus {
		sum += s.Stock
	}
	return sum
}

func sku(id string, createdAt time.Time, stock int64) model.SKU {
	return model.SKU{
		ID:        id,
		ProductID: "p1",
		Code:      "SKU-" + id,
		Stock:     stock,
		Price:     decimal.NewFromInt(10),
		CreatedAt: createdAt,
	}
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// memJournal 内存流水，供编排器单测。
type memJournal struct {
	mu      sync.Mutex
	passes  map[string]*model.ReconPass
	actions map[uint][]Action
	nextID  uint
	status  map[uint]model.ReconPassStatus
}

func newMemJournal() *memJournal {
	return &memJournal{
		passes:  map[string]*model.ReconPass{},
		actions: map[uint][]Action{},
		status:  map[uint]model.ReconPassStatus{},
	}
}

func (m *memJournal) EnsurePass(ctx context.Context, requestID, productID string, req ReconRequest) (*model.ReconPass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.passes[requestID]; ok {
		return p, nil
	}
	m.nextID++
	p := &model.ReconPass{ID: m.nextID, RequestID: requestID, ProductID: productID, Status: model.ReconPassPending}
	m.passes[requestID] = p
	return p, nil
}

func (m *memJournal) RecordActions(ctx context.Context, passID uint, actions []Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[passID] = append(m.actions[passID], actions...)
	return nil
}

func (m *memJournal) FinishPass(ctx context.Context, passID uint, status model.ReconPassStatus, updated, failed int, shortfall int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[passID] = status
	return nil
}
