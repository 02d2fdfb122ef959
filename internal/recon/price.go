package recon

import (
	"context"
	"math"
	"sync"

	"stock_sync/internal/model"

	"github.com/shopspring/decimal"
)

// PropagatePrice 把新基准价下发到商品的每个 SKU。
// 价格下发没有顺序依赖（不同于库存重分配），逐 SKU 更新并行发出；
// 任一 SKU 失败不影响其余更新，允许部分成功，不做回滚。
// newPrice 非有限数或为负时静默 no-op（零次更新调用），防止脏价格污染 SKU。
func (e *Engine) PropagatePrice(ctx context.Context, productID string, newPrice float64) (Result, error) {
	res := Result{Errors: []SKUError{}}
	if math.IsNaN(newPrice) || math.IsInf(newPrice, 0) || newPrice < 0 {
		return res, nil
	}

	skus, err := e.loadSnapshot(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	if len(skus) == 0 {
		return res, nil
	}

	price := decimal.NewFromFloat(newPrice)
	actions := make([]Action, len(skus))

	var wg sync.WaitGroup
	for i, sku := range skus {
		wg.Add(1)
		go func(idx int, sku model.SKU) {
			defer wg.Done()
			action := Action{
				SKUID:    sku.ID,
				Field:    "price",
				OldValue: sku.Price.String(),
				NewValue: price.String(),
			}
			p := price
			if _, err := e.rc.UpdateSKU(ctx, sku.ID, model.SKUPatch{Price: &p}); err != nil {
				action.ErrorMsg = err.Error()
			} else {
				action.Applied = true
			}
			actions[idx] = action
		}(i, sku)
	}
	wg.Wait()

	for _, action := range actions {
		if action.Applied {
			res.UpdatedCount++
		} else {
			res.Errors = append(res.Errors, SKUError{SKUID: action.SKUID, Message: action.ErrorMsg})
			if e.logger != nil {
				e.logger.WithField("sku_id", action.SKUID).Warn("price update failed: " + action.ErrorMsg)
			}
		}
	}
	res.Actions = actions
	return res, nil
}
