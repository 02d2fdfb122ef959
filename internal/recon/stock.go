package recon

import (
	"context"
	"strconv"

	"stock_sync/internal/model"
)

// ReconcileStock 把商品的 SKU 库存总和对齐到 desiredTotalStock。
// 关键语义：
//   - 加库存：全部增量记到最旧的一个 SKU 上（补货回到"原始"变体）
//   - 减库存：按最新在前逐个扣减（LIFO，最老的批次保留最久），
//     更新严格串行下发，remaining 预算依赖顺序消费，不得乱序
//   - 单个 SKU 更新失败不中断批次，错误逐条收集返回
//   - 减量超过可用库存时提前耗尽并静默止步，缺口记入 Result.Shortfall
//
// desiredTotalStock 为负时按 0 处理（本地吸收无效输入，不作为硬错误）。
func (e *Engine) ReconcileStock(ctx context.Context, productID string, desiredTotalStock int64) (Result, error) {
	if desiredTotalStock < 0 {
		desiredTotalStock = 0
	}

	skus, err := e.loadSnapshot(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	res := Result{Errors: []SKUError{}}
	if len(skus) == 0 {
		// 无 SKU 可对账，良性 no-op
		return res, nil
	}

	currentTotal := totalStock(skus)
	delta := desiredTotalStock - currentTotal
	if delta == 0 {
		return res, nil
	}

	if delta > 0 {
		primary := sortAscByCreated(skus)[0]
		newStock := primary.Stock + delta
		e.applyStock(ctx, &res, primary, newStock)
		return res, nil
	}

	remaining := -delta
	for _, sku := range sortDescByCreated(skus) {
		if remaining <= 0 {
			break
		}
		if sku.Stock <= 0 {
			// 已经为 0 的 SKU 跳过，不发更新调用
			continue
		}
		reduceBy := min(sku.Stock, remaining)
		e.applyStock(ctx, &res, sku, sku.Stock-reduceBy)
		// 预算按"已下发"消费，与更新是否成功无关：失败不重试也不回滚
		remaining -= reduceBy
	}
	res.Shortfall = remaining
	return res, nil
}

// applyStock 下发单个 SKU 的库存更新并记录补偿日志条目。
func (e *Engine) applyStock(ctx context.Context, res *Result, sku model.SKU, newStock int64) {
	action := Action{
		SKUID:    sku.ID,
		Field:    "stock",
		OldValue: strconv.FormatInt(sku.Stock, 10),
		NewValue: strconv.FormatInt(newStock, 10),
	}
	_, err := e.rc.UpdateSKU(ctx, sku.ID, model.SKUPatch{Stock: &newStock})
	if err != nil {
		action.ErrorMsg = err.Error()
		res.Errors = append(res.Errors, SKUError{SKUID: sku.ID, Message: err.Error()})
		if e.logger != nil {
			e.logger.WithField("sku_id", sku.ID).WithError(err).Warn("stock update failed")
		}
	} else {
		action.Applied = true
		res.UpdatedCount++
	}
	res.Actions = append(res.Actions, action)
}
