package recon

import (
	"context"

	"stock_sync/internal/model"
	"stock_sync/internal/record"

	"github.com/sirupsen/logrus"
)

// Engine 持有记录服务客户端与快照分页上限。
// 同一个 Engine 可被不同商品的对账并发使用：除远端记录外无共享可变状态。
type Engine struct {
	rc        record.Client
	pageLimit int
	logger    *logrus.Logger
}

func NewEngine(rc record.Client, pageLimit int, logger *logrus.Logger) *Engine {
	if pageLimit <= 0 {
		pageLimit = 1000
	}
	return &Engine{rc: rc, pageLimit: pageLimit, logger: logger}
}

// loadSnapshot 拉取商品全部 SKU。数值字段已在解码时归一化
// （脏库存 → 0，无效时间戳 → 零值）。空结果是良性 no-op 信号，不是错误。
func (e *Engine) loadSnapshot(ctx context.Context, productID string) ([]model.SKU, error) {
	skus, err := e.rc.ListSKUsByProduct(ctx, productID, e.pageLimit)
	if err != nil {
		return nil, err
	}
	return skus, nil
}

// totalStock 对快照求和。
func totalStock(skus []model.SKU) int64 {
	var sum int64
	for _, s := range skus {
		sum += s.Stock
	}
	return sum
}
