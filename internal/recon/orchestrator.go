package recon

import (
	"context"

	"stock_sync/internal/lock"
	"stock_sync/internal/model"

	"github.com/sirupsen/logrus"
)

// ReconRequest 描述一次对账要做什么：目标总库存、新基准价，或两者。
type ReconRequest struct {
	DesiredStock *int64   `json:"desired_stock,omitempty"`
	NewPrice     *float64 `json:"new_price,omitempty"`
}

// Journal 持久化对账流水与逐 SKU 补偿日志。
// 接口化便于单测注入内存实现。
type Journal interface {
	// EnsurePass 按 request_id 查找流水，不存在则创建 pending 记录。
	EnsurePass(ctx context.Context, requestID, productID string, req ReconRequest) (*model.ReconPass, error)
	RecordActions(ctx context.Context, passID uint, actions []Action) error
	FinishPass(ctx context.Context, passID uint, status model.ReconPassStatus, updated, failed int, shortfall int64, errMsg string) error
}

// PassOutcome 是一次对账流水的最终汇总。
type PassOutcome struct {
	RequestID    string                `json:"request_id"`
	ProductID    string                `json:"product_id"`
	Status       model.ReconPassStatus `json:"-"`
	Price        Result                `json:"price"`
	Stock        Result                `json:"stock"`
	UpdatedCount int                   `json:"updated_count"`
	FailedCount  int                   `json:"failed_count"`
	Shortfall    int64                 `json:"shortfall"`
	ErrorMsg     string                `json:"error_msg,omitempty"`
}

// StatusText 把流水终态映射为对外可读语义。
func StatusText(s model.ReconPassStatus) string {
	switch s {
	case model.ReconPassPending:
		return "pending"
	case model.ReconPassSucceeded:
		return "succeeded"
	case model.ReconPassPartial:
		return "partial"
	case model.ReconPassFailed:
		return "failed"
	case model.ReconPassNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// Orchestrator 串联 锁 → 快照 → 价格下发 → 库存对账 → 流水落库。
// 每次调用无跨调用状态；不同商品的对账可安全并发。
type Orchestrator struct {
	engine  *Engine
	locker  lock.ProductLocker
	journal Journal
	logger  *logrus.Logger
}

func NewOrchestrator(engine *Engine, locker lock.ProductLocker, journal Journal, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{engine: engine, locker: locker, journal: journal, logger: logger}
}

// Run 执行一次完整对账流水。
// 价格先行：价格下发失败只记日志，不阻止库存对账继续（两者是同一 SKU 集
// 上的独立关切）。没有重试也没有回滚，失败的流水靠后续编辑重新触发。
func (o *Orchestrator) Run(ctx context.Context, requestID, productID string, req ReconRequest) (PassOutcome, error) {
	out := PassOutcome{RequestID: requestID, ProductID: productID}

	pass, err := o.journal.EnsurePass(ctx, requestID, productID, req)
	if err != nil {
		out.Status = model.ReconPassFailed
		out.ErrorMsg = err.Error()
		return out, err
	}

	release, err := o.locker.Acquire(ctx, productID)
	if err != nil {
		// 锁被其他对账持有：直接判失败，不排队等待
		out.Status = model.ReconPassFailed
		out.ErrorMsg = err.Error()
		_ = o.journal.FinishPass(ctx, pass.ID, model.ReconPassFailed, 0, 0, 0, err.Error())
		return out, err
	}
	defer release(ctx)

	var priceErr, stockErr error

	if req.NewPrice != nil {
		out.Price, priceErr = o.engine.PropagatePrice(ctx, productID, *req.NewPrice)
		if priceErr != nil && o.logger != nil {
			o.logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"product_id": productID,
			}).WithError(priceErr).Error("price propagation failed")
		}
	}
	if req.DesiredStock != nil {
		out.Stock, stockErr = o.engine.ReconcileStock(ctx, productID, *req.DesiredStock)
		if stockErr != nil && o.logger != nil {
			o.logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"product_id": productID,
			}).WithError(stockErr).Error("stock reconciliation failed")
		}
	}

	out.UpdatedCount = out.Price.UpdatedCount + out.Stock.UpdatedCount
	out.FailedCount = len(out.Price.Errors) + len(out.Stock.Errors)
	out.Shortfall = out.Stock.Shortfall
	out.Status = passStatus(req, priceErr, stockErr, out)
	out.ErrorMsg = firstError(priceErr, stockErr)

	actions := append(append([]Action{}, out.Price.Actions...), out.Stock.Actions...)
	if len(actions) > 0 {
		if err := o.journal.RecordActions(ctx, pass.ID, actions); err != nil && o.logger != nil {
			o.logger.WithField("request_id", requestID).WithError(err).Error("record actions failed")
		}
	}
	if err := o.journal.FinishPass(ctx, pass.ID, out.Status, out.UpdatedCount, out.FailedCount, out.Shortfall, out.ErrorMsg); err != nil && o.logger != nil {
		o.logger.WithField("request_id", requestID).WithError(err).Error("finish pass failed")
	}
	return out, nil
}

// passStatus 汇总终态：
// - 所有请求的操作都整体失败（快照都拉不下来）→ failed
// - 有逐 SKU 失败、缺口或某一侧整体失败 → partial
// - 没发出任何更新 → noop
// - 其余 → succeeded
func passStatus(req ReconRequest, priceErr, stockErr error, out PassOutcome) model.ReconPassStatus {
	priceAsked := req.NewPrice != nil
	stockAsked := req.DesiredStock != nil

	allFailed := (!priceAsked || priceErr != nil) && (!stockAsked || stockErr != nil) &&
		(priceErr != nil || stockErr != nil)
	if allFailed {
		return model.ReconPassFailed
	}
	if priceErr != nil || stockErr != nil || out.FailedCount > 0 || out.Shortfall > 0 {
		return model.ReconPassPartial
	}
	if out.UpdatedCount == 0 {
		return model.ReconPassNoop
	}
	return model.ReconPassSucceeded
}

func firstError(errs ...error) string {
	for _, err := range errs {
		if err != nil {
			return err.Error()
		}
	}
	return ""
}
