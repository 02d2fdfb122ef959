// Package recon 实现商品聚合库存/价格到 SKU 明细的对账引擎：
// 给定目标总库存或新基准价，计算并下发最小的逐 SKU 更新集合。
// 引擎本身无持久状态，每次调用基于新拉取的 SKU 快照运行。
package recon

// SKUError 记录单个 SKU 更新失败，不中断整批操作。
type SKUError struct {
	SKUID   string `json:"sku_id"`
	Message string `json:"error"`
}

// Action 是一次逐 SKU 变更的补偿日志条目：保留旧值，失败批次可人工回补。
type Action struct {
	SKUID    string `json:"sku_id"`
	Field    string `json:"field"` // stock | price
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Applied  bool   `json:"applied"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Result 汇总一次库存对账或价格下发的逐 SKU 结果。
// Shortfall > 0 表示请求的减量超过可用库存，缺口部分被静默放弃
// （这里显式上报，调用方不能声称总量已精确达到目标值）。
type Result struct {
	UpdatedCount int        `json:"updated_count"`
	Errors       []SKUError `json:"errors"`
	Shortfall    int64      `json:"shortfall"`
	Actions      []Action   `json:"actions,omitempty"`
}
