package recon

import (
	"sort"

	"stock_sync/internal/model"
)

// sortAscByCreated 返回按创建时间升序（最旧在前）的副本。
// 缺失/无法解析的 createdAt 已归一化为零值时间，排序时视作最旧。
// 时间相同时保持快照原始顺序（稳定排序，无二级排序键）。
func sortAscByCreated(skus []model.SKU) []model.SKU {
	out := make([]model.SKU, len(skus))
	copy(out, skus)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// sortDescByCreated 返回升序结果的逆序（最新在前），用于选择减库存目标。
func sortDescByCreated(skus []model.SKU) []model.SKU {
	asc := sortAscByCreated(skus)
	for i, j := 0, len(asc)-1; i < j; i, j = i+1, j-1 {
		asc[i], asc[j] = asc[j], asc[i]
	}
	return asc
}
