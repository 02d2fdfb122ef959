package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const (
	// PassPending 表示请求已受理，等待异步执行。
	PassPending = "pending"
	// PassSucceeded 表示全部 SKU 更新成功且无缺口。
	PassSucceeded = "succeeded"
	// PassPartial 表示部分 SKU 更新失败或减库存存在缺口。
	PassPartial = "partial"
	// PassFailed 表示整体失败（快照加载失败等，已终态）。
	PassFailed = "failed"
	// PassNoop 表示无 SKU 或无变化，未发出任何更新。
	PassNoop = "noop"
)

// PassState 对应 Redis 内的对账流水状态结构。
type PassState struct {
	RequestID    string
	Status       string
	UpdatedCount int
	FailedCount  int
	Shortfall    int64
	Reason       string
}

// GetPassState 查询 request_id 当前状态。found=false 表示 key 不存在。
func GetPassState(ctx context.Context, rdb *rd.Client, requestID string) (PassState, bool, error) {
	key := PassStatusKey(requestID)
	m, err := rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return PassState{}, false, err
	}
	if len(m) == 0 {
		return PassState{}, false, nil
	}

	out := PassState{
		RequestID: requestID,
		Status:    m["status"],
		Reason:    m["reason"],
	}
	out.UpdatedCount, _ = strconv.Atoi(m["updated_count"])
	out.FailedCount, _ = strconv.Atoi(m["failed_count"])
	out.Shortfall, _ = strconv.ParseInt(m["shortfall"], 10, 64)
	if out.Status == "" {
		out.Status = PassPending
	}
	return out, true, nil
}

// PutPassState 更新流水状态，并刷新 key TTL。
func PutPassState(ctx context.Context, rdb *rd.Client, st PassState, ttl time.Duration) error {
	key := PassStatusKey(st.RequestID)
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"request_id", st.RequestID,
		"status", st.Status,
		"updated_count", strconv.Itoa(st.UpdatedCount),
		"failed_count", strconv.Itoa(st.FailedCount),
		"shortfall", strconv.FormatInt(st.Shortfall, 10),
		"reason", st.Reason,
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ClaimPassOnce 通过 SETNX 保证"同一 request_id 只执行一次对账"：
// - 首次认领返回 true
// - Kafka 重投导致的重复消费返回 false（不会重复改远端记录）
func ClaimPassOnce(ctx context.Context, rdb *rd.Client, requestID string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, PassClaimKey(requestID), "1", ttl).Result()
}
