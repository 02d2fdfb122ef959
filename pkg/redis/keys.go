package redis

import "fmt"

// ReconLockKey 每商品对账互斥锁的键名。
func ReconLockKey(productID string) string {
	return fmt.Sprintf("stock_sync:recon:lock:%s", productID)
}

// PassStatusKey 存储 request_id 的异步状态（pending/succeeded/partial/failed/noop）。
func PassStatusKey(requestID string) string {
	return fmt.Sprintf("stock_sync:pass:status:%s", requestID)
}

// PassClaimKey 标记某个 request_id 是否已被消费者执行过（Kafka 重投防重）。
func PassClaimKey(requestID string) string {
	return fmt.Sprintf("stock_sync:pass:claimed:%s", requestID)
}
