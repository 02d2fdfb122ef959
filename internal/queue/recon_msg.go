package queue

import "fmt"

// ReconMessage 是写入 Kafka 的对账任务事件。
// DesiredStock / NewPrice 皆可选，但至少要有一个，否则任务无事可做。
type ReconMessage struct {
	RequestID    string   `json:"request_id"`
	ProductID    string   `json:"product_id"`
	DesiredStock *int64   `json:"desired_stock,omitempty"`
	NewPrice     *float64 `json:"new_price,omitempty"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m ReconMessage) Validate() error {
	if m.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if m.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if m.DesiredStock == nil && m.NewPrice == nil {
		return fmt.Errorf("desired_stock or new_price is required")
	}
	return nil
}
