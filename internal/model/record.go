package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product 远端记录服务里的商品聚合：基准价 + 冗余总库存。
// TotalStock 只是展示用的冗余值，SKU 记录才是库存的权威来源。
type Product struct {
	ID         string            `json:"_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	BasePrice  decimal.Decimal   `json:"basePrice"`
	MinStock   int64             `json:"minStock"`
	TotalStock int64             `json:"totalStock"`
	IsActive   bool              `json:"isActive"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// SKU 商品的一个具体变体。Attributes 为无序键值对（展示顺序不保证）。
type SKU struct {
	ID         string            `json:"_id"`
	ProductID  string            `json:"productId"`
	Code       string            `json:"sku"`
	Price      decimal.Decimal   `json:"price"`
	Stock      int64             `json:"stock"`
	CreatedAt  time.Time         `json:"createdAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// UnmarshalJSON 容错解码远端 SKU 记录：
// - stock 可能是数字、数字字符串、缺失或脏数据，一律归一化为非负整数（无效 → 0）
// - createdAt 解析失败视为零值时间（排序时当作最旧）
// - price 无效时归一化为 0
func (s *SKU) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string            `json:"_id"`
		AltID      string            `json:"id"`
		ProductID  string            `json:"productId"`
		Code       string            `json:"sku"`
		Price      json.RawMessage   `json:"price"`
		Stock      json.RawMessage   `json:"stock"`
		CreatedAt  string            `json:"createdAt"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ID = raw.ID
	if s.ID == "" {
		s.ID = raw.AltID
	}
	s.ProductID = raw.ProductID
	s.Code = raw.Code
	s.Attributes = raw.Attributes
	s.Stock = CoerceStock(raw.Stock)
	s.Price = coercePrice(raw.Price)
	s.CreatedAt = ParseRecordTime(raw.CreatedAt)
	return nil
}

// CoerceStock 把任意 JSON 值归一化为非负整数库存。
func CoerceStock(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	text := strings.TrimSpace(string(raw))
	text = strings.Trim(text, `"`)
	if text == "" || text == "null" {
		return 0
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	n := int64(f)
	if n < 0 {
		return 0
	}
	return n
}

func coercePrice(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	text := strings.TrimSpace(string(raw))
	text = strings.Trim(text, `"`)
	if text == "" || text == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(text)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseRecordTime 解析远端时间戳字符串，失败返回零值（当作最旧）。
func ParseRecordTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SKUPatch 表示对单个 SKU 的部分更新（{stock} / {price} / 两者）。
type SKUPatch struct {
	Stock *int64           `json:"stock,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// ProductPatch 商品记录的部分更新（由调用方在触发对账前使用）。
type ProductPatch struct {
	BasePrice  *decimal.Decimal `json:"basePrice,omitempty"`
	MinStock   *int64           `json:"minStock,omitempty"`
	TotalStock *int64           `json:"totalStock,omitempty"`
	IsActive   *bool            `json:"isActive,omitempty"`
}
