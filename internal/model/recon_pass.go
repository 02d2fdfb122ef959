package model

import (
	"time"

	"gorm.io/gorm"
)

// ReconPassStatus 描述一次对账流水的终态机。
type ReconPassStatus int

const (
	ReconPassPending   ReconPassStatus = iota // 已受理、待执行
	ReconPassSucceeded                        // 全部 SKU 更新成功
	ReconPassPartial                          // 部分 SKU 更新失败或存在缺口
	ReconPassFailed                           // 快照加载失败等整体失败
	ReconPassNoop                             // 无 SKU 或无变化，未发出任何更新
)

// ReconPass 记录一次对账请求的受理与执行结果。
// Status + ErrorMsg 支撑接口可观测与失败排查。
type ReconPass struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	RequestID string `gorm:"size:64;uniqueIndex;not null" json:"request_id"`
	ProductID string `gorm:"size:64;not null;index" json:"product_id"`
	// 请求载荷：两者皆可选，至少有一个。价格以字符串存储避免浮点误差。
	DesiredStock *int64  `json:"desired_stock"`
	NewPrice     *string `gorm:"size:32" json:"new_price"`

	Status       ReconPassStatus `gorm:"not null;default:0;index" json:"status"`
	UpdatedCount int             `gorm:"not null;default:0" json:"updated_count"`
	FailedCount  int             `gorm:"not null;default:0" json:"failed_count"`
	// Shortfall 记录减库存时未能扣足的缺口（请求减量超过可用库存）。
	Shortfall int64  `gorm:"not null;default:0" json:"shortfall"`
	ErrorMsg  string `gorm:"size:255" json:"error_msg"`
}

func (ReconPass) TableName() string { return "recon_passes" }

// ReconAction 逐 SKU 的补偿动作日志：记录更新前后的值，
// 失败批次可以按旧值人工回补（本服务不做自动回滚）。
type ReconAction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	PassID   uint   `gorm:"not null;index" json:"pass_id"`
	SKUID    string `gorm:"size:64;not null;index" json:"sku_id"`
	Field    string `gorm:"size:16;not null" json:"field"` // stock | price
	OldValue string `gorm:"size:32;not null" json:"old_value"`
	NewValue string `gorm:"size:32;not null" json:"new_value"`
	Applied  bool   `gorm:"not null;default:false" json:"applied"`
	ErrorMsg string `gorm:"size:255" json:"error_msg"`
}

func (ReconAction) TableName() string { return "recon_actions" }
