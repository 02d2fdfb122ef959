// Package journal 用本地 SQLite 落对账流水与逐 SKU 补偿日志。
// 远端更新没有事务包裹，这份日志保留每次变更的旧值，失败批次可据此人工回补。
package journal

import (
	"context"
	"errors"
	"strconv"

	"stock_sync/internal/model"
	"stock_sync/internal/recon"

	"gorm.io/gorm"
)

type GormJournal struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

// Migrate 建表。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.ReconPass{}, &model.ReconAction{})
}

func (j *GormJournal) EnsurePass(ctx context.Context, requestID, productID string, req recon.ReconRequest) (*model.ReconPass, error) {
	var pass model.ReconPass
	err := j.db.WithContext(ctx).Where("request_id = ?", requestID).First(&pass).Error
	if err == nil {
		return &pass, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pass = model.ReconPass{
		RequestID:    requestID,
		ProductID:    productID,
		DesiredStock: req.DesiredStock,
		Status:       model.ReconPassPending,
	}
	if req.NewPrice != nil {
		s := strconv.FormatFloat(*req.NewPrice, 'f', -1, 64)
		pass.NewPrice = &s
	}
	if err := j.db.WithContext(ctx).Create(&pass).Error; err != nil {
		return nil, err
	}
	return &pass, nil
}

func (j *GormJournal) RecordActions(ctx context.Context, passID uint, actions []recon.Action) error {
	if len(actions) == 0 {
		return nil
	}
	rows := make([]model.ReconAction, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, model.ReconAction{
			PassID:   passID,
			SKUID:    a.SKUID,
			Field:    a.Field,
			OldValue: a.OldValue,
			NewValue: a.NewValue,
			Applied:  a.Applied,
			ErrorMsg: a.ErrorMsg,
		})
	}
	return j.db.WithContext(ctx).Create(&rows).Error
}

func (j *GormJournal) FinishPass(ctx context.Context, passID uint, status model.ReconPassStatus, updated, failed int, shortfall int64, errMsg string) error {
	return j.db.WithContext(ctx).Model(&model.ReconPass{}).
		Where("id = ?", passID).
		Updates(map[string]any{
			"status":        status,
			"updated_count": updated,
			"failed_count":  failed,
			"shortfall":     shortfall,
			"error_msg":     errMsg,
		}).Error
}
