package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"voicecleaner/model"
)

// RunRepository 运行历史数据访问接口
type RunRepository interface {
	Save(ctx context.Context, summary model.RunSummary) error
	Get(ctx context.Context, runID string) (*model.RunSummary, error)
	List(ctx context.Context, limit int) ([]model.RunRecord, error)
}

// gormRunRepository GORM 实现
type gormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository 创建 GORM 运行历史仓库
func NewGormRunRepository(db *gorm.DB) RunRepository {
	return &gormRunRepository{db: db}
}

// Save stores the run header and its entries in one transaction,
// replacing any earlier copy of the same run.
func (r *gormRunRepository) Save(ctx context.Context, summary model.RunSummary) error {
	run := ToRecord(summary)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", run.ID).Delete(&model.FileRecord{}).Error; err != nil {
			return err
		}
		files := run.Files
		run.Files = nil
		if err := tx.Save(&run).Error; err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}
		return tx.CreateInBatches(files, 100).Error
	})
}

// Get loads a run with entries in discovery order. Missing runs return nil, nil.
func (r *gormRunRepository) Get(ctx context.Context, runID string) (*model.RunSummary, error) {
	var run model.RunRecord
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", runID).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	s := FromRecord(run)
	return &s, nil
}

// List returns the most recent runs without their entries.
func (r *gormRunRepository) List(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []model.RunRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
