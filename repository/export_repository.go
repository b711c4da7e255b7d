package repository

import (
	"context"
	"errors"
	"fmt"

	"academy_go/models"
	"academy_go/services/export"

	"gorm.io/gorm"
)

// ExportRepository stores attendance_exports rows.
type ExportRepository struct {
	db *gorm.DB
}

func NewExportRepository(db *gorm.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

func (r *ExportRepository) Create(ctx context.Context, exp *models.AttendanceExport) error {
	return r.db.WithContext(ctx).Create(exp).Error
}

func (r *ExportRepository) Save(ctx context.Context, exp *models.AttendanceExport) error {
	return r.db.WithContext(ctx).Save(exp).Error
}

func (r *ExportRepository) Find(ctx context.Context, id uint) (*models.AttendanceExport, error) {
	var exp models.AttendanceExport
	err := r.db.WithContext(ctx).First(&exp, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("export %d: %w", id, export.ErrExportNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find export %d: %w", id, err)
	}
	return &exp, nil
}

func (r *ExportRepository) List(ctx context.Context, limit int) ([]models.AttendanceExport, error) {
	var exports []models.AttendanceExport
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&exports).Error; err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return exports, nil
}
