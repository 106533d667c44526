package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Insert(ctx context.Context, d *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Document, error)
	// RecordSave bumps the version after the stored blob was replaced.
	RecordSave(ctx context.Context, id string, size int64, payload []byte, at time.Time) error
}

type documentRepo struct {
	db *gorm.DB
}

func NewDocumentRepo(db *gorm.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Insert(ctx context.Context, d *models.Document) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Document
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *documentRepo) RecordSave(ctx context.Context, id string, size int64, payload []byte, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"version":       gorm.Expr("version + 1"),
			"size":          size,
			"last_callback": datatypes.JSON(payload),
			"updated_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
