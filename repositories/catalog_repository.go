package repositories

import (
	"context"

	"article-cms/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogRepository interface {
	Upsert(ctx context.Context, entry *models.CatalogEntry) error
	Get(ctx context.Context, articleNumber int) (*models.CatalogEntry, error)
	Delete(ctx context.Context, articleNumber int) error
	List(ctx context.Context, params models.CatalogListParams) ([]models.CatalogEntry, int64, error)
}

type catalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) Upsert(ctx context.Context, entry *models.CatalogEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "article_number"}},
			UpdateAll: true,
		}).
		Create(entry).Error
}

func (r *catalogRepository) Get(ctx context.Context, articleNumber int) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry
	err := r.db.WithContext(ctx).Where("article_number = ?", articleNumber).First(&entry).Error
	return &entry, err
}

func (r *catalogRepository) Delete(ctx context.Context, articleNumber int) error {
	return r.db.WithContext(ctx).
		Where("article_number = ?", articleNumber).
		Delete(&models.CatalogEntry{}).Error
}

func (r *catalogRepository) List(ctx context.Context, params models.CatalogListParams) ([]models.CatalogEntry, int64, error) {
	var entries []models.CatalogEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CatalogEntry{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := params.Page, params.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	err := query.Order("updated desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error
	return entries, total, err
}
