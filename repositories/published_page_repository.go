package repositories

import (
	"context"

	"article-cms/models"

	"gorm.io/gorm"
)

type PublishedPageRepository interface {
	// Replace deletes every page of articleNumber or on one of paths, then
	// inserts pages.
	Replace(ctx context.Context, articleNumber int, paths []string, pages []models.PublishedPage) error
	DeleteByArticle(ctx context.Context, articleNumber int) error
	ListByUrlPath(ctx context.Context, path string) ([]models.PublishedPage, error)
	ListByArticle(ctx context.Context, articleNumber int) ([]models.PublishedPage, error)
}

type publishedPageRepository struct {
	db *gorm.DB
}

func NewPublishedPageRepository(db *gorm.DB) PublishedPageRepository {
	return &publishedPageRepository{db: db}
}

func (r *publishedPageRepository) Replace(ctx context.Context, articleNumber int, paths []string, pages []models.PublishedPage) error {
	query := r.db.WithContext(ctx).Where("article_number = ?", articleNumber)
	if len(paths) > 0 {
		query = query.Or("url_path IN ?", paths)
	}
	if err := query.Delete(&models.PublishedPage{}).Error; err != nil {
		return err
	}
	if len(pages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&pages).Error
}

func (r *publishedPageRepository) DeleteByArticle(ctx context.Context, articleNumber int) error {
	return r.db.WithContext(ctx).
		Where("article_number = ?", articleNumber).
		Delete(&models.PublishedPage{}).Error
}

func (r *publishedPageRepository) ListByUrlPath(ctx context.Context, path string) ([]models.PublishedPage, error) {
	var pages []models.PublishedPage
	err := r.db.WithContext(ctx).
		Where("url_path = ?", path).
		Order("version_number asc").
		Find(&pages).Error
	return pages, err
}

func (r *publishedPageRepository) ListByArticle(ctx context.Context, articleNumber int) ([]models.PublishedPage, error) {
	var pages []models.PublishedPage
	err := r.db.WithContext(ctx).
		Where("article_number = ?", articleNumber).
		Order("version_number asc").
		Find(&pages).Error
	return pages, err
}
