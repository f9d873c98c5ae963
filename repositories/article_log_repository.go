package repositories

import (
	"context"

	"article-cms/models"

	"gorm.io/gorm"
)

// ArticleLogRepository is append-only: there is no update or delete.
type ArticleLogRepository interface {
	Create(ctx context.Context, entry *models.ArticleLog) error
	ListByArticle(ctx context.Context, articleNumber int) ([]models.ArticleLog, error)
}

type articleLogRepository struct {
	db *gorm.DB
}

func NewArticleLogRepository(db *gorm.DB) ArticleLogRepository {
	return &articleLogRepository{db: db}
}

func (r *articleLogRepository) Create(ctx context.Context, entry *models.ArticleLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *articleLogRepository) ListByArticle(ctx context.Context, articleNumber int) ([]models.ArticleLog, error) {
	var entries []models.ArticleLog
	err := r.db.WithContext(ctx).
		Where("article_id = ?", articleNumber).
		Order("timestamp desc, id desc").
		Find(&entries).Error
	return entries, err
}
