package repositories

import (
	"context"
	"time"

	"article-cms/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ArticleLockRepository interface {
	// CreateIfAbsent inserts lock unless one already exists for its target.
	CreateIfAbsent(ctx context.Context, lock *models.ArticleLock) (bool, error)
	GetByTarget(ctx context.Context, editorType, articleID string) (*models.ArticleLock, error)
	ListByConnection(ctx context.Context, connectionID string) ([]models.ArticleLock, error)
	DeleteByConnectionOrTarget(ctx context.Context, connectionID, editorType, articleID string) error
	DeleteByConnection(ctx context.Context, connectionID string) error
	// DeleteStale removes the lock on the target if it was acquired before
	// cutoff and reports whether one was removed.
	DeleteStale(ctx context.Context, editorType, articleID string, cutoff time.Time) (bool, error)
}

type articleLockRepository struct {
	db *gorm.DB
}

func NewArticleLockRepository(db *gorm.DB) ArticleLockRepository {
	return &articleLockRepository{db: db}
}

func (r *articleLockRepository) CreateIfAbsent(ctx context.Context, lock *models.ArticleLock) (bool, error) {
	if lock.ID == uuid.Nil {
		lock.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(lock)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *articleLockRepository) GetByTarget(ctx context.Context, editorType, articleID string) (*models.ArticleLock, error) {
	var lock models.ArticleLock
	err := r.db.WithContext(ctx).
		Where("editor_type = ? AND article_id = ?", editorType, articleID).
		First(&lock).Error
	return &lock, err
}

func (r *articleLockRepository) ListByConnection(ctx context.Context, connectionID string) ([]models.ArticleLock, error) {
	var locks []models.ArticleLock
	err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Find(&locks).Error
	return locks, err
}

func (r *articleLockRepository) DeleteByConnectionOrTarget(ctx context.Context, connectionID, editorType, articleID string) error {
	return r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Or("editor_type = ? AND article_id = ?", editorType, articleID).
		Delete(&models.ArticleLock{}).Error
}

func (r *articleLockRepository) DeleteByConnection(ctx context.Context, connectionID string) error {
	return r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Delete(&models.ArticleLock{}).Error
}

func (r *articleLockRepository) DeleteStale(ctx context.Context, editorType, articleID string, cutoff time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("editor_type = ? AND article_id = ? AND acquired_at < ?", editorType, articleID, cutoff).
		Delete(&models.ArticleLock{})
	return res.RowsAffected > 0, res.Error
}
