package repositories

import (
	"context"

	"article-cms/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CounterRepository interface {
	// Next increments the named counter and returns the new value. Call it
	// inside a transaction: the UPDATE holds the row lock until commit.
	Next(ctx context.Context, name string, seed int) (int, error)
	// Lock takes the row lock of the named counter without changing it. Work
	// that claims titles or paths runs behind it so concurrent claims queue.
	Lock(ctx context.Context, name string, seed int) error
}

type counterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) seed(db *gorm.DB, name string, seed int) error {
	// seed is only used the first time the counter row is created.
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ArticleCounter{Name: name, Value: seed}).Error
}

func (r *counterRepository) Lock(ctx context.Context, name string, seed int) error {
	db := r.db.WithContext(ctx)
	if err := r.seed(db, name, seed); err != nil {
		return err
	}
	return db.Model(&models.ArticleCounter{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value")).Error
}

func (r *counterRepository) Next(ctx context.Context, name string, seed int) (int, error) {
	db := r.db.WithContext(ctx)
	if err := r.seed(db, name, seed); err != nil {
		return 0, err
	}

	if err := db.Model(&models.ArticleCounter{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + ?", 1)).Error; err != nil {
		return 0, err
	}

	var counter models.ArticleCounter
	if err := db.Where("name = ?", name).First(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Value, nil
}
