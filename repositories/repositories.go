package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles every store the engine writes so a unit of work can be
// run against one transaction.
type Repositories struct {
	db *gorm.DB

	Versions  ArticleVersionRepository
	Catalog   CatalogRepository
	Pages     PublishedPageRepository
	Logs      ArticleLogRepository
	Locks     ArticleLockRepository
	Counters  CounterRepository
	Templates TemplateRepository
	Users     UserRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:        db,
		Versions:  NewArticleVersionRepository(db),
		Catalog:   NewCatalogRepository(db),
		Pages:     NewPublishedPageRepository(db),
		Logs:      NewArticleLogRepository(db),
		Locks:     NewArticleLockRepository(db),
		Counters:  NewCounterRepository(db),
		Templates: NewTemplateRepository(db),
		Users:     NewUserRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single transaction. Any
// error returned by fn rolls the whole unit back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
