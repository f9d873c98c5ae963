package models

import (
	"time"

	"github.com/google/uuid"
)

// ArticleLock marks an editing session. It is advisory: nothing rejects a save
// from a connection that does not hold it.
type ArticleLock struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	EditorType   string    `json:"editor_type" gorm:"not null;uniqueIndex:idx_article_locks_target,priority:1"`
	ArticleID    string    `json:"article_id" gorm:"not null;uniqueIndex:idx_article_locks_target,priority:2"`
	ActorEmail   string    `json:"actor_email"`
	ConnectionID string    `json:"connection_id" gorm:"not null;index"`
	AcquiredAt   time.Time `json:"acquired_at"`
}
