package models

import (
	"time"

	"gorm.io/datatypes"
)

// ArticleLog is an append-only audit entry.
type ArticleLog struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	ArticleID int            `json:"article_id" gorm:"not null;index"`
	Note      string         `json:"note" gorm:"not null"`
	ActorID   uint           `json:"actor_id"`
	Details   datatypes.JSON `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp" gorm:"not null"`
}
