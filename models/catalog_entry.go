package models

import "time"

const (
	CatalogStatusActive   = "Active"
	CatalogStatusInactive = "Inactive"
)

// CatalogEntry is the per-article listing row rebuilt from the version history.
type CatalogEntry struct {
	ArticleNumber int        `json:"article_number" gorm:"primaryKey;autoIncrement:false"`
	Title         string     `json:"title" gorm:"not null;index"`
	UrlPath       string     `json:"url_path" gorm:"not null"`
	Status        string     `json:"status" gorm:"not null"`
	Published     *time.Time `json:"published"`
	Updated       time.Time  `json:"updated"`
	VersionCount  int        `json:"version_count"`
}
