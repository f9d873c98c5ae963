package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type StatusCode string

const (
	StatusActive   StatusCode = "active"
	StatusInactive StatusCode = "inactive"
	StatusDeleted  StatusCode = "deleted"
	StatusRedirect StatusCode = "redirect"
)

// RootPath is the UrlPath held by the home page. Exactly one article owns it.
const RootPath = "root"

// ArticleVersion is one row of an article's history. All versions of a logical
// page share ArticleNumber; VersionNumber runs 1..N within it.
type ArticleVersion struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ArticleNumber int        `json:"article_number" gorm:"not null;index:idx_article_versions_number,priority:1"`
	VersionNumber int        `json:"version_number" gorm:"not null;index:idx_article_versions_number,priority:2"`
	Title         string     `json:"title" gorm:"not null"`
	UrlPath       string     `json:"url_path" gorm:"not null;index"`
	Content       string     `json:"content" gorm:"type:text"`
	HeaderScript  string     `json:"header_script" gorm:"type:text"`
	FooterScript  string     `json:"footer_script" gorm:"type:text"`
	RoleList      *string    `json:"role_list"`
	StatusCode    StatusCode `json:"status_code" gorm:"not null;default:'active'"`
	Published     *time.Time `json:"published"`
	Expires       *time.Time `json:"expires"`
	Updated       time.Time  `json:"updated"`
	UpdatedBy     uint       `json:"updated_by"`
}

func (v *ArticleVersion) IsRoot() bool {
	return v.UrlPath == RootPath
}

// IsPublishedAt reports whether the version has gone (or would have gone) live at t.
func (v *ArticleVersion) IsPublishedAt(t time.Time) bool {
	return v.Published != nil && !v.Published.After(t)
}

// SortByVersionNumber orders versions ascending by VersionNumber, then by Updated
// and ID so that duplicates get a stable order.
func SortByVersionNumber(versions []ArticleVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		a, b := versions[i], versions[j]
		if a.VersionNumber != b.VersionNumber {
			return a.VersionNumber < b.VersionNumber
		}
		if !a.Updated.Equal(b.Updated) {
			return a.Updated.Before(b.Updated)
		}
		return a.ID.String() < b.ID.String()
	})
}

func StringPtr(s string) *string { return &s }

func TimePtr(t time.Time) *time.Time { return &t }
