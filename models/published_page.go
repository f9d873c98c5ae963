package models

import (
	"time"

	"github.com/google/uuid"
)

// PublishedPage is the serving copy of a version in the publish set. ID is the
// source version's ID.
type PublishedPage struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ArticleNumber int        `json:"article_number" gorm:"not null;index"`
	VersionNumber int        `json:"version_number"`
	Title         string     `json:"title"`
	UrlPath       string     `json:"url_path" gorm:"not null;index"`
	Content       string     `json:"content" gorm:"type:text"`
	HeaderScript  string     `json:"header_script" gorm:"type:text"`
	FooterScript  string     `json:"footer_script" gorm:"type:text"`
	RoleList      *string    `json:"role_list"`
	StatusCode    StatusCode `json:"status_code"`
	Published     *time.Time `json:"published"`
	Expires       *time.Time `json:"expires"`
	Updated       time.Time  `json:"updated"`
}

func NewPublishedPage(v ArticleVersion) PublishedPage {
	return PublishedPage{
		ID:            v.ID,
		ArticleNumber: v.ArticleNumber,
		VersionNumber: v.VersionNumber,
		Title:         v.Title,
		UrlPath:       v.UrlPath,
		Content:       v.Content,
		HeaderScript:  v.HeaderScript,
		FooterScript:  v.FooterScript,
		RoleList:      v.RoleList,
		StatusCode:    v.StatusCode,
		Published:     v.Published,
		Expires:       v.Expires,
		Updated:       v.Updated,
	}
}

func (p *PublishedPage) IsRedirect() bool {
	return p.StatusCode == StatusRedirect
}

// EffectivePage picks the page a visitor sees at t: the latest Published not
// after t, ties broken by VersionNumber. Nil when nothing is live yet.
func EffectivePage(pages []PublishedPage, t time.Time) *PublishedPage {
	var best *PublishedPage
	for i := range pages {
		p := &pages[i]
		if p.Published == nil || p.Published.After(t) {
			continue
		}
		if best == nil ||
			p.Published.After(*best.Published) ||
			(p.Published.Equal(*best.Published) && p.VersionNumber > best.VersionNumber) {
			best = p
		}
	}
	return best
}
