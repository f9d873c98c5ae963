package models

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=50"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Role     UserRole `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type CreateArticleRequest struct {
	Title      string     `json:"title" validate:"required,min=1,max=255"`
	TemplateID *uuid.UUID `json:"template_id"`
}

// SaveArticleRequest carries an editor's changes to a version. With
// UpdateExisting the targeted row is modified, otherwise a new version is
// appended after the article's latest one.
type SaveArticleRequest struct {
	Title          string     `json:"title" validate:"required,min=1,max=255"`
	Content        string     `json:"content"`
	HeaderScript   string     `json:"header_script"`
	FooterScript   string     `json:"footer_script"`
	Published      *time.Time `json:"published"`
	RoleList       *string    `json:"role_list"`
	UpdateExisting bool       `json:"update_existing"`
}

type SetStatusRequest struct {
	Status StatusCode `json:"status" validate:"required,oneof=active inactive"`
}

type CreateTemplateRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=1024"`
	Content     string `json:"content"`
}

type CatalogListParams struct {
	Status string `form:"status"`
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=10"`
}

// SaveResult is what Save hands back: the stored version and whether anything
// was written.
type SaveResult struct {
	Version ArticleVersion `json:"version"`
	Changed bool           `json:"changed"`
	Created bool           `json:"created"`
}

type TrashedArticle struct {
	ArticleNumber int       `json:"article_number"`
	Title         string    `json:"title"`
	Updated       time.Time `json:"updated"`
}
