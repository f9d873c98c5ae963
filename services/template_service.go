package services

import (
	"context"
	"fmt"
	"strings"

	"article-cms/models"
)

func (s *versioningService) CreateTemplate(ctx context.Context, req models.CreateTemplateRequest, actor models.Actor) (*models.Template, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, models.ErrorValidation{Field: "title", Message: "title is required"}
	}
	content, err := s.normalizer.Normalize(req.Content)
	if err != nil {
		return nil, models.ErrorValidation{Field: "content", Message: err.Error()}
	}

	tpl := &models.Template{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Content:     content,
	}
	if err := s.repos.Templates.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	s.log.Info("template created", "template_id", tpl.ID, "actor", actor.Email)
	return tpl, nil
}

func (s *versioningService) ListTemplates(ctx context.Context) ([]models.Template, error) {
	return s.repos.Templates.List(ctx)
}
