package services

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"article-cms/models"
	"article-cms/repositories"
)

// SetStatus switches every version of an article between active and inactive.
func (s *versioningService) SetStatus(ctx context.Context, articleNumber int, status models.StatusCode, actor models.Actor) (err error) {
	ctx, span := startSpan(ctx, "VersioningService.SetStatus",
		attribute.Int("article.number", articleNumber),
		attribute.String("article.status", string(status)),
	)
	defer func() { endSpan(span, err) }()

	if status != models.StatusActive && status != models.StatusInactive {
		return models.ErrorValidation{Field: "status", Message: "status must be active or inactive"}
	}

	unlock := s.articles.Lock(articleNumber)
	defer unlock()

	versions, err := s.listVersions(ctx, articleNumber)
	if err != nil {
		return err
	}
	switch versions[0].StatusCode {
	case models.StatusDeleted:
		return models.ErrorUnsupported{Message: "restore the article from the trash first"}
	case models.StatusRedirect:
		return models.ErrorUnsupported{Message: "redirects have no status"}
	}

	now := s.now()
	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Versions.UpdateArticleFields(ctx, articleNumber, map[string]interface{}{"status_code": status}); err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		return writeLog(ctx, tx, now, articleNumber, actor, "Status changed", map[string]any{
			"from": versions[0].StatusCode,
			"to":   status,
		})
	})
	if err != nil {
		return err
	}

	s.refreshPublication(ctx, articleNumber)
	s.refreshCatalog(ctx, articleNumber)
	return nil
}

// TrashArticle marks every version deleted and takes the article off the
// catalog and off the served pages. The home page cannot be trashed.
func (s *versioningService) TrashArticle(ctx context.Context, articleNumber int, actor models.Actor) (err error) {
	ctx, span := startSpan(ctx, "VersioningService.TrashArticle", attribute.Int("article.number", articleNumber))
	defer func() { endSpan(span, err) }()

	unlock := s.articles.Lock(articleNumber)
	defer unlock()

	versions, err := s.listVersions(ctx, articleNumber)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if v.IsRoot() {
			return models.ErrorUnsupported{Message: "the home page cannot be trashed"}
		}
	}
	if versions[0].StatusCode == models.StatusDeleted {
		return nil
	}

	now := s.now()
	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Versions.UpdateArticleFields(ctx, articleNumber, map[string]interface{}{"status_code": models.StatusDeleted}); err != nil {
			return fmt.Errorf("trash versions: %w", err)
		}
		if err := tx.Catalog.Delete(ctx, articleNumber); err != nil {
			return fmt.Errorf("remove catalog entry: %w", err)
		}
		if err := tx.Pages.DeleteByArticle(ctx, articleNumber); err != nil {
			return fmt.Errorf("remove pages: %w", err)
		}
		return writeLog(ctx, tx, now, articleNumber, actor, "Article trashed", nil)
	})
	if err != nil {
		return err
	}
	s.log.Info("article trashed", "article_number", articleNumber, "actor", actor.Email)
	return nil
}

// Purge removes an article for good. Its audit log is kept.
func (s *versioningService) Purge(ctx context.Context, articleNumber int, actor models.Actor) (err error) {
	ctx, span := startSpan(ctx, "VersioningService.Purge", attribute.Int("article.number", articleNumber))
	defer func() { endSpan(span, err) }()

	unlock := s.articles.Lock(articleNumber)
	defer unlock()

	versions, err := s.repos.Versions.ListByArticle(ctx, articleNumber)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	if len(versions) == 0 {
		return models.ErrorNotFound{Resource: "article", ID: strconv.Itoa(articleNumber)}
	}
	for _, v := range versions {
		if v.IsRoot() {
			return models.ErrorUnsupported{Message: "the home page cannot be purged"}
		}
	}

	now := s.now()
	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Versions.DeleteByArticle(ctx, articleNumber); err != nil {
			return fmt.Errorf("delete versions: %w", err)
		}
		if err := tx.Catalog.Delete(ctx, articleNumber); err != nil {
			return fmt.Errorf("remove catalog entry: %w", err)
		}
		if err := tx.Pages.DeleteByArticle(ctx, articleNumber); err != nil {
			return fmt.Errorf("remove pages: %w", err)
		}
		return writeLog(ctx, tx, now, articleNumber, actor, "Article purged", map[string]any{
			"title":    versions[len(versions)-1].Title,
			"versions": len(versions),
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("article purged", "article_number", articleNumber, "actor", actor.Email)
	return nil
}

// RetrieveFromTrash reactivates a trashed article without republishing it. If
// its title was taken in the meantime a " (n)" suffix is appended.
func (s *versioningService) RetrieveFromTrash(ctx context.Context, articleNumber int, actor models.Actor) (restored *models.ArticleVersion, err error) {
	ctx, span := startSpan(ctx, "VersioningService.RetrieveFromTrash", attribute.Int("article.number", articleNumber))
	defer func() { endSpan(span, err) }()

	unlock := s.articles.Lock(articleNumber)
	defer unlock()

	versions, err := s.listVersions(ctx, articleNumber)
	if err != nil {
		return nil, err
	}
	if versions[0].StatusCode != models.StatusDeleted {
		return nil, models.ErrorUnsupported{Message: "article is not in the trash"}
	}

	latest := versions[len(versions)-1]
	now := s.now()
	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := lockNamespace(ctx, tx); err != nil {
			return err
		}
		title, path, err := freeTitle(ctx, tx, latest.Title, latest.UrlPath, articleNumber)
		if err != nil {
			return err
		}
		if _, err := removeRedirectsAt(ctx, tx, path); err != nil {
			return err
		}
		if err := tx.Versions.UpdateArticleFields(ctx, articleNumber, map[string]interface{}{
			"status_code": models.StatusActive,
			"published":   nil,
			"expires":     nil,
			"title":       title,
			"url_path":    path,
		}); err != nil {
			return fmt.Errorf("restore versions: %w", err)
		}
		details := map[string]any{}
		if title != latest.Title {
			details["renamed_from"] = latest.Title
			details["renamed_to"] = title
		}
		return writeLog(ctx, tx, now, articleNumber, actor, "Article restored from trash", details)
	})
	if err != nil {
		return nil, err
	}

	s.refreshCatalog(ctx, articleNumber)
	s.refreshPublication(ctx, articleNumber)

	versions, err = s.listVersions(ctx, articleNumber)
	if err != nil {
		return nil, err
	}
	restored = &versions[len(versions)-1]
	s.log.Info("article restored", "article_number", articleNumber, "title", restored.Title, "actor", actor.Email)
	return restored, nil
}

// freeTitle returns title and path unchanged when no live article uses them,
// otherwise the first "title (n)" that is free along with its slug.
func freeTitle(ctx context.Context, tx *repositories.Repositories, title, path string, articleNumber int) (string, string, error) {
	candidate, candidatePath := title, path
	for n := 2; ; n++ {
		titleTaken, err := tx.Versions.TitleInUse(ctx, candidate, articleNumber)
		if err != nil {
			return "", "", fmt.Errorf("check title: %w", err)
		}
		pathTaken, err := tx.Versions.PathInUse(ctx, candidatePath, articleNumber)
		if err != nil {
			return "", "", fmt.Errorf("check path: %w", err)
		}
		if !titleTaken && !pathTaken {
			return candidate, candidatePath, nil
		}
		candidate = fmt.Sprintf("%s (%d)", title, n)
		candidatePath = Slugify(candidate)
	}
}
