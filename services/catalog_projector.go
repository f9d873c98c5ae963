package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"article-cms/models"
)

func (s *versioningService) refreshCatalog(ctx context.Context, articleNumber int) {
	if err := s.projectCatalog(ctx, articleNumber); err != nil {
		s.log.Error("catalog projection failed", "error", models.ErrorCascade{
			ArticleNumber: articleNumber,
			Step:          "catalog projector",
			Err:           err,
		})
	}
}

// projectCatalog rewrites the catalog row of an article. Redirects, trashed
// and purged articles have no row.
func (s *versioningService) projectCatalog(ctx context.Context, articleNumber int) error {
	versions, err := s.repos.Versions.ListByArticle(ctx, articleNumber)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	entry := buildCatalogEntry(versions)
	if entry == nil {
		return s.repos.Catalog.Delete(ctx, articleNumber)
	}
	return s.repos.Catalog.Upsert(ctx, entry)
}

// buildCatalogEntry summarizes a version history. It returns nil when the
// article should not be listed.
func buildCatalogEntry(versions []models.ArticleVersion) *models.CatalogEntry {
	if len(versions) == 0 {
		return nil
	}

	var entry *models.CatalogEntry
	var latest models.ArticleVersion
	active := false
	for i, v := range versions {
		switch v.StatusCode {
		case models.StatusRedirect, models.StatusDeleted:
			return nil
		case models.StatusActive:
			active = true
		}
		if i == 0 {
			entry = &models.CatalogEntry{ArticleNumber: v.ArticleNumber}
			latest = v
		}
		if v.Updated.After(latest.Updated) {
			latest = v
		}
		if v.Published != nil && (entry.Published == nil || v.Published.After(*entry.Published)) {
			entry.Published = models.TimePtr(*v.Published)
		}
	}

	entry.Title = latest.Title
	entry.UrlPath = latest.UrlPath
	entry.Updated = latest.Updated
	entry.VersionCount = len(versions)
	entry.Status = models.CatalogStatusInactive
	if active {
		entry.Status = models.CatalogStatusActive
	}
	return entry
}

// RebuildProjections regenerates the catalog and the served pages of every
// article, at most parallelism articles at a time.
func (s *versioningService) RebuildProjections(ctx context.Context, parallelism int) (err error) {
	ctx, span := startSpan(ctx, "VersioningService.RebuildProjections")
	defer func() { endSpan(span, err) }()

	if parallelism < 1 {
		parallelism = 1
	}
	numbers, err := s.repos.Versions.ListArticleNumbers(ctx)
	if err != nil {
		return fmt.Errorf("list articles: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, n := range numbers {
		n := n
		g.Go(func() error {
			unlock := s.articles.Lock(n)
			defer unlock()
			if err := s.projectCatalog(gctx, n); err != nil {
				return models.ErrorCascade{ArticleNumber: n, Step: "catalog projector", Err: err}
			}
			if err := s.projectPublication(gctx, n); err != nil {
				return models.ErrorCascade{ArticleNumber: n, Step: "publication projector", Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Info("projections rebuilt", "articles", len(numbers))
	return nil
}
