package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"article-cms/models"
	"article-cms/repositories"
)

// publishCascade keeps a single effective version on the forward timeline of
// an article after versionID was saved, then re-projects its pages. Failures
// are logged and swallowed: the saved content is already committed.
func (s *versioningService) publishCascade(ctx context.Context, articleNumber int, versionID uuid.UUID) {
	ctx, span := startSpan(ctx, "VersioningService.publishCascade")
	err := s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		versions, err := tx.Versions.ListByArticle(ctx, articleNumber)
		if err != nil {
			return err
		}
		changed := applyPublishWindows(versions, versionID, s.now())
		return tx.Versions.SaveAll(ctx, changed)
	})
	endSpan(span, err)
	if err != nil {
		s.log.Error("publish cascade failed", "error", models.ErrorCascade{
			ArticleNumber: articleNumber,
			Step:          "publish",
			Err:           err,
		})
	}
	s.refreshPublication(ctx, articleNumber)
}

// applyPublishWindows rewrites Published and Expires across versions in place
// and returns the versions that changed.
//
// If the saved version goes live in the future, the version live now and any
// earlier-numbered release queued before it stay scheduled. Otherwise every
// other publication is withdrawn. Expires is then derived from the two highest
// numbered published versions only.
func applyPublishWindows(versions []models.ArticleVersion, versionID uuid.UUID, now time.Time) []models.ArticleVersion {
	before := make([]models.ArticleVersion, len(versions))
	copy(before, versions)

	var saved *models.ArticleVersion
	for i := range versions {
		if versions[i].ID == versionID {
			saved = &versions[i]
			break
		}
	}

	if saved != nil && saved.Published != nil {
		if saved.Published.After(now) {
			live := -1
			for i, v := range versions {
				if v.ID == saved.ID || !v.IsPublishedAt(now) {
					continue
				}
				if live < 0 || v.VersionNumber > versions[live].VersionNumber {
					live = i
				}
			}
			for i := range versions {
				v := &versions[i]
				if v.ID == saved.ID || v.Published == nil || i == live {
					continue
				}
				queued := v.Published.After(now) &&
					v.Published.Before(*saved.Published) &&
					v.VersionNumber < saved.VersionNumber
				if !queued {
					v.Published = nil
				}
			}
		} else {
			for i := range versions {
				if versions[i].ID != saved.ID {
					versions[i].Published = nil
				}
			}
		}
	}

	var published []*models.ArticleVersion
	for i := range versions {
		versions[i].Expires = nil
		if versions[i].Published != nil {
			published = append(published, &versions[i])
		}
	}
	sort.Slice(published, func(i, j int) bool {
		return published[i].VersionNumber > published[j].VersionNumber
	})
	if len(published) >= 2 {
		later, earlier := published[0], published[1]
		earlier.Expires = models.TimePtr(*later.Published)
	}

	var changed []models.ArticleVersion
	for i := range versions {
		if !equalTimePtr(before[i].Published, versions[i].Published) ||
			!equalTimePtr(before[i].Expires, versions[i].Expires) {
			changed = append(changed, versions[i])
		}
	}
	return changed
}

// refreshPublication re-projects the serving rows of an article, logging
// failures.
func (s *versioningService) refreshPublication(ctx context.Context, articleNumber int) {
	if err := s.projectPublication(ctx, articleNumber); err != nil {
		s.log.Error("publication projection failed", "error", models.ErrorCascade{
			ArticleNumber: articleNumber,
			Step:          "publication projector",
			Err:           err,
		})
	}
}

// projectPublication replaces the serving rows of an article with its current
// publish set. Rows of other articles on the same paths are dropped as well so
// a path never carries leftovers from a rename.
func (s *versioningService) projectPublication(ctx context.Context, articleNumber int) error {
	return s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		versions, err := tx.Versions.ListByArticle(ctx, articleNumber)
		if err != nil {
			return fmt.Errorf("list versions: %w", err)
		}
		pages, paths := publishSet(versions)
		if err := tx.Pages.Replace(ctx, articleNumber, paths, pages); err != nil {
			return fmt.Errorf("replace pages: %w", err)
		}
		return nil
	})
}

func publishSet(versions []models.ArticleVersion) ([]models.PublishedPage, []string) {
	var pages []models.PublishedPage
	var paths []string
	seen := map[string]bool{}
	for _, v := range versions {
		if v.Published == nil {
			continue
		}
		if v.StatusCode != models.StatusActive && v.StatusCode != models.StatusRedirect {
			continue
		}
		pages = append(pages, models.NewPublishedPage(v))
		if !seen[v.UrlPath] {
			seen[v.UrlPath] = true
			paths = append(paths, v.UrlPath)
		}
	}
	return pages, paths
}
