package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"article-cms/models"
	"article-cms/repositories"
)

type renameResult struct {
	newPath string
	// touched lists every article whose serving rows changed, the renamed
	// article included.
	touched []int
}

// titleCascade renames an article inside tx: sub-pages follow the new prefix,
// stale redirects are removed or retargeted, and the old path gets a redirect
// article of its own.
func (s *versioningService) titleCascade(ctx context.Context, tx *repositories.Repositories, number int, oldTitle, newTitle string, isRoot bool, actor models.Actor, now time.Time) (*renameResult, error) {
	if isRoot {
		if err := tx.Versions.UpdateArticleFields(ctx, number, map[string]interface{}{"title": newTitle}); err != nil {
			return nil, fmt.Errorf("rename root: %w", err)
		}
		if err := writeLog(ctx, tx, now, number, actor, "Title changed", map[string]any{"from": oldTitle, "to": newTitle}); err != nil {
			return nil, err
		}
		return &renameResult{newPath: models.RootPath, touched: []int{number}}, nil
	}

	oldURL := Slugify(oldTitle)
	newURL := Slugify(newTitle)
	result := &renameResult{newPath: newURL}

	if newURL != oldURL {
		if err := ensurePathFree(ctx, tx, newURL, number); err != nil {
			return nil, err
		}

		subs, err := s.renameSubPages(ctx, tx, number, oldTitle, newTitle, oldURL, newURL)
		if err != nil {
			return nil, err
		}
		result.touched = append(result.touched, subs...)

		removed, err := removeRedirectsAt(ctx, tx, newURL)
		if err != nil {
			return nil, err
		}
		retargeted, err := retargetRedirects(ctx, tx, oldURL, newURL)
		if err != nil {
			return nil, err
		}
		result.touched = append(result.touched, retargeted...)

		redirect, err := createRedirect(ctx, tx, oldTitle, oldURL, newURL, actor, now)
		if err != nil {
			return nil, err
		}
		result.touched = append(result.touched, redirect)

		s.log.Debug("redirects updated",
			"article_number", number,
			"removed", removed,
			"retargeted", retargeted,
			"redirect_article", redirect,
		)
	}

	if err := tx.Versions.UpdateArticleFields(ctx, number, map[string]interface{}{
		"title":    newTitle,
		"url_path": newURL,
	}); err != nil {
		return nil, fmt.Errorf("apply new title: %w", err)
	}
	if err := writeLog(ctx, tx, now, number, actor, "Title changed", map[string]any{
		"from":     oldTitle,
		"to":       newTitle,
		"old_path": oldURL,
		"new_path": newURL,
	}); err != nil {
		return nil, err
	}

	result.touched = append(result.touched, number)
	return result, nil
}

// renameSubPages moves every article below oldURL to the same place below
// newURL and returns the article numbers it changed. A move that would land on
// the title or path of another article fails the whole rename.
func (s *versioningService) renameSubPages(ctx context.Context, tx *repositories.Repositories, number int, oldTitle, newTitle, oldURL, newURL string) ([]int, error) {
	prefix := oldURL + "/"
	versions, err := tx.Versions.ListByPathPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list sub-pages: %w", err)
	}

	type claim struct {
		value  string
		number int
	}
	var changed []models.ArticleVersion
	var numbers []int
	seen := map[int]bool{}
	titles := map[claim]bool{}
	paths := map[claim]bool{}
	for _, v := range versions {
		if v.ArticleNumber == number || v.StatusCode == models.StatusRedirect {
			continue
		}
		v.UrlPath = newURL + "/" + strings.TrimPrefix(v.UrlPath, prefix)
		if rest, ok := trimFoldPrefix(v.Title, oldTitle+"/"); ok {
			v.Title = newTitle + "/" + rest
		}
		changed = append(changed, v)
		titles[claim{v.Title, v.ArticleNumber}] = true
		paths[claim{v.UrlPath, v.ArticleNumber}] = true
		if !seen[v.ArticleNumber] {
			seen[v.ArticleNumber] = true
			numbers = append(numbers, v.ArticleNumber)
		}
	}

	for t := range titles {
		if err := ensureTitleFree(ctx, tx, t.value, t.number); err != nil {
			return nil, err
		}
	}
	for p := range paths {
		if err := ensurePathFree(ctx, tx, p.value, p.number); err != nil {
			return nil, err
		}
		if _, err := removeRedirectsAt(ctx, tx, p.value); err != nil {
			return nil, err
		}
	}

	if err := tx.Versions.SaveAll(ctx, changed); err != nil {
		return nil, fmt.Errorf("rename sub-pages: %w", err)
	}
	return numbers, nil
}

// removeRedirectsAt deletes redirect articles served at path together with
// their published rows.
func removeRedirectsAt(ctx context.Context, tx *repositories.Repositories, path string) ([]int, error) {
	redirects, err := tx.Versions.ListRedirects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list redirects: %w", err)
	}
	var removed []int
	seen := map[int]bool{}
	for _, r := range redirects {
		if r.UrlPath != path || seen[r.ArticleNumber] {
			continue
		}
		seen[r.ArticleNumber] = true
		if err := tx.Versions.DeleteByArticle(ctx, r.ArticleNumber); err != nil {
			return nil, fmt.Errorf("remove redirect: %w", err)
		}
		if err := tx.Pages.DeleteByArticle(ctx, r.ArticleNumber); err != nil {
			return nil, fmt.Errorf("remove redirect pages: %w", err)
		}
		removed = append(removed, r.ArticleNumber)
	}
	return removed, nil
}

// retargetRedirects points redirects aimed at from to to, so no chain forms.
func retargetRedirects(ctx context.Context, tx *repositories.Repositories, from, to string) ([]int, error) {
	redirects, err := tx.Versions.ListRedirects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list redirects: %w", err)
	}
	var changed []models.ArticleVersion
	var numbers []int
	for _, r := range redirects {
		if r.Content != from {
			continue
		}
		r.Content = to
		changed = append(changed, r)
		numbers = append(numbers, r.ArticleNumber)
	}
	if err := tx.Versions.SaveAll(ctx, changed); err != nil {
		return nil, fmt.Errorf("retarget redirects: %w", err)
	}
	return numbers, nil
}

func createRedirect(ctx context.Context, tx *repositories.Repositories, title, from, to string, actor models.Actor, now time.Time) (int, error) {
	number, err := allocateArticleNumber(ctx, tx)
	if err != nil {
		return 0, err
	}
	redirect := models.ArticleVersion{
		ArticleNumber: number,
		VersionNumber: 1,
		Title:         title,
		UrlPath:       from,
		Content:       to,
		StatusCode:    models.StatusRedirect,
		Published:     models.TimePtr(now.Add(-publishBackdate)),
		Updated:       now,
		UpdatedBy:     actor.ID,
	}
	if err := tx.Versions.Create(ctx, &redirect); err != nil {
		return 0, fmt.Errorf("create redirect: %w", err)
	}
	if err := writeLog(ctx, tx, now, number, actor, "Redirect created", map[string]any{"from": from, "to": to}); err != nil {
		return 0, err
	}
	return number, nil
}
