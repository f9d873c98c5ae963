package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-cms/logger"
	"article-cms/markup"
	"article-cms/models"
	"article-cms/repositories"
	"article-cms/testutil"
)

// newSerialVersioning runs the service on a single connection, the way SQLite
// serializes writers anyway.
func newSerialVersioning(t *testing.T) (VersioningService, *repositories.Repositories) {
	t.Helper()
	db := testutil.NewTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repos := repositories.New(db)
	return NewVersioningService(repos, markup.NewHTMLNormalizer(), logger.NewNop()), repos
}

func TestConcurrentCreatesKeepOneRootAndUniqueTitles(t *testing.T) {
	ctx := context.Background()
	svc, repos := newSerialVersioning(t)
	actor := models.Actor{ID: 1, Email: "editor@example.com", Role: models.RoleEditor}

	titles := []string{"Shared", "Shared", "Shared", "One", "Two", "Three", "Four", "Five"}
	errs := make([]error, len(titles))
	var wg sync.WaitGroup
	for i, title := range titles {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, models.CreateArticleRequest{Title: title}, actor)
		}(i, title)
	}
	wg.Wait()

	shared := 0
	for i, err := range errs {
		if titles[i] == "Shared" {
			if err == nil {
				shared++
			} else {
				assert.True(t, models.IsValidation(err), err.Error())
			}
			continue
		}
		assert.NoError(t, err, titles[i])
	}
	assert.Equal(t, 1, shared)

	versions, err := repos.Versions.ListByPathPrefix(ctx, "")
	require.NoError(t, err)
	roots := map[int]bool{}
	numbers := map[int]string{}
	for _, v := range versions {
		if v.UrlPath == models.RootPath {
			roots[v.ArticleNumber] = true
		}
		numbers[v.ArticleNumber] = v.Title
	}
	assert.Len(t, roots, 1)
	assert.Len(t, numbers, 6)
}

func TestConcurrentSavesAppendContiguousVersions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSerialVersioning(t)
	actor := models.Actor{ID: 1, Email: "editor@example.com", Role: models.RoleEditor}

	_, err := svc.Create(ctx, models.CreateArticleRequest{Title: "Home"}, actor)
	require.NoError(t, err)
	page, err := svc.Create(ctx, models.CreateArticleRequest{Title: "Page"}, actor)
	require.NoError(t, err)

	published := time.Now().Add(-time.Second).Truncate(time.Millisecond)
	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Save(ctx, page.ID, models.SaveArticleRequest{
				Title:     "Page",
				Content:   fmt.Sprintf("<p>edit %d</p>", i),
				Published: &published,
			}, actor)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	versions, err := svc.ListVersions(ctx, page.ArticleNumber)
	require.NoError(t, err)
	require.Len(t, versions, writers+1)
	live := 0
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber)
		if v.Published != nil {
			live++
			assert.Equal(t, writers+1, v.VersionNumber)
		}
	}
	assert.Equal(t, 1, live)

	served, err := svc.GetPublishedPage(ctx, "page", time.Now())
	require.NoError(t, err)
	assert.Equal(t, writers+1, served.VersionNumber)
}
