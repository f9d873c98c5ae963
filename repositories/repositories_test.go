package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-cms/models"
	"article-cms/repositories"
	"article-cms/testutil"
)

func TestCounterNextSeedsOnceAndIncrements(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(testutil.NewTestDB(t))

	first, err := repos.Counters.Next(ctx, models.ArticleNumberCounter, 41)
	require.NoError(t, err)
	assert.Equal(t, 42, first)

	second, err := repos.Counters.Next(ctx, models.ArticleNumberCounter, 0)
	require.NoError(t, err)
	assert.Equal(t, 43, second)
}

func TestCounterLockKeepsValue(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(testutil.NewTestDB(t))

	require.NoError(t, repos.Counters.Lock(ctx, models.ArticleNumberCounter, 7))
	require.NoError(t, repos.Counters.Lock(ctx, models.ArticleNumberCounter, 99))

	next, err := repos.Counters.Next(ctx, models.ArticleNumberCounter, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, next)
}

func TestLockDeleteStale(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(testutil.NewTestDB(t))
	acquired := time.Now().Add(-2 * time.Hour)

	ok, err := repos.Locks.CreateIfAbsent(ctx, &models.ArticleLock{
		EditorType: "article", ArticleID: "1", ConnectionID: "c1", ActorEmail: "a@example.com", AcquiredAt: acquired,
	})
	require.NoError(t, err)
	require.True(t, ok)

	removed, err := repos.Locks.DeleteStale(ctx, "article", "1", acquired.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = repos.Locks.DeleteStale(ctx, "article", "1", acquired.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = repos.Locks.GetByTarget(ctx, "article", "1")
	assert.Error(t, err)
}

func TestLockCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(testutil.NewTestDB(t))

	ok, err := repos.Locks.CreateIfAbsent(ctx, &models.ArticleLock{
		EditorType: "article", ArticleID: "1", ConnectionID: "c1", ActorEmail: "a@example.com", AcquiredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Locks.CreateIfAbsent(ctx, &models.ArticleLock{
		EditorType: "article", ArticleID: "1", ConnectionID: "c2", ActorEmail: "b@example.com", AcquiredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	lock, err := repos.Locks.GetByTarget(ctx, "article", "1")
	require.NoError(t, err)
	assert.Equal(t, "c1", lock.ConnectionID)

	require.NoError(t, repos.Locks.DeleteByConnectionOrTarget(ctx, "c2", "article", "1"))
	_, err = repos.Locks.GetByTarget(ctx, "article", "1")
	assert.Error(t, err)
}

func TestPagesReplaceClearsArticleAndPaths(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(testutil.NewTestDB(t))
	now := time.Now()

	stale := models.PublishedPage{ID: uuid.New(), ArticleNumber: 9, UrlPath: "blog", Published: &now}
	require.NoError(t, repos.Pages.Replace(ctx, 9, []string{"blog"}, []models.PublishedPage{stale}))

	fresh := models.PublishedPage{ID: uuid.New(), ArticleNumber: 3, UrlPath: "blog", Published: &now}
	require.NoError(t, repos.Pages.Replace(ctx, 3, []string{"blog"}, []models.PublishedPage{fresh}))

	pages, err := repos.Pages.ListByUrlPath(ctx, "blog")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, fresh.ID, pages[0].ID)

	require.NoError(t, repos.Pages.Replace(ctx, 3, nil, nil))
	pages, err = repos.Pages.ListByArticle(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestCatalogListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(testutil.NewTestDB(t))
	base := time.Now()

	for i := 1; i <= 5; i++ {
		status := models.CatalogStatusActive
		if i%2 == 0 {
			status = models.CatalogStatusInactive
		}
		require.NoError(t, repos.Catalog.Upsert(ctx, &models.CatalogEntry{
			ArticleNumber: i,
			Title:         "Page",
			UrlPath:       "page",
			Status:        status,
			Updated:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, total, err := repos.Catalog.List(ctx, models.CatalogListParams{Status: models.CatalogStatusActive, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 2)
	assert.Equal(t, 5, entries[0].ArticleNumber)

	require.NoError(t, repos.Catalog.Upsert(ctx, &models.CatalogEntry{
		ArticleNumber: 5, Title: "Renamed", UrlPath: "renamed", Status: models.CatalogStatusActive, Updated: base,
	}))
	entry, err := repos.Catalog.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", entry.Title)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(testutil.NewTestDB(t))

	err := repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Catalog.Upsert(ctx, &models.CatalogEntry{ArticleNumber: 1, Title: "A", UrlPath: "a", Status: models.CatalogStatusActive}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = repos.Catalog.Get(ctx, 1)
	assert.Error(t, err)
}
