package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-cms/logger"
	"article-cms/models"
	"article-cms/realtime"
	"article-cms/repositories"
	"article-cms/testutil"
)

func newCollaboration(t *testing.T) (CollaborationService, *realtime.Hub, *repositories.Repositories) {
	t.Helper()
	repos := repositories.New(testutil.NewTestDB(t))
	hub := realtime.NewHub(logger.NewNop(), 32)
	return NewCollaborationService(hub, repos, logger.NewNop()), hub, repos
}

func nextMessage(t *testing.T, c *realtime.Client) realtime.Message {
	t.Helper()
	select {
	case msg := <-c.Outbound:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return realtime.Message{}
	}
}

func lockStateOf(t *testing.T, msg realtime.Message) realtime.LockState {
	t.Helper()
	require.Equal(t, realtime.EventLockState, msg.Event)
	var state realtime.LockState
	require.NoError(t, json.Unmarshal(msg.Data, &state))
	return state
}

func TestSetLockFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	svc, _, repos := newCollaboration(t)

	alice := models.Actor{ID: 1, Email: "alice@example.com"}
	bob := models.Actor{ID: 2, Email: "bob@example.com"}
	c1 := svc.Connect(alice)
	c2 := svc.Connect(bob)
	require.NoError(t, svc.JoinRoom(ctx, c1.ID, realtime.EditorArticle, "12"))
	require.NoError(t, svc.JoinRoom(ctx, c2.ID, realtime.EditorArticle, "12"))

	first, err := svc.SetLock(ctx, c1.ID, alice, realtime.EditorArticle, "12")
	require.NoError(t, err)
	second, err := svc.SetLock(ctx, c2.ID, bob, realtime.EditorArticle, "12")
	require.NoError(t, err)

	assert.True(t, first.Locked)
	assert.Equal(t, "alice@example.com", first.ActorEmail)
	assert.Equal(t, "alice@example.com", second.ActorEmail)
	assert.Equal(t, c1.ID, second.ConnectionID)

	for _, c := range []*realtime.Client{c1, c2} {
		a := lockStateOf(t, nextMessage(t, c))
		b := lockStateOf(t, nextMessage(t, c))
		assert.Equal(t, "alice@example.com", a.ActorEmail)
		assert.Equal(t, "alice@example.com", b.ActorEmail)
	}

	held, err := repos.Locks.ListByConnection(ctx, c2.ID)
	require.NoError(t, err)
	assert.Empty(t, held)
	lock, err := repos.Locks.GetByTarget(ctx, "article", "12")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, lock.ConnectionID)
}

func TestSetLockTakesOverStaleLock(t *testing.T) {
	ctx := context.Background()
	repos := repositories.New(testutil.NewTestDB(t))
	hub := realtime.NewHub(logger.NewNop(), 32)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := NewCollaborationService(hub, repos, logger.NewNop(),
		WithLockTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)

	alice := models.Actor{ID: 1, Email: "alice@example.com"}
	bob := models.Actor{ID: 2, Email: "bob@example.com"}
	c1 := svc.Connect(alice)
	c2 := svc.Connect(bob)

	_, err := svc.SetLock(ctx, c1.ID, alice, realtime.EditorArticle, "7")
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	state, err := svc.SetLock(ctx, c2.ID, bob, realtime.EditorArticle, "7")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, state.ConnectionID)

	now = now.Add(2 * time.Hour)
	state, err = svc.SetLock(ctx, c2.ID, bob, realtime.EditorArticle, "7")
	require.NoError(t, err)
	assert.True(t, state.Locked)
	assert.Equal(t, c2.ID, state.ConnectionID)
	assert.Equal(t, "bob@example.com", state.ActorEmail)

	lock, err := repos.Locks.GetByTarget(ctx, "article", "7")
	require.NoError(t, err)
	assert.Equal(t, c2.ID, lock.ConnectionID)
	assert.True(t, lock.AcquiredAt.Equal(now))
}

func TestClearLocksBroadcastsUnlocked(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCollaboration(t)
	alice := models.Actor{ID: 1, Email: "alice@example.com"}
	c1 := svc.Connect(alice)
	require.NoError(t, svc.JoinRoom(ctx, c1.ID, realtime.EditorLayout, "main"))

	_, err := svc.SetLock(ctx, c1.ID, alice, realtime.EditorLayout, "main")
	require.NoError(t, err)
	nextMessage(t, c1)

	require.NoError(t, svc.ClearLocks(ctx, c1.ID, realtime.EditorLayout, "main"))
	state := lockStateOf(t, nextMessage(t, c1))
	assert.False(t, state.Locked)
	assert.Empty(t, state.ActorEmail)
}

func TestDisconnectReleasesLocks(t *testing.T) {
	ctx := context.Background()
	svc, hub, repos := newCollaboration(t)
	alice := models.Actor{ID: 1, Email: "alice@example.com"}
	bob := models.Actor{ID: 2, Email: "bob@example.com"}
	c1 := svc.Connect(alice)
	c2 := svc.Connect(bob)
	require.NoError(t, svc.JoinRoom(ctx, c2.ID, realtime.EditorScript, "s1"))

	_, err := svc.SetLock(ctx, c1.ID, alice, realtime.EditorScript, "s1")
	require.NoError(t, err)
	assert.True(t, lockStateOf(t, nextMessage(t, c2)).Locked)

	svc.Disconnect(ctx, c1.ID)

	assert.False(t, lockStateOf(t, nextMessage(t, c2)).Locked)
	_, ok := hub.Client(c1.ID)
	assert.False(t, ok)
	held, err := repos.Locks.ListByConnection(ctx, c1.ID)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestCollaborationRejectsUnknownConnectionAndType(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCollaboration(t)

	err := svc.JoinRoom(ctx, "missing", realtime.EditorArticle, "1")
	assert.True(t, models.IsNotFound(err))

	_, err = svc.SetLock(ctx, "missing", models.Actor{Email: "x@example.com"}, realtime.EditorArticle, "1")
	assert.True(t, models.IsNotFound(err))

	c := svc.Connect(models.Actor{ID: 1})
	err = svc.JoinRoom(ctx, c.ID, realtime.EditorType("spreadsheet"), "1")
	assert.True(t, models.IsValidation(err))

	err = svc.JoinRoom(ctx, c.ID, realtime.EditorArticle, " ")
	assert.True(t, models.IsValidation(err))
}

func TestNotifySavedSendsContentThenReload(t *testing.T) {
	ctx := context.Background()
	svc, _, repos := newCollaboration(t)
	alice := models.Actor{ID: 1, Email: "alice@example.com"}
	bob := models.Actor{ID: 2, Email: "bob@example.com"}
	c1 := svc.Connect(alice)
	c2 := svc.Connect(bob)
	require.NoError(t, svc.JoinRoom(ctx, c2.ID, realtime.EditorArticle, "4"))

	_, err := svc.SetLock(ctx, c1.ID, alice, realtime.EditorArticle, "4")
	require.NoError(t, err)
	nextMessage(t, c2)

	version := models.ArticleVersion{ID: uuid.New(), ArticleNumber: 4, VersionNumber: 3, Title: "News", Content: "<p>hi</p>"}
	require.NoError(t, svc.NotifySaved(ctx, c1.ID, alice, version))

	assert.False(t, lockStateOf(t, nextMessage(t, c2)).Locked)

	saved := nextMessage(t, c2)
	require.Equal(t, realtime.EventSaved, saved.Event)
	var notice realtime.SavedNotice
	require.NoError(t, json.Unmarshal(saved.Data, &notice))
	content, ok := notice.Content.(realtime.ArticleContent)
	require.True(t, ok)
	assert.Equal(t, 3, content.VersionNumber)
	assert.Equal(t, "<p>hi</p>", content.Content)

	reload := nextMessage(t, c2)
	assert.Equal(t, realtime.EventReload, reload.Event)

	_, err = repos.Locks.GetByTarget(ctx, "article", "4")
	assert.Error(t, err)
}
