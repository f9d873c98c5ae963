package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"article-cms/logger"
	"article-cms/models"
	"article-cms/realtime"
	"article-cms/repositories"
)

// CollaborationService runs the advisory lock protocol. Locks only inform the
// other editors in a room; Save never consults them.
type CollaborationService interface {
	Connect(actor models.Actor) *realtime.Client
	Disconnect(ctx context.Context, connectionID string)
	JoinRoom(ctx context.Context, connectionID string, editorType realtime.EditorType, articleID string) error
	LeaveRoom(ctx context.Context, connectionID string, editorType realtime.EditorType, articleID string) error
	SetLock(ctx context.Context, connectionID string, actor models.Actor, editorType realtime.EditorType, articleID string) (*realtime.LockState, error)
	ClearLocks(ctx context.Context, connectionID string, editorType realtime.EditorType, articleID string) error
	NotifyRoomOfLock(ctx context.Context, editorType realtime.EditorType, articleID string) (*realtime.LockState, error)
	NotifySaved(ctx context.Context, connectionID string, actor models.Actor, version models.ArticleVersion) error
}

// DefaultLockTTL bounds how long a lock survives without its connection being
// released, e.g. after the instance holding the stream crashed.
const DefaultLockTTL = time.Hour

type collaborationService struct {
	hub     *realtime.Hub
	repos   *repositories.Repositories
	log     *logger.Logger
	lockTTL time.Duration
	now     func() time.Time
}

type CollaborationOption func(*collaborationService)

// WithLockTTL sets the age after which a lock may be taken over. Zero or less
// keeps DefaultLockTTL.
func WithLockTTL(ttl time.Duration) CollaborationOption {
	return func(s *collaborationService) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) CollaborationOption {
	return func(s *collaborationService) {
		s.now = now
	}
}

// NewCollaborationService serves connections of hub. Locks are only taken for
// connections attached to this hub, so a client must keep its stream and its
// lock calls on one instance.
func NewCollaborationService(hub *realtime.Hub, repos *repositories.Repositories, log *logger.Logger, opts ...CollaborationOption) CollaborationService {
	s := &collaborationService{
		hub:     hub,
		repos:   repos,
		log:     log.With("service", "CollaborationService"),
		lockTTL: DefaultLockTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	hub.OnDisconnect(s.releaseConnection)
	return s
}

func (s *collaborationService) Connect(actor models.Actor) *realtime.Client {
	return s.hub.NewClient(actor.ID, actor.Email)
}

// Disconnect closes the connection; the hub then calls releaseConnection.
func (s *collaborationService) Disconnect(ctx context.Context, connectionID string) {
	client, ok := s.hub.Client(connectionID)
	if !ok {
		return
	}
	s.hub.CloseClient(ctx, client)
}

func (s *collaborationService) JoinRoom(ctx context.Context, connectionID string, editorType realtime.EditorType, articleID string) error {
	room, err := roomFor(editorType, articleID)
	if err != nil {
		return err
	}
	if err := s.hub.AddToGroup(connectionID, room); err != nil {
		return connectionError(connectionID, err)
	}
	return nil
}

func (s *collaborationService) LeaveRoom(ctx context.Context, connectionID string, editorType realtime.EditorType, articleID string) error {
	room, err := roomFor(editorType, articleID)
	if err != nil {
		return err
	}
	if err := s.hub.RemoveFromGroup(connectionID, room); err != nil {
		return connectionError(connectionID, err)
	}
	return nil
}

// SetLock takes the lock for the caller's connection unless someone holds it
// already. A lock older than the TTL is swept first. The room is told the
// current holder either way.
func (s *collaborationService) SetLock(ctx context.Context, connectionID string, actor models.Actor, editorType realtime.EditorType, articleID string) (*realtime.LockState, error) {
	if _, err := roomFor(editorType, articleID); err != nil {
		return nil, err
	}
	if _, ok := s.hub.Client(connectionID); !ok {
		return nil, connectionError(connectionID, realtime.ErrUnknownConnection)
	}

	now := s.now()
	swept, err := s.repos.Locks.DeleteStale(ctx, string(editorType), articleID, now.Add(-s.lockTTL))
	if err != nil {
		return nil, fmt.Errorf("sweep stale lock: %w", err)
	}
	if swept {
		s.log.Info("stale lock removed", "editor_type", editorType, "article_id", articleID, "ttl", s.lockTTL)
	}

	lock := &models.ArticleLock{
		EditorType:   string(editorType),
		ArticleID:    articleID,
		ActorEmail:   actor.Email,
		ConnectionID: connectionID,
		AcquiredAt:   now,
	}
	acquired, err := s.repos.Locks.CreateIfAbsent(ctx, lock)
	if err != nil {
		return nil, fmt.Errorf("create lock: %w", err)
	}
	if acquired {
		s.log.Debug("lock acquired", "editor_type", editorType, "article_id", articleID, "actor", actor.Email)
	}
	return s.NotifyRoomOfLock(ctx, editorType, articleID)
}

// ClearLocks drops the locks of the connection and any lock on the document,
// then tells the room.
func (s *collaborationService) ClearLocks(ctx context.Context, connectionID string, editorType realtime.EditorType, articleID string) error {
	if _, err := roomFor(editorType, articleID); err != nil {
		return err
	}
	held, err := s.repos.Locks.ListByConnection(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("list locks: %w", err)
	}
	if err := s.repos.Locks.DeleteByConnectionOrTarget(ctx, connectionID, string(editorType), articleID); err != nil {
		return fmt.Errorf("clear locks: %w", err)
	}

	if _, err := s.NotifyRoomOfLock(ctx, editorType, articleID); err != nil {
		return err
	}
	for _, l := range held {
		if l.EditorType == string(editorType) && l.ArticleID == articleID {
			continue
		}
		if _, err := s.NotifyRoomOfLock(ctx, realtime.EditorType(l.EditorType), l.ArticleID); err != nil {
			s.log.Warn("failed to renotify room", "editor_type", l.EditorType, "article_id", l.ArticleID, "error", err)
		}
	}
	return nil
}

// NotifyRoomOfLock reads the current lock of a document and broadcasts it.
func (s *collaborationService) NotifyRoomOfLock(ctx context.Context, editorType realtime.EditorType, articleID string) (*realtime.LockState, error) {
	room, err := roomFor(editorType, articleID)
	if err != nil {
		return nil, err
	}

	state := &realtime.LockState{EditorType: editorType, ArticleID: articleID}
	lock, err := s.repos.Locks.GetByTarget(ctx, string(editorType), articleID)
	switch {
	case err == nil:
		acquired := lock.AcquiredAt
		state.Locked = true
		state.ActorEmail = lock.ActorEmail
		state.ConnectionID = lock.ConnectionID
		state.AcquiredAt = &acquired
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("read lock: %w", err)
	}

	if err := s.hub.Send(ctx, room, realtime.EventLockState, state); err != nil {
		return nil, fmt.Errorf("broadcast lock state: %w", err)
	}
	return state, nil
}

// NotifySaved releases the saver's lock on the article and tells the room to
// reload.
func (s *collaborationService) NotifySaved(ctx context.Context, connectionID string, actor models.Actor, version models.ArticleVersion) error {
	articleID := fmt.Sprint(version.ArticleNumber)
	room := realtime.RoomKey(realtime.EditorArticle, articleID)

	if connectionID != "" {
		if err := s.ClearLocks(ctx, connectionID, realtime.EditorArticle, articleID); err != nil {
			return err
		}
	}

	if err := s.hub.Send(ctx, room, realtime.EventSaved, realtime.SavedNotice{
		ArticleID: articleID,
		Content: realtime.ArticleContent{
			VersionID:     version.ID.String(),
			VersionNumber: version.VersionNumber,
			Title:         version.Title,
			Content:       version.Content,
		},
	}); err != nil {
		return fmt.Errorf("broadcast saved notice: %w", err)
	}
	return s.hub.Send(ctx, room, realtime.EventReload, realtime.ReloadNotice{
		EditorType: realtime.EditorArticle,
		ArticleID:  articleID,
		VersionID:  version.ID.String(),
		ActorEmail: actor.Email,
	})
}

// releaseConnection runs after a connection is gone: its locks are dropped and
// the rooms they covered are renotified.
func (s *collaborationService) releaseConnection(ctx context.Context, connectionID string, rooms []string) {
	held, err := s.repos.Locks.ListByConnection(ctx, connectionID)
	if err != nil {
		s.log.Error("failed to list locks of closed connection", "connection_id", connectionID, "error", err)
		return
	}
	if err := s.repos.Locks.DeleteByConnection(ctx, connectionID); err != nil {
		s.log.Error("failed to release locks of closed connection", "connection_id", connectionID, "error", err)
		return
	}
	for _, l := range held {
		if _, err := s.NotifyRoomOfLock(ctx, realtime.EditorType(l.EditorType), l.ArticleID); err != nil {
			s.log.Warn("failed to renotify room", "editor_type", l.EditorType, "article_id", l.ArticleID, "error", err)
		}
	}
	s.log.Debug("connection released", "connection_id", connectionID, "rooms", rooms, "locks", len(held))
}

func roomFor(editorType realtime.EditorType, articleID string) (string, error) {
	if _, err := realtime.ParseEditorType(string(editorType)); err != nil {
		return "", models.ErrorValidation{Field: "editor_type", Message: err.Error()}
	}
	articleID = strings.TrimSpace(articleID)
	if articleID == "" {
		return "", models.ErrorValidation{Field: "article_id", Message: "article id is required"}
	}
	return realtime.RoomKey(editorType, articleID), nil
}

func connectionError(connectionID string, err error) error {
	if errors.Is(err, realtime.ErrUnknownConnection) {
		return models.ErrorNotFound{Resource: "connection", ID: connectionID}
	}
	return err
}
