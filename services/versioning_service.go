package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"article-cms/logger"
	"article-cms/markup"
	"article-cms/models"
	"article-cms/repositories"
)

// publishBackdate puts bootstrap and redirect publications slightly in the past
// so they are live as soon as they are projected.
const publishBackdate = 5 * time.Minute

type VersioningService interface {
	Create(ctx context.Context, req models.CreateArticleRequest, actor models.Actor) (*models.ArticleVersion, error)
	Save(ctx context.Context, versionID uuid.UUID, req models.SaveArticleRequest, actor models.Actor) (*models.SaveResult, error)
	SetStatus(ctx context.Context, articleNumber int, status models.StatusCode, actor models.Actor) error
	TrashArticle(ctx context.Context, articleNumber int, actor models.Actor) error
	Purge(ctx context.Context, articleNumber int, actor models.Actor) error
	RetrieveFromTrash(ctx context.Context, articleNumber int, actor models.Actor) (*models.ArticleVersion, error)

	GetVersion(ctx context.Context, id uuid.UUID) (*models.ArticleVersion, error)
	GetLatest(ctx context.Context, articleNumber int) (*models.ArticleVersion, error)
	ListVersions(ctx context.Context, articleNumber int) ([]models.ArticleVersion, error)
	ListCatalog(ctx context.Context, params models.CatalogListParams) ([]models.CatalogEntry, int64, error)
	ListTrash(ctx context.Context) ([]models.TrashedArticle, error)
	ListLogs(ctx context.Context, articleNumber int) ([]models.ArticleLog, error)
	GetPublishedPage(ctx context.Context, path string, at time.Time) (*models.PublishedPage, error)
	RebuildProjections(ctx context.Context, parallelism int) error

	CreateTemplate(ctx context.Context, req models.CreateTemplateRequest, actor models.Actor) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
}

type VersioningOption func(*versioningService)

// WithVersioningClock replaces time.Now.
func WithVersioningClock(now func() time.Time) VersioningOption {
	return func(s *versioningService) { s.now = now }
}

type versioningService struct {
	repos      *repositories.Repositories
	normalizer markup.Normalizer
	log        *logger.Logger
	now        func() time.Time
	articles   *keyedMutex
}

func NewVersioningService(repos *repositories.Repositories, normalizer markup.Normalizer, log *logger.Logger, opts ...VersioningOption) VersioningService {
	s := &versioningService{
		repos:      repos,
		normalizer: normalizer,
		log:        log.With("service", "VersioningService"),
		now:        time.Now,
		articles:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *versioningService) Create(ctx context.Context, req models.CreateArticleRequest, actor models.Actor) (created *models.ArticleVersion, err error) {
	ctx, span := startSpan(ctx, "VersioningService.Create")
	defer func() { endSpan(span, err) }()

	title := strings.TrimSpace(req.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	content := ""
	if req.TemplateID != nil {
		tpl, err := s.repos.Templates.GetByID(ctx, *req.TemplateID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.ErrorNotFound{Resource: "template", ID: req.TemplateID.String()}
			}
			return nil, fmt.Errorf("load template: %w", err)
		}
		content = tpl.Content
	}
	content, err = s.normalizer.Normalize(content)
	if err != nil {
		return nil, models.ErrorValidation{Field: "content", Message: err.Error()}
	}

	now := s.now()
	var version models.ArticleVersion
	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := lockNamespace(ctx, tx); err != nil {
			return err
		}
		if err := ensureTitleFree(ctx, tx, title, 0); err != nil {
			return err
		}

		_, hasRoot, err := tx.Versions.RootArticleNumber(ctx)
		if err != nil {
			return fmt.Errorf("find root article: %w", err)
		}
		path := models.RootPath
		var published *time.Time
		if hasRoot {
			path = Slugify(title)
			if err := ensurePathFree(ctx, tx, path, 0); err != nil {
				return err
			}
			if _, err := removeRedirectsAt(ctx, tx, path); err != nil {
				return err
			}
		} else {
			published = models.TimePtr(now.Add(-publishBackdate))
		}

		number, err := allocateArticleNumber(ctx, tx)
		if err != nil {
			return err
		}

		version = models.ArticleVersion{
			ArticleNumber: number,
			VersionNumber: 1,
			Title:         title,
			UrlPath:       path,
			Content:       content,
			StatusCode:    models.StatusActive,
			Published:     published,
			Updated:       now,
			UpdatedBy:     actor.ID,
		}
		if err := tx.Versions.Create(ctx, &version); err != nil {
			return fmt.Errorf("create version: %w", err)
		}
		if err := tx.Catalog.Upsert(ctx, buildCatalogEntry([]models.ArticleVersion{version})); err != nil {
			return fmt.Errorf("create catalog entry: %w", err)
		}
		return writeLog(ctx, tx, now, number, actor, "Article created", map[string]any{
			"title":    title,
			"url_path": path,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("article created", "article_number", version.ArticleNumber, "url_path", version.UrlPath, "actor", actor.Email)
	if version.Published != nil {
		s.publishCascade(ctx, version.ArticleNumber, version.ID)
	}
	return &version, nil
}

func (s *versioningService) Save(ctx context.Context, versionID uuid.UUID, req models.SaveArticleRequest, actor models.Actor) (result *models.SaveResult, err error) {
	ctx, span := startSpan(ctx, "VersioningService.Save", attribute.String("version.id", versionID.String()))
	defer func() { endSpan(span, err) }()

	target, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	number := target.ArticleNumber
	unlock := s.articles.Lock(number)
	defer unlock()

	title := strings.TrimSpace(req.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	roleList, err := normalizeRoleList(req.RoleList)
	if err != nil {
		return nil, err
	}
	content, err := s.normalizer.Normalize(req.Content)
	if err != nil {
		return nil, models.ErrorValidation{Field: "content", Message: err.Error()}
	}

	// renumbering may have run; read the target again under the article lock
	versions, err := s.listVersions(ctx, number)
	if err != nil {
		return nil, err
	}
	target, err = s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	switch target.StatusCode {
	case models.StatusDeleted:
		return nil, models.ErrorUnsupported{Message: "article is in the trash"}
	case models.StatusRedirect:
		return nil, models.ErrorUnsupported{Message: "redirects cannot be edited"}
	}

	storedTitle := versions[len(versions)-1].Title
	titleChanged := !strings.EqualFold(title, storedTitle)
	caseOnly := !titleChanged && title != storedTitle
	rolesChanged := !equalStringPtr(roleList, target.RoleList)

	if !titleChanged && !caseOnly && !rolesChanged &&
		target.Content == content &&
		target.HeaderScript == req.HeaderScript &&
		target.FooterScript == req.FooterScript &&
		equalTimePtr(target.Published, req.Published) {
		return &models.SaveResult{Version: *target}, nil
	}

	now := s.now()
	var saved models.ArticleVersion
	var touched []int
	created := false
	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if titleChanged {
			if err := lockNamespace(ctx, tx); err != nil {
				return err
			}
			if err := ensureTitleFree(ctx, tx, title, number); err != nil {
				return err
			}
		}

		if req.UpdateExisting {
			saved = *target
			saved.Content = content
			saved.HeaderScript = req.HeaderScript
			saved.FooterScript = req.FooterScript
			saved.Published = req.Published
			saved.RoleList = roleList
			saved.Updated = now
			saved.UpdatedBy = actor.ID
			if err := tx.Versions.Save(ctx, &saved); err != nil {
				return fmt.Errorf("update version: %w", err)
			}
		} else {
			last, err := tx.Versions.MaxVersionNumber(ctx, number)
			if err != nil {
				return fmt.Errorf("read max version: %w", err)
			}
			saved = models.ArticleVersion{
				ArticleNumber: number,
				VersionNumber: last + 1,
				Title:         target.Title,
				UrlPath:       target.UrlPath,
				RoleList:      target.RoleList,
				StatusCode:    target.StatusCode,
				Content:       content,
				HeaderScript:  req.HeaderScript,
				FooterScript:  req.FooterScript,
				Published:     req.Published,
				Updated:       now,
				UpdatedBy:     actor.ID,
			}
			if err := tx.Versions.Create(ctx, &saved); err != nil {
				return fmt.Errorf("create version: %w", err)
			}
			created = true
		}

		if rolesChanged {
			if err := tx.Versions.UpdateArticleFields(ctx, number, map[string]interface{}{"role_list": roleList}); err != nil {
				return fmt.Errorf("cascade role list: %w", err)
			}
			saved.RoleList = roleList
			if err := writeLog(ctx, tx, now, number, actor, "Role list changed", map[string]any{
				"from": target.RoleList,
				"to":   roleList,
			}); err != nil {
				return err
			}
		}

		switch {
		case titleChanged:
			rename, err := s.titleCascade(ctx, tx, number, storedTitle, title, target.IsRoot(), actor, now)
			if err != nil {
				return err
			}
			saved.Title = title
			saved.UrlPath = rename.newPath
			touched = rename.touched
		case caseOnly:
			if err := tx.Versions.UpdateArticleFields(ctx, number, map[string]interface{}{"title": title}); err != nil {
				return fmt.Errorf("update title: %w", err)
			}
			saved.Title = title
		}

		note := fmt.Sprintf("Version %d updated", saved.VersionNumber)
		if created {
			note = fmt.Sprintf("Version %d created", saved.VersionNumber)
		}
		return writeLog(ctx, tx, now, number, actor, note, map[string]any{"version_id": saved.ID.String()})
	})
	if err != nil {
		return nil, err
	}

	s.publishCascade(ctx, number, saved.ID)
	for _, n := range touched {
		if n == number {
			continue
		}
		s.refreshPublication(ctx, n)
		s.refreshCatalog(ctx, n)
	}
	s.refreshCatalog(ctx, number)

	if fresh, err := s.repos.Versions.GetByID(ctx, saved.ID); err == nil {
		saved = *fresh
	}
	s.log.Info("version saved",
		"article_number", number,
		"version_number", saved.VersionNumber,
		"created", created,
		"actor", actor.Email,
	)
	return &models.SaveResult{Version: saved, Changed: true, Created: created}, nil
}

func (s *versioningService) GetVersion(ctx context.Context, id uuid.UUID) (*models.ArticleVersion, error) {
	return s.getVersion(ctx, id)
}

func (s *versioningService) GetLatest(ctx context.Context, articleNumber int) (*models.ArticleVersion, error) {
	versions, err := s.listVersions(ctx, articleNumber)
	if err != nil {
		return nil, err
	}
	latest := versions[len(versions)-1]
	return &latest, nil
}

func (s *versioningService) ListVersions(ctx context.Context, articleNumber int) ([]models.ArticleVersion, error) {
	unlock := s.articles.Lock(articleNumber)
	defer unlock()
	return s.listVersions(ctx, articleNumber)
}

func (s *versioningService) ListCatalog(ctx context.Context, params models.CatalogListParams) ([]models.CatalogEntry, int64, error) {
	return s.repos.Catalog.List(ctx, params)
}

func (s *versioningService) ListTrash(ctx context.Context) ([]models.TrashedArticle, error) {
	versions, err := s.repos.Versions.ListByStatus(ctx, models.StatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}

	var trashed []models.TrashedArticle
	index := map[int]int{}
	for _, v := range versions {
		i, ok := index[v.ArticleNumber]
		if !ok {
			index[v.ArticleNumber] = len(trashed)
			trashed = append(trashed, models.TrashedArticle{ArticleNumber: v.ArticleNumber, Title: v.Title, Updated: v.Updated})
			continue
		}
		if v.Updated.After(trashed[i].Updated) {
			trashed[i].Updated = v.Updated
		}
		trashed[i].Title = v.Title
	}
	return trashed, nil
}

func (s *versioningService) ListLogs(ctx context.Context, articleNumber int) ([]models.ArticleLog, error) {
	return s.repos.Logs.ListByArticle(ctx, articleNumber)
}

// GetPublishedPage resolves what is served at path at the given instant. An
// empty path is the home page.
func (s *versioningService) GetPublishedPage(ctx context.Context, path string, at time.Time) (*models.PublishedPage, error) {
	path = strings.ToLower(strings.Trim(strings.TrimSpace(path), "/"))
	if path == "" {
		path = models.RootPath
	}
	pages, err := s.repos.Pages.ListByUrlPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	page := models.EffectivePage(pages, at)
	if page == nil {
		return nil, models.ErrorNotFound{Resource: "page", ID: path}
	}
	return page, nil
}

func (s *versioningService) getVersion(ctx context.Context, id uuid.UUID) (*models.ArticleVersion, error) {
	v, err := s.repos.Versions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrorNotFound{Resource: "version", ID: id.String()}
		}
		return nil, fmt.Errorf("load version: %w", err)
	}
	return v, nil
}

// listVersions returns the history of an article ordered by version number.
// Duplicate or missing numbers are repaired before returning.
func (s *versioningService) listVersions(ctx context.Context, articleNumber int) ([]models.ArticleVersion, error) {
	versions, err := s.repos.Versions.ListByArticle(ctx, articleNumber)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, models.ErrorNotFound{Resource: "article", ID: strconv.Itoa(articleNumber)}
	}
	if isContiguous(versions) {
		return versions, nil
	}

	s.log.Warn("renumbering article versions", "error", models.ErrorConsistency{
		ArticleNumber: articleNumber,
		Message:       "duplicate or missing version numbers",
	})
	for i := range versions {
		versions[i].VersionNumber = i + 1
	}
	if err := s.repos.Versions.SaveAll(ctx, versions); err != nil {
		return nil, fmt.Errorf("renumber versions: %w", err)
	}
	versions, err = s.repos.Versions.ListByArticle(ctx, articleNumber)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

func isContiguous(sorted []models.ArticleVersion) bool {
	for i, v := range sorted {
		if v.VersionNumber != i+1 {
			return false
		}
	}
	return true
}

// lockNamespace queues the transaction behind every other one that claims a
// title or path. It must run before the first uniqueness or root check: each
// later statement then sees what the previous holder committed.
func lockNamespace(ctx context.Context, tx *repositories.Repositories) error {
	seed, err := tx.Versions.MaxArticleNumber(ctx)
	if err != nil {
		return fmt.Errorf("read max article number: %w", err)
	}
	if err := tx.Counters.Lock(ctx, models.ArticleNumberCounter, seed); err != nil {
		return fmt.Errorf("lock article namespace: %w", err)
	}
	return nil
}

func allocateArticleNumber(ctx context.Context, tx *repositories.Repositories) (int, error) {
	seed, err := tx.Versions.MaxArticleNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("read max article number: %w", err)
	}
	number, err := tx.Counters.Next(ctx, models.ArticleNumberCounter, seed)
	if err != nil {
		return 0, fmt.Errorf("allocate article number: %w", err)
	}
	return number, nil
}

func ensureTitleFree(ctx context.Context, tx *repositories.Repositories, title string, exclude int) error {
	inUse, err := tx.Versions.TitleInUse(ctx, title, exclude)
	if err != nil {
		return fmt.Errorf("check title: %w", err)
	}
	if inUse {
		return models.ErrorValidation{Field: "title", Message: "an article titled \"" + title + "\" already exists"}
	}
	return nil
}

func ensurePathFree(ctx context.Context, tx *repositories.Repositories, path string, exclude int) error {
	inUse, err := tx.Versions.PathInUse(ctx, path, exclude)
	if err != nil {
		return fmt.Errorf("check path: %w", err)
	}
	if inUse {
		return models.ErrorValidation{Field: "title", Message: "the path \"" + path + "\" is already in use"}
	}
	return nil
}

func writeLog(ctx context.Context, tx *repositories.Repositories, now time.Time, articleNumber int, actor models.Actor, note string, details map[string]any) error {
	entry := &models.ArticleLog{
		ArticleID: articleNumber,
		Note:      note,
		ActorID:   actor.ID,
		Timestamp: now,
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode log details: %w", err)
		}
		entry.Details = datatypes.JSON(raw)
	}
	if err := tx.Logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
