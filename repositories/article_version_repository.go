package repositories

import (
	"context"
	"strings"

	"article-cms/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ArticleVersionRepository interface {
	Create(ctx context.Context, version *models.ArticleVersion) error
	Save(ctx context.Context, version *models.ArticleVersion) error
	SaveAll(ctx context.Context, versions []models.ArticleVersion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ArticleVersion, error)
	ListByArticle(ctx context.Context, articleNumber int) ([]models.ArticleVersion, error)
	MaxVersionNumber(ctx context.Context, articleNumber int) (int, error)
	ListByPathPrefix(ctx context.Context, prefix string) ([]models.ArticleVersion, error)
	ListRedirects(ctx context.Context) ([]models.ArticleVersion, error)
	TitleInUse(ctx context.Context, title string, excludeArticle int) (bool, error)
	PathInUse(ctx context.Context, path string, excludeArticle int) (bool, error)
	RootArticleNumber(ctx context.Context) (int, bool, error)
	MaxArticleNumber(ctx context.Context) (int, error)
	UpdateArticleFields(ctx context.Context, articleNumber int, updates map[string]interface{}) error
	DeleteByArticle(ctx context.Context, articleNumber int) error
	ListArticleNumbers(ctx context.Context) ([]int, error)
	ListByStatus(ctx context.Context, status models.StatusCode) ([]models.ArticleVersion, error)
}

type articleVersionRepository struct {
	db *gorm.DB
}

func NewArticleVersionRepository(db *gorm.DB) ArticleVersionRepository {
	return &articleVersionRepository{db: db}
}

func (r *articleVersionRepository) Create(ctx context.Context, version *models.ArticleVersion) error {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *articleVersionRepository) Save(ctx context.Context, version *models.ArticleVersion) error {
	return r.db.WithContext(ctx).Save(version).Error
}

func (r *articleVersionRepository) SaveAll(ctx context.Context, versions []models.ArticleVersion) error {
	if len(versions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Save(&versions).Error
}

func (r *articleVersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ArticleVersion, error) {
	var version models.ArticleVersion
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&version).Error
	return &version, err
}

func (r *articleVersionRepository) ListByArticle(ctx context.Context, articleNumber int) ([]models.ArticleVersion, error) {
	var versions []models.ArticleVersion
	err := r.db.WithContext(ctx).
		Where("article_number = ?", articleNumber).
		Order("version_number asc").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	models.SortByVersionNumber(versions)
	return versions, nil
}

func (r *articleVersionRepository) MaxVersionNumber(ctx context.Context, articleNumber int) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.ArticleVersion{}).
		Select("COALESCE(MAX(version_number), 0)").
		Where("article_number = ?", articleNumber).
		Scan(&max).Error
	return max, err
}

// ListByPathPrefix returns versions whose UrlPath starts with prefix. LIKE
// wildcards in slugs ("_") over-match, so the prefix is re-checked here.
func (r *articleVersionRepository) ListByPathPrefix(ctx context.Context, prefix string) ([]models.ArticleVersion, error) {
	var candidates []models.ArticleVersion
	err := r.db.WithContext(ctx).
		Where("url_path LIKE ?", prefix+"%").
		Order("article_number asc, version_number asc").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	versions := candidates[:0]
	for _, v := range candidates {
		if strings.HasPrefix(v.UrlPath, prefix) {
			versions = append(versions, v)
		}
	}
	return versions, nil
}

func (r *articleVersionRepository) ListRedirects(ctx context.Context) ([]models.ArticleVersion, error) {
	var versions []models.ArticleVersion
	err := r.db.WithContext(ctx).
		Where("status_code = ?", models.StatusRedirect).
		Order("article_number asc, version_number asc").
		Find(&versions).Error
	return versions, err
}

// TitleInUse reports whether a live (not deleted, not redirect) article other
// than excludeArticle carries title, compared case-insensitively.
func (r *articleVersionRepository) TitleInUse(ctx context.Context, title string, excludeArticle int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ArticleVersion{}).
		Where("LOWER(title) = ?", strings.ToLower(strings.TrimSpace(title))).
		Where("status_code NOT IN ?", []models.StatusCode{models.StatusDeleted, models.StatusRedirect}).
		Where("article_number <> ?", excludeArticle).
		Count(&count).Error
	return count > 0, err
}

// PathInUse reports whether a live article other than excludeArticle is served
// at path.
func (r *articleVersionRepository) PathInUse(ctx context.Context, path string, excludeArticle int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ArticleVersion{}).
		Where("url_path = ?", path).
		Where("status_code NOT IN ?", []models.StatusCode{models.StatusDeleted, models.StatusRedirect}).
		Where("article_number <> ?", excludeArticle).
		Count(&count).Error
	return count > 0, err
}

func (r *articleVersionRepository) RootArticleNumber(ctx context.Context) (int, bool, error) {
	var versions []models.ArticleVersion
	err := r.db.WithContext(ctx).
		Where("url_path = ?", models.RootPath).
		Where("status_code <> ?", models.StatusRedirect).
		Limit(1).
		Find(&versions).Error
	if err != nil || len(versions) == 0 {
		return 0, false, err
	}
	return versions[0].ArticleNumber, true, nil
}

func (r *articleVersionRepository) MaxArticleNumber(ctx context.Context) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.ArticleVersion{}).
		Select("COALESCE(MAX(article_number), 0)").
		Scan(&max).Error
	return max, err
}

func (r *articleVersionRepository) UpdateArticleFields(ctx context.Context, articleNumber int, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.ArticleVersion{}).
		Where("article_number = ?", articleNumber).
		Updates(updates).Error
}

func (r *articleVersionRepository) DeleteByArticle(ctx context.Context, articleNumber int) error {
	return r.db.WithContext(ctx).
		Where("article_number = ?", articleNumber).
		Delete(&models.ArticleVersion{}).Error
}

func (r *articleVersionRepository) ListArticleNumbers(ctx context.Context) ([]int, error) {
	var numbers []int
	err := r.db.WithContext(ctx).
		Model(&models.ArticleVersion{}).
		Distinct().
		Order("article_number asc").
		Pluck("article_number", &numbers).Error
	return numbers, err
}

func (r *articleVersionRepository) ListByStatus(ctx context.Context, status models.StatusCode) ([]models.ArticleVersion, error) {
	var versions []models.ArticleVersion
	err := r.db.WithContext(ctx).
		Where("status_code = ?", status).
		Order("article_number asc, version_number asc").
		Find(&versions).Error
	return versions, err
}
