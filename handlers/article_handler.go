package handlers

import (
	"github.com/gin-gonic/gin"

	"article-cms/helper"
	"article-cms/middleware"
	"article-cms/models"
	"article-cms/services"
)

type ArticleHandler struct {
	versioning services.VersioningService
	Helper     *helper.HTTPHelper
}

func NewArticleHandler(versioning services.VersioningService, h *helper.HTTPHelper) *ArticleHandler {
	return &ArticleHandler{versioning: versioning, Helper: h}
}

func (h *ArticleHandler) CreateArticle(c *gin.Context) {
	var req models.CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
		return
	}
	if !h.Helper.ValidateStruct(c, req) {
		return
	}

	version, err := h.versioning.Create(c.Request.Context(), req, middleware.CurrentActor(c))
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	h.Helper.SendCreated(c, "Article created", version)
}

func (h *ArticleHandler) GetArticles(c *gin.Context) {
	var params models.CatalogListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
		return
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 10
	}

	entries, total, err := h.versioning.ListCatalog(c.Request.Context(), params)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Articles loaded", gin.H{
		"articles": entries,
		"paging":   h.Helper.GeneratePaging(c, 0, 0, params.Limit, params.Page, int(total)),
	})
}

func (h *ArticleHandler) GetTrash(c *gin.Context) {
	trashed, err := h.versioning.ListTrash(c.Request.Context())
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Trash loaded", trashed)
}

func (h *ArticleHandler) GetArticleVersions(c *gin.Context) {
	number, err := articleNumberParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	versions, err := h.versioning.ListVersions(c.Request.Context(), number)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Versions loaded", versions)
}

func (h *ArticleHandler) GetLatestVersion(c *gin.Context) {
	number, err := articleNumberParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	version, err := h.versioning.GetLatest(c.Request.Context(), number)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Version loaded", version)
}

func (h *ArticleHandler) GetArticleLogs(c *gin.Context) {
	number, err := articleNumberParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	logs, err := h.versioning.ListLogs(c.Request.Context(), number)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Logs loaded", logs)
}

func (h *ArticleHandler) UpdateStatus(c *gin.Context) {
	number, err := articleNumberParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	var req models.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
		return
	}
	if !h.Helper.ValidateStruct(c, req) {
		return
	}

	if err := h.versioning.SetStatus(c.Request.Context(), number, req.Status, middleware.CurrentActor(c)); err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Status updated", h.Helper.EmptyJsonMap())
}

func (h *ArticleHandler) TrashArticle(c *gin.Context) {
	number, err := articleNumberParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	if err := h.versioning.TrashArticle(c.Request.Context(), number, middleware.CurrentActor(c)); err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Article moved to trash", h.Helper.EmptyJsonMap())
}

func (h *ArticleHandler) RestoreArticle(c *gin.Context) {
	number, err := articleNumberParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	version, err := h.versioning.RetrieveFromTrash(c.Request.Context(), number, middleware.CurrentActor(c))
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Article restored", version)
}

func (h *ArticleHandler) PurgeArticle(c *gin.Context) {
	number, err := articleNumberParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	if err := h.versioning.Purge(c.Request.Context(), number, middleware.CurrentActor(c)); err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Article purged", h.Helper.EmptyJsonMap())
}
