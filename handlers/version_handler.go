package handlers

import (
	"github.com/gin-gonic/gin"

	"article-cms/helper"
	"article-cms/logger"
	"article-cms/middleware"
	"article-cms/models"
	"article-cms/services"
)

// ConnectionHeader carries the caller's stream connection id.
const ConnectionHeader = "X-Connection-Id"

type VersionHandler struct {
	versioning services.VersioningService
	collab     services.CollaborationService
	log        *logger.Logger
	Helper     *helper.HTTPHelper
}

func NewVersionHandler(versioning services.VersioningService, collab services.CollaborationService, log *logger.Logger, h *helper.HTTPHelper) *VersionHandler {
	return &VersionHandler{
		versioning: versioning,
		collab:     collab,
		log:        log.With("handler", "VersionHandler"),
		Helper:     h,
	}
}

func (h *VersionHandler) GetVersion(c *gin.Context) {
	id, err := versionIDParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	version, err := h.versioning.GetVersion(c.Request.Context(), id)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Version loaded", version)
}

// SaveVersion stores the editor's changes. When something was written the
// caller's lock is released and the article room told to reload.
func (h *VersionHandler) SaveVersion(c *gin.Context) {
	id, err := versionIDParam(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	var req models.SaveArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
		return
	}
	if !h.Helper.ValidateStruct(c, req) {
		return
	}

	ctx := c.Request.Context()
	actor := middleware.CurrentActor(c)
	result, err := h.versioning.Save(ctx, id, req, actor)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	if result.Changed {
		if err := h.collab.NotifySaved(ctx, c.GetHeader(ConnectionHeader), actor, result.Version); err != nil {
			h.log.Warn("failed to notify room of save", "article_number", result.Version.ArticleNumber, "error", err)
		}
	}
	h.Helper.SendSuccess(c, "Version saved", result)
}
