package handlers

import (
	"github.com/gin-gonic/gin"

	"article-cms/helper"
	"article-cms/services"
)

type AdminHandler struct {
	versioning  services.VersioningService
	parallelism int
	Helper      *helper.HTTPHelper
}

func NewAdminHandler(versioning services.VersioningService, parallelism int, h *helper.HTTPHelper) *AdminHandler {
	return &AdminHandler{versioning: versioning, parallelism: parallelism, Helper: h}
}

func (h *AdminHandler) RebuildProjections(c *gin.Context) {
	if err := h.versioning.RebuildProjections(c.Request.Context(), h.parallelism); err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Projections rebuilt", h.Helper.EmptyJsonMap())
}
