package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"article-cms/helper"
	"article-cms/services"
)

type PageHandler struct {
	versioning services.VersioningService
	Helper     *helper.HTTPHelper
}

func NewPageHandler(versioning services.VersioningService, h *helper.HTTPHelper) *PageHandler {
	return &PageHandler{versioning: versioning, Helper: h}
}

// GetPage serves the version live at the requested path. Pages carrying a
// role list are only shown to signed in editors through the API.
func (h *PageHandler) GetPage(c *gin.Context) {
	page, err := h.versioning.GetPublishedPage(c.Request.Context(), c.Param("path"), time.Now())
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	if page.IsRedirect() {
		c.Redirect(http.StatusMovedPermanently, "/pages/"+page.Content)
		return
	}
	if page.RoleList != nil {
		h.Helper.SendUnauthorizedError(c, "page is restricted", h.Helper.EmptyJsonMap())
		return
	}
	h.Helper.SendSuccess(c, "Page loaded", page)
}
