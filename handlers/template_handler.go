package handlers

import (
	"github.com/gin-gonic/gin"

	"article-cms/helper"
	"article-cms/middleware"
	"article-cms/models"
	"article-cms/services"
)

type TemplateHandler struct {
	versioning services.VersioningService
	Helper     *helper.HTTPHelper
}

func NewTemplateHandler(versioning services.VersioningService, h *helper.HTTPHelper) *TemplateHandler {
	return &TemplateHandler{versioning: versioning, Helper: h}
}

func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req models.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
		return
	}
	if !h.Helper.ValidateStruct(c, req) {
		return
	}

	tpl, err := h.versioning.CreateTemplate(c.Request.Context(), req, middleware.CurrentActor(c))
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendCreated(c, "Template created", tpl)
}

func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	templates, err := h.versioning.ListTemplates(c.Request.Context())
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Templates loaded", templates)
}
