package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"article-cms/helper"
	"article-cms/middleware"
	"article-cms/models"
	"article-cms/realtime"
	"article-cms/services"
)

type CollaborationHandler struct {
	collab services.CollaborationService
	hub    *realtime.Hub
	Helper *helper.HTTPHelper
}

func NewCollaborationHandler(collab services.CollaborationService, hub *realtime.Hub, h *helper.HTTPHelper) *CollaborationHandler {
	return &CollaborationHandler{collab: collab, hub: hub, Helper: h}
}

// Stream opens the caller's event stream. Its first event carries the
// connection id the room endpoints expect in X-Connection-Id.
func (h *CollaborationHandler) Stream(c *gin.Context) {
	client := h.collab.Connect(middleware.CurrentActor(c))
	defer h.collab.Disconnect(context.WithoutCancel(c.Request.Context()), client.ID)

	h.hub.ServeSSE(c.Writer, c.Request, client)
}

func (h *CollaborationHandler) Join(c *gin.Context) {
	editorType, articleID, connectionID, ok := h.roomRequest(c)
	if !ok {
		return
	}
	if err := h.collab.JoinRoom(c.Request.Context(), connectionID, editorType, articleID); err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	// a newcomer needs the current holder straight away
	state, err := h.collab.NotifyRoomOfLock(c.Request.Context(), editorType, articleID)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Joined room", state)
}

func (h *CollaborationHandler) Leave(c *gin.Context) {
	editorType, articleID, connectionID, ok := h.roomRequest(c)
	if !ok {
		return
	}
	if err := h.collab.LeaveRoom(c.Request.Context(), connectionID, editorType, articleID); err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Left room", h.Helper.EmptyJsonMap())
}

func (h *CollaborationHandler) Lock(c *gin.Context) {
	editorType, articleID, connectionID, ok := h.roomRequest(c)
	if !ok {
		return
	}
	state, err := h.collab.SetLock(c.Request.Context(), connectionID, middleware.CurrentActor(c), editorType, articleID)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Lock state", state)
}

func (h *CollaborationHandler) Clear(c *gin.Context) {
	editorType, articleID, connectionID, ok := h.roomRequest(c)
	if !ok {
		return
	}
	if err := h.collab.ClearLocks(c.Request.Context(), connectionID, editorType, articleID); err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Locks cleared", h.Helper.EmptyJsonMap())
}

func (h *CollaborationHandler) Notify(c *gin.Context) {
	editorType, err := realtime.ParseEditorType(c.Param("type"))
	if err != nil {
		h.Helper.SendDomainError(c, models.ErrorValidation{Field: "type", Message: err.Error()})
		return
	}
	state, err := h.collab.NotifyRoomOfLock(c.Request.Context(), editorType, c.Param("id"))
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	h.Helper.SendSuccess(c, "Lock state", state)
}

func (h *CollaborationHandler) roomRequest(c *gin.Context) (realtime.EditorType, string, string, bool) {
	editorType, err := realtime.ParseEditorType(c.Param("type"))
	if err != nil {
		h.Helper.SendDomainError(c, models.ErrorValidation{Field: "type", Message: err.Error()})
		return "", "", "", false
	}
	connectionID := c.GetHeader(ConnectionHeader)
	if connectionID == "" {
		h.Helper.SendBadRequest(c, ConnectionHeader+" header required", h.Helper.EmptyJsonMap())
		return "", "", "", false
	}
	return editorType, c.Param("id"), connectionID, true
}
