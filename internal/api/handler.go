// Package api exposes the conversation store over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/longkey1/llmnote/internal/llmnote/conversation"
)

// Store is the part of conversation.Service the handlers need.
type Store interface {
	CreateConversation(ctx context.Context, params conversation.CreateParams) (conversation.Conversation, error)
	ListConversationsByUser(userID string) []conversation.Summary
	GetConversation(id string, messageLimit int) conversation.Detail
	UpdateConversationMetadata(ctx context.Context, id string, patch conversation.Patch) (conversation.Conversation, bool, error)
	DeleteConversation(ctx context.Context, id string) (bool, error)
	DeleteConversations(ctx context.Context, ids []string) (conversation.DeleteReport, error)
	AppendMessagesWithCap(ctx context.Context, conversationID string, messages []conversation.NewMessage, limit int) (conversation.AppendResult, error)
}

// Options configures a Handler.
type Options struct {
	DefaultUserID string // Used when a request names no user
	MessageCap    int    // Used when an append names no cap
	Logger        *zap.Logger
}

// Handler serves the conversation routes.
type Handler struct {
	store         Store
	defaultUserID string
	messageCap    int
	logger        *zap.Logger
}

// NewHandler creates a Handler over store.
func NewHandler(store Store, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultUserID == "" {
		opts.DefaultUserID = conversation.DefaultUserID
	}
	return &Handler{
		store:         store,
		defaultUserID: opts.DefaultUserID,
		messageCap:    opts.MessageCap,
		logger:        opts.Logger,
	}
}

type deleteManyRequest struct {
	IDs []string `json:"ids"`
}

type appendRequest struct {
	Messages []conversation.NewMessage `json:"messages" binding:"required"`
	Cap      *int                      `json:"cap,omitempty"`
}

// ListConversations handles GET /api/conversations.
func (h *Handler) ListConversations(c *gin.Context) {
	userID := c.DefaultQuery("user_id", h.defaultUserID)
	c.JSON(http.StatusOK, gin.H{"conversations": h.store.ListConversationsByUser(userID)})
}

// CreateConversation handles POST /api/conversations. An empty body creates
// an untitled conversation for the default user.
func (h *Handler) CreateConversation(c *gin.Context) {
	var params conversation.CreateParams
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			sendJSONError(c, http.StatusBadRequest, "invalid request body: "+err.Error(), err)
			return
		}
	}
	if params.UserID == "" {
		params.UserID = h.defaultUserID
	}

	conv, err := h.store.CreateConversation(c.Request.Context(), params)
	if err != nil {
		sendJSONError(c, http.StatusInternalServerError, "failed to create conversation", err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// GetConversation handles GET /api/conversations/:id. A missing conversation
// is reported through the "exists" field, not a 404.
func (h *Handler) GetConversation(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			sendJSONError(c, http.StatusBadRequest, "limit must be an integer", err)
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, h.store.GetConversation(c.Param("id"), limit))
}

// UpdateConversation handles PATCH /api/conversations/:id.
func (h *Handler) UpdateConversation(c *gin.Context) {
	var patch conversation.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		sendJSONError(c, http.StatusBadRequest, "invalid request body: "+err.Error(), err)
		return
	}

	conv, found, err := h.store.UpdateConversationMetadata(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		sendJSONError(c, http.StatusInternalServerError, "failed to update conversation", err)
		return
	}
	if !found {
		sendJSONError(c, http.StatusNotFound, "conversation not found", nil)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// DeleteConversation handles DELETE /api/conversations/:id.
func (h *Handler) DeleteConversation(c *gin.Context) {
	deleted, err := h.store.DeleteConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendJSONError(c, http.StatusInternalServerError, "failed to delete conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// DeleteConversations handles POST /api/conversations/delete. Partial
// failures are reported in the body with a 200 status.
func (h *Handler) DeleteConversations(c *gin.Context) {
	var req deleteManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendJSONError(c, http.StatusBadRequest, "invalid request body: "+err.Error(), err)
		return
	}

	report, err := h.store.DeleteConversations(c.Request.Context(), req.IDs)
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, report)
}

// AppendMessages handles POST /api/conversations/:id/messages.
func (h *Handler) AppendMessages(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendJSONError(c, http.StatusBadRequest, "invalid request body: "+err.Error(), err)
		return
	}

	limit := h.messageCap
	if req.Cap != nil {
		limit = *req.Cap
	}

	result, err := h.store.AppendMessagesWithCap(c.Request.Context(), c.Param("id"), req.Messages, limit)
	switch {
	case errors.Is(err, conversation.ErrInvalidRole), errors.Is(err, conversation.ErrEmptyConversationID):
		sendJSONError(c, http.StatusBadRequest, err.Error(), err)
		return
	case err != nil:
		sendJSONError(c, http.StatusInternalServerError, "failed to append messages", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
