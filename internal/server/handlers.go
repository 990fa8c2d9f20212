package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// UserHeader carries the caller's user id, set by the upstream auth layer.
const UserHeader = "X-User-ID"

const userIDKey = "user_id"

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(UserHeader)), 10, 64)
		if err != nil || id <= 0 {
			abortWithError(c, errUnauthenticated)
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func (s *Server) handleList(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	unreadOnly, err := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))
	if err != nil {
		abortWithError(c, errInvalidRequest)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		abortWithError(c, errInvalidRequest)
		return
	}

	list, err := s.manager.ListForUser(ctx, c.GetInt64(userIDKey), unreadOnly, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": list, "count": len(list)})
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	c.JSON(http.StatusOK, gin.H{"success": true, "count": s.manager.UnreadCount(ctx, c.GetInt64(userIDKey))})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, errInvalidRequest)
		return
	}
	if err := s.manager.MarkRead(ctx, id, c.GetInt64(userIDKey)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	n, err := s.manager.MarkAllRead(ctx, c.GetInt64(userIDKey))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

type createRequest struct {
	UserID      *int64                 `json:"user_id"`
	Type        model.NotificationType `json:"type"`
	Category    string                 `json:"category"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	ActionURL   string                 `json:"action_url"`
	ActionLabel string                 `json:"action_label"`
	Priority    model.Priority         `json:"priority"`
	RelatedType string                 `json:"related_type"`
	RelatedID   *int64                 `json:"related_id"`
	Metadata    datatypes.JSON         `json:"metadata"`
	ExpiresAt   *time.Time             `json:"expires_at"`
}

func (s *Server) handleCreate(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errInvalidRequest)
		return
	}

	id, err := s.manager.CreateNotification(ctx, &model.Notification{
		UserID:      req.UserID,
		Type:        req.Type,
		Category:    req.Category,
		Title:       req.Title,
		Message:     req.Message,
		ActionURL:   req.ActionURL,
		ActionLabel: req.ActionLabel,
		Priority:    req.Priority,
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
		Metadata:    req.Metadata,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "notification_id": id})
}

func (s *Server) handleCleanup(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": s.manager.CleanupExpired(ctx)})
}

func (s *Server) handleCheck(c *gin.Context) {
	if s.runner == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "alert checks are disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.checkTimeout)
	defer cancel()

	result, err := s.runner.Run(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": result.Success, "result": result})
}
