package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/pkg/model"
	"github.com/ogulcanaydogan/finalert/pkg/notify"
)

var (
	errUnauthenticated = errors.New("missing or invalid X-User-ID header")
	errInvalidRequest  = errors.New("invalid request")
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) errorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, resp := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(lastErr.Err),
			)
		}
		c.AbortWithStatusJSON(status, resp)
	}
}

func abortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError turns an error into a status and a body that never carries
// storage or driver text.
func mapError(err error) (int, errorResponse) {
	resp := errorResponse{Success: false}
	switch {
	case errors.Is(err, errUnauthenticated):
		resp.Error, resp.Message = "unauthenticated", err.Error()
		return http.StatusUnauthorized, resp
	case errors.Is(err, errInvalidRequest):
		resp.Error, resp.Message = "invalid_request", err.Error()
		return http.StatusBadRequest, resp
	case errors.Is(err, notify.ErrLocked):
		resp.Error, resp.Message = "check_in_progress", err.Error()
		return http.StatusConflict, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Error, resp.Message = "timeout", "the operation did not finish in time"
		return http.StatusGatewayTimeout, resp
	}

	resp.Error = notify.ErrorCode(err)
	switch resp.Error {
	case "validation_error":
		var v *model.ValidationError
		errors.As(err, &v)
		resp.Message = v.Error()
		return http.StatusBadRequest, resp
	case "not_found":
		resp.Message = "resource not found"
		return http.StatusNotFound, resp
	case "storage_error":
		resp.Message = "the notification store is unavailable"
		return http.StatusInternalServerError, resp
	default:
		resp.Error = "internal_error"
		resp.Message = "internal error"
		return http.StatusInternalServerError, resp
	}
}
