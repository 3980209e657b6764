// Package middleware 提供gin中间件: 请求ID、请求日志和panic恢复
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/response"
)

// Recovery 捕获处理器中的panic, 记录堆栈并返回500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logger.Fields{
					"request_id": c.GetString(response.RequestIDKey),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"panic":      fmt.Sprint(r),
					"stack":      string(debug.Stack()),
				}).Error("[HTTP] 处理请求时发生panic")
				response.Error(c, http.StatusInternalServerError, apperrors.ErrInternalServer, fmt.Sprint(r))
			}
		}()
		c.Next()
	}
}
