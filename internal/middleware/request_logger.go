package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/response"
)

// RequestIDHeader 请求ID响应头
const RequestIDHeader = "X-Request-ID"

// RequestLoggerConfig 请求日志中间件配置
type RequestLoggerConfig struct {
	SkipPaths   []string // 跳过记录的路径
	MaxBodySize int      // 记录请求体的最大字节数
	IncludeBody bool     // 是否记录JSON请求体, multipart请求体从不记录
}

// DefaultRequestLoggerConfig 默认配置
func DefaultRequestLoggerConfig() *RequestLoggerConfig {
	return &RequestLoggerConfig{
		SkipPaths:   []string{"/health", "/metrics", "/favicon.ico"},
		MaxBodySize: 64 * 1024,
		IncludeBody: false,
	}
}

// RequestID 为每个请求分配ID
// 客户端传入的 X-Request-ID 会被沿用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger 请求日志中间件, 以logrus字段记录每个请求
func RequestLogger(config ...*RequestLoggerConfig) gin.HandlerFunc {
	cfg := DefaultRequestLoggerConfig()
	if len(config) > 0 && config[0] != nil {
		cfg = config[0]
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		var body interface{}
		if cfg.IncludeBody {
			body = readRequestBody(c, cfg.MaxBodySize)
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		fields := logger.Fields{
			"request_id":    c.GetString(response.RequestIDKey),
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"query":         c.Request.URL.RawQuery,
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"client_ip":     c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
			"response_size": c.Writer.Size(),
		}
		if body != nil {
			fields["body"] = body
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("[HTTP] 请求失败")
		case status >= 400:
			entry.Warn("[HTTP] 请求被拒绝")
		default:
			entry.Info("[HTTP] 请求完成")
		}
	}
}

// readRequestBody 读取JSON请求体并重置, 以便后续处理器可以读取
func readRequestBody(c *gin.Context, maxSize int) interface{} {
	if c.Request.Body == nil || !strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(maxSize)+1))
	if err != nil {
		return nil
	}
	rest := c.Request.Body
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), rest))

	if len(body) > maxSize {
		return "(truncated)"
	}
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		return parsed
	}
	return string(body)
}
