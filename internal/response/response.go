// Package response 提供gin的统一JSON响应格式
package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/i18n"
)

// RequestIDKey 请求ID在gin上下文中的键
const RequestIDKey = "request_id"

// Response 统一返回值结构体
type Response struct {
	// 状态码，0表示成功，非0为错误码
	Code int `json:"code"`
	// 响应消息
	Message string `json:"message"`
	// 响应数据
	Data interface{} `json:"data,omitempty"`
	// 错误详情
	Error string `json:"error,omitempty"`
	// 请求ID，用于链路追踪
	RequestID string `json:"request_id,omitempty"`
	// 时间戳
	Timestamp int64 `json:"timestamp"`
}

// ListData 列表数据
type ListData struct {
	List   interface{} `json:"list"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit,omitempty"`
	Offset int         `json:"offset,omitempty"`
}

// now 测试中可替换
var now = time.Now

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, "success", data)
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusOK, message, data)
}

// Created 201响应
func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusCreated, message, data)
}

// Accepted 202响应, 用于进入outbox的笔记
func Accepted(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusAccepted, message, data)
}

// List 列表响应
func List(c *gin.Context, list interface{}, count, limit, offset int) {
	Success(c, ListData{List: list, Count: count, Limit: limit, Offset: offset})
}

// JSON 以指定HTTP状态码返回成功结构
func JSON(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Code:      int(apperrors.ErrSuccess),
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: now().Unix(),
	})
}

// Error 错误响应
func Error(c *gin.Context, status int, code apperrors.ErrorCode, detail string) {
	c.AbortWithStatusJSON(status, Response{
		Code:      int(code),
		Message:   apperrors.GetErrorMessageWithLang(code, language(c)),
		Error:     detail,
		RequestID: getRequestID(c),
		Timestamp: now().Unix(),
	})
}

// BadRequest 400错误响应
func BadRequest(c *gin.Context, detail string) {
	Error(c, http.StatusBadRequest, apperrors.ErrInvalidParams, detail)
}

// NotFound 404错误响应
func NotFound(c *gin.Context, detail string) {
	Error(c, http.StatusNotFound, apperrors.ErrNotFound, detail)
}

// FromError 按错误码选择HTTP状态码并返回错误响应
func FromError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	detail := err.Error()
	if appErr, ok := apperrors.GetAppError(err); ok {
		detail = appErr.Details
	}
	Error(c, StatusFor(code), code, detail)
}

// StatusFor 错误码对应的HTTP状态码
func StatusFor(code apperrors.ErrorCode) int {
	switch {
	case code == apperrors.ErrSuccess:
		return http.StatusOK
	case code == apperrors.ErrNotFound, code == apperrors.ErrOutboxEntryNotFound, code == apperrors.ErrFileNotFound:
		return http.StatusNotFound
	case code == apperrors.ErrFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case code == apperrors.ErrInvalidParams, code >= apperrors.ErrValidation && code < apperrors.ErrNotConnected:
		return http.StatusBadRequest
	case code == apperrors.ErrServiceUnavailable, code >= apperrors.ErrNotConnected && code < apperrors.ErrFileNotFound:
		return http.StatusServiceUnavailable
	case code >= apperrors.ErrUploadFailed && code < apperrors.ErrSessionResolution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// language 从Accept-Language中选取支持的语言, 否则使用默认语言
func language(c *gin.Context) string {
	i := i18n.GetInstance()
	for _, part := range strings.Split(c.GetHeader("Accept-Language"), ",") {
		lang := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if i.IsSupportedLanguage(lang) {
			return lang
		}
	}
	return i.GetDefaultLanguage()
}

// getRequestID 获取请求ID
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
