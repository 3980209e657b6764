package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/weiwangfds/racenotes/internal/i18n"
)

// ErrorCode 错误码类型
// 错误码按错误来源分段, 与调用方的降级策略一一对应
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1099)
	ErrSuccess            ErrorCode = 0
	ErrInternalServer     ErrorCode = 1000
	ErrInvalidParams      ErrorCode = 1001
	ErrNotFound           ErrorCode = 1004
	ErrServiceUnavailable ErrorCode = 1007

	// 校验错误码 (1100-1199): 写入前拒绝
	ErrValidation  ErrorCode = 1100
	ErrInvalidEnum ErrorCode = 1101
	ErrEmptyBody   ErrorCode = 1102

	// 连接错误码 (2000-2999): 降级到离线缓存或待同步队列
	ErrNotConnected       ErrorCode = 2000
	ErrOfflineMode        ErrorCode = 2001
	ErrDatabaseConnection ErrorCode = 2002
	ErrDatabaseQuery      ErrorCode = 2003

	// 上传错误码 (3000-3999): 降级为 local:// 引用
	ErrFileNotFound                ErrorCode = 3000
	ErrFileTooLarge                ErrorCode = 3001
	ErrUploadFailed                ErrorCode = 3002
	ErrPublicURLUnavailable        ErrorCode = 3003
	ErrStorageUnavailable          ErrorCode = 3004
	ErrStorageProviderNotSupported ErrorCode = 3005
	ErrStorageConfigInvalid        ErrorCode = 3006

	// 解析错误码 (4000-4999): 终止整个笔记创建
	ErrSessionResolution ErrorCode = 4000
	ErrTrackResolution   ErrorCode = 4001
	ErrSeriesResolution  ErrorCode = 4002
	ErrNoteInsert        ErrorCode = 4003
	ErrRecordCreate      ErrorCode = 4004

	// 部分写入 (5000-5999): 笔记已提交, 附加数据不完整
	ErrPartialWrite ErrorCode = 5000

	// 缓存错误码 (6000-6999): 视为空数据, 不向上传播
	ErrCacheUnavailable    ErrorCode = 6000
	ErrCacheCorrupted      ErrorCode = 6001
	ErrOutboxEntryNotFound ErrorCode = 6002

	// 配置错误码 (7000-7999)
	ErrConfigInvalid ErrorCode = 7000
)

// AppError 应用错误结构体
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// Is 错误码相同即视为同一类错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails 添加详细错误信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewCode 使用错误码的默认文本创建错误
func NewCode(code ErrorCode) *AppError {
	return New(code, GetErrorMessage(code))
}

// Newf 使用错误码的默认文本创建错误, 并格式化详细信息
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: GetErrorMessage(code),
		Details: fmt.Sprintf(format, args...),
	}
}

// Wrap 包装原始错误
// 参数:
//   - code: 错误码
//   - err: 原始错误, 其文本写入Details
func Wrap(code ErrorCode, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Message:       GetErrorMessage(code),
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// IsAppError 判断错误链中是否包含应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 从错误链中提取应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// CodeOf 返回错误链中的错误码, 非应用错误返回 ErrInternalServer
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrSuccess
	}
	if appErr, ok := GetAppError(err); ok {
		return appErr.Code
	}
	return ErrInternalServer
}

// 预定义错误, 仅用于 errors.Is 比较
var (
	ErrNotConnectedError       = NewCode(ErrNotConnected)
	ErrOfflineModeError        = NewCode(ErrOfflineMode)
	ErrValidationError         = NewCode(ErrValidation)
	ErrFileNotFoundError       = NewCode(ErrFileNotFound)
	ErrFileTooLargeError       = NewCode(ErrFileTooLarge)
	ErrUploadFailedError       = NewCode(ErrUploadFailed)
	ErrPublicURLError          = NewCode(ErrPublicURLUnavailable)
	ErrStorageUnavailableError = NewCode(ErrStorageUnavailable)
	ErrSessionResolutionError  = NewCode(ErrSessionResolution)
	ErrNoteInsertError         = NewCode(ErrNoteInsert)
	ErrOutboxEntryNotFoundErr  = NewCode(ErrOutboxEntryNotFound)
)

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:            "success",
	ErrInternalServer:     "internal_server_error",
	ErrInvalidParams:      "invalid_params",
	ErrNotFound:           "not_found",
	ErrServiceUnavailable: "service_unavailable",

	ErrValidation:  "validation_failed",
	ErrInvalidEnum: "invalid_enum",
	ErrEmptyBody:   "empty_body",

	ErrNotConnected:       "not_connected",
	ErrOfflineMode:        "offline_mode",
	ErrDatabaseConnection: "database_connection",
	ErrDatabaseQuery:      "database_query",

	ErrFileNotFound:                "file_not_found",
	ErrFileTooLarge:                "file_too_large",
	ErrUploadFailed:                "upload_failed",
	ErrPublicURLUnavailable:        "public_url_unavailable",
	ErrStorageUnavailable:          "storage_unavailable",
	ErrStorageProviderNotSupported: "storage_provider_not_found",
	ErrStorageConfigInvalid:        "storage_config_invalid",

	ErrSessionResolution: "session_resolution",
	ErrTrackResolution:   "track_resolution",
	ErrSeriesResolution:  "series_resolution",
	ErrNoteInsert:        "note_insert",
	ErrRecordCreate:      "record_create",

	ErrPartialWrite: "partial_write",

	ErrCacheUnavailable:    "cache_unavailable",
	ErrCacheCorrupted:      "cache_corrupted",
	ErrOutboxEntryNotFound: "outbox_entry_not_found",

	ErrConfigInvalid: "config_invalid",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}
