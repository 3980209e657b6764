// Package media 提供附件上传服务
// 将本地文件上传到对象存储并返回公开地址, 支持阿里云OSS、腾讯云COS、七牛云Kodo以及本地目录
package media

import (
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/weiwangfds/racenotes/config"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
)

// Provider 对象存储提供商接口
type Provider interface {
	// Name 提供商名称
	Name() string

	// UploadFile 上传文件
	UploadFile(objectKey string, reader io.Reader, contentType string) error

	// PublicURL 获取对象的公开访问地址
	PublicURL(objectKey string) (string, error)

	// DeleteFile 删除文件
	DeleteFile(objectKey string) error

	// FileExists 检查文件是否存在
	FileExists(objectKey string) (bool, error)

	// TestConnection 测试连接
	TestConnection() error
}

// ProviderFactory 对象存储提供商工厂
type ProviderFactory struct{}

// CreateProvider 根据配置创建提供商实例
// provider 为空时返回 (nil, nil), 表示未配置对象存储
func (f *ProviderFactory) CreateProvider(cfg config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "aliyun":
		return NewAliyunOSSProvider(cfg)
	case "tencent":
		return NewTencentCOSProvider(cfg)
	case "qiniu":
		return NewQiniuKodoProvider(cfg)
	case "local":
		return NewLocalProvider(cfg)
	default:
		return nil, apperrors.Newf(apperrors.ErrStorageProviderNotSupported, "provider %q", cfg.Provider)
	}
}

// publicURLOverride 配置了 public_base_url 时使用其拼接对象地址
func publicURLOverride(cfg config.StorageConfig, objectKey string) (string, bool) {
	if cfg.PublicBaseURL == "" {
		return "", false
	}
	return joinURL(cfg.PublicBaseURL, objectKey), true
}

func joinURL(base, objectKey string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(objectKey, "/")
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".csv":  "text/csv",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ContentType 根据扩展名获取内容类型, 未知类型返回 application/octet-stream
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
