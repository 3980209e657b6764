package media

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/racenotes/config"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
)

// AliyunOSSProvider 阿里云OSS提供商实现
type AliyunOSSProvider struct {
	client   *oss.Client
	bucket   *oss.Bucket
	endpoint string
	config   config.StorageConfig
}

// NewAliyunOSSProvider 创建阿里云OSS提供商实例
func NewAliyunOSSProvider(cfg config.StorageConfig) (*AliyunOSSProvider, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, apperrors.Newf(apperrors.ErrStorageConfigInvalid, "aliyun requires bucket, access_key and secret_key")
	}

	// 构建endpoint
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}

	// 创建OSS客户端
	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	// 获取存储桶
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &AliyunOSSProvider{
		client:   client,
		bucket:   bucket,
		endpoint: endpoint,
		config:   cfg,
	}, nil
}

// Name 提供商名称
func (p *AliyunOSSProvider) Name() string { return "aliyun" }

// UploadFile 上传文件到阿里云OSS
func (p *AliyunOSSProvider) UploadFile(objectKey string, reader io.Reader, contentType string) error {
	options := []oss.Option{}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}

	if err := p.bucket.PutObject(objectKey, reader, options...); err != nil {
		return fmt.Errorf("failed to upload file to aliyun oss: %w", err)
	}
	return nil
}

// PublicURL 虚拟主机风格的对象地址: https://{bucket}.{endpoint host}/{key}
func (p *AliyunOSSProvider) PublicURL(objectKey string) (string, error) {
	if u, ok := publicURLOverride(p.config, objectKey); ok {
		return u, nil
	}

	endpoint := p.endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", apperrors.Newf(apperrors.ErrPublicURLUnavailable, "invalid aliyun endpoint %q", p.endpoint)
	}
	return fmt.Sprintf("%s://%s.%s/%s", u.Scheme, p.config.Bucket, u.Host, strings.TrimLeft(objectKey, "/")), nil
}

// DeleteFile 删除阿里云OSS文件
func (p *AliyunOSSProvider) DeleteFile(objectKey string) error {
	if err := p.bucket.DeleteObject(objectKey); err != nil {
		return fmt.Errorf("failed to delete file from aliyun oss: %w", err)
	}
	return nil
}

// FileExists 检查文件是否存在
func (p *AliyunOSSProvider) FileExists(objectKey string) (bool, error) {
	exists, err := p.bucket.IsObjectExist(objectKey)
	if err != nil {
		return false, fmt.Errorf("failed to check file existence in aliyun oss: %w", err)
	}
	return exists, nil
}

// TestConnection 测试连接
func (p *AliyunOSSProvider) TestConnection() error {
	if _, err := p.client.GetBucketInfo(p.config.Bucket); err != nil {
		return fmt.Errorf("failed to test aliyun oss connection: %w", err)
	}
	return nil
}
