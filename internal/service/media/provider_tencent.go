package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/racenotes/config"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
)

// TencentCOSProvider 腾讯云COS提供商实现
type TencentCOSProvider struct {
	client *cos.Client
	config config.StorageConfig
}

// NewTencentCOSProvider 创建腾讯云COS提供商实例
func NewTencentCOSProvider(cfg config.StorageConfig) (*TencentCOSProvider, error) {
	if cfg.Bucket == "" || (cfg.Region == "" && cfg.Endpoint == "") {
		return nil, apperrors.Newf(apperrors.ErrStorageConfigInvalid, "tencent requires bucket and region or endpoint")
	}

	// 构建URL
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	// 创建COS客户端
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})
	client.Conf.EnableCRC = false

	return &TencentCOSProvider{
		client: client,
		config: cfg,
	}, nil
}

// Name 提供商名称
func (p *TencentCOSProvider) Name() string { return "tencent" }

// UploadFile 上传文件到腾讯云COS
func (p *TencentCOSProvider) UploadFile(objectKey string, reader io.Reader, contentType string) error {
	options := &cos.ObjectPutOptions{}
	if contentType != "" {
		options.ObjectPutHeaderOptions = &cos.ObjectPutHeaderOptions{
			ContentType: contentType,
		}
	}

	if _, err := p.client.Object.Put(context.Background(), objectKey, reader, options); err != nil {
		return fmt.Errorf("failed to upload file to tencent cos: %w", err)
	}
	return nil
}

// PublicURL 对象的公开访问地址
func (p *TencentCOSProvider) PublicURL(objectKey string) (string, error) {
	if u, ok := publicURLOverride(p.config, objectKey); ok {
		return u, nil
	}
	u := p.client.Object.GetObjectURL(objectKey)
	if u == nil {
		return "", apperrors.Newf(apperrors.ErrPublicURLUnavailable, "tencent cos returned no url for %s", objectKey)
	}
	return u.String(), nil
}

// DeleteFile 删除腾讯云COS文件
func (p *TencentCOSProvider) DeleteFile(objectKey string) error {
	if _, err := p.client.Object.Delete(context.Background(), objectKey); err != nil {
		return fmt.Errorf("failed to delete file from tencent cos: %w", err)
	}
	return nil
}

// FileExists 检查文件是否存在
func (p *TencentCOSProvider) FileExists(objectKey string) (bool, error) {
	_, err := p.client.Object.Head(context.Background(), objectKey, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence in tencent cos: %w", err)
	}
	return true, nil
}

// TestConnection 测试连接
func (p *TencentCOSProvider) TestConnection() error {
	if _, err := p.client.Bucket.Head(context.Background()); err != nil {
		return fmt.Errorf("failed to test tencent cos connection: %w", err)
	}
	return nil
}
