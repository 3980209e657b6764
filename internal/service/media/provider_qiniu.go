package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/racenotes/config"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
)

// QiniuKodoProvider 七牛云Kodo提供商实现
type QiniuKodoProvider struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	region       *storage.Region
	config       config.StorageConfig
}

// NewQiniuKodoProvider 创建七牛云Kodo提供商实例
// 配置了 region 时直接使用, 否则向七牛查询存储桶所在区域
func NewQiniuKodoProvider(cfg config.StorageConfig) (*QiniuKodoProvider, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, apperrors.Newf(apperrors.ErrStorageConfigInvalid, "qiniu requires bucket, access_key and secret_key")
	}
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)

	var region *storage.Region
	if cfg.Region != "" {
		r, ok := storage.GetRegionByID(storage.RegionID(cfg.Region))
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrStorageConfigInvalid, "unknown qiniu region %q", cfg.Region)
		}
		region = &r
	} else {
		r, err := storage.GetRegion(cfg.AccessKey, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to get qiniu region: %w", err)
		}
		region = r
	}

	// 七牛没有默认的公开域名, 需要配置绑定的下载域名
	bucketDomain := cfg.Endpoint
	if cfg.PublicBaseURL != "" {
		bucketDomain = cfg.PublicBaseURL
	}

	return &QiniuKodoProvider{
		mac:          mac,
		bucketName:   cfg.Bucket,
		bucketDomain: bucketDomain,
		region:       region,
		config:       cfg,
	}, nil
}

// Name 提供商名称
func (p *QiniuKodoProvider) Name() string { return "qiniu" }

func (p *QiniuKodoProvider) storageConfig() *storage.Config {
	return &storage.Config{
		Region:        p.region,
		UseHTTPS:      true,
		UseCdnDomains: false,
	}
}

// UploadFile 上传文件到七牛云Kodo
func (p *QiniuKodoProvider) UploadFile(objectKey string, reader io.Reader, contentType string) error {
	putPolicy := storage.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", p.bucketName, objectKey),
	}
	upToken := putPolicy.UploadToken(p.mac)

	formUploader := storage.NewFormUploader(p.storageConfig())
	ret := storage.PutRet{}

	putExtra := storage.PutExtra{}
	if contentType != "" {
		putExtra.MimeType = contentType
	}

	if err := formUploader.Put(context.Background(), &ret, upToken, objectKey, reader, -1, &putExtra); err != nil {
		return fmt.Errorf("failed to upload file to qiniu kodo: %w", err)
	}
	return nil
}

// PublicURL 基于绑定域名的公开地址, 未配置域名时无法生成
func (p *QiniuKodoProvider) PublicURL(objectKey string) (string, error) {
	if p.bucketDomain == "" {
		return "", apperrors.Newf(apperrors.ErrPublicURLUnavailable, "qiniu bucket %s has no download domain configured", p.bucketName)
	}
	domain := p.bucketDomain
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return storage.MakePublicURL(domain, objectKey), nil
}

// DeleteFile 删除七牛云Kodo文件
func (p *QiniuKodoProvider) DeleteFile(objectKey string) error {
	bucketManager := storage.NewBucketManager(p.mac, p.storageConfig())
	if err := bucketManager.Delete(p.bucketName, objectKey); err != nil {
		return fmt.Errorf("failed to delete file from qiniu kodo: %w", err)
	}
	return nil
}

// FileExists 检查文件是否存在
func (p *QiniuKodoProvider) FileExists(objectKey string) (bool, error) {
	bucketManager := storage.NewBucketManager(p.mac, p.storageConfig())
	if _, err := bucketManager.Stat(p.bucketName, objectKey); err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence in qiniu kodo: %w", err)
	}
	return true, nil
}

// TestConnection 测试连接
func (p *QiniuKodoProvider) TestConnection() error {
	bucketManager := storage.NewBucketManager(p.mac, p.storageConfig())

	// 尝试列出存储桶中的文件（限制为1个）
	if _, _, _, _, err := bucketManager.ListFiles(p.bucketName, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
	}
	return nil
}
