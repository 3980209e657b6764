package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/metrics"
)

// DefaultMaxFileSize 单个文件的默认大小上限 (100MB)
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// Service 附件上传服务
type Service struct {
	provider Provider
	maxSize  int64
	clock    func() time.Time
	metrics  *metrics.Metrics
}

// Option 上传服务可选配置
type Option func(*Service)

// WithClock 指定生成存储路径时使用的时钟
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService 创建上传服务
// provider 为nil时所有上传失败, 批量上传全部退化为本地引用
func NewService(provider Provider, cfg config.StorageConfig, opts ...Option) *Service {
	maxSize := cfg.MaxFileSizeBytes()
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	s := &Service{
		provider: provider,
		maxSize:  maxSize,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromConfig 根据配置创建提供商和上传服务
func NewServiceFromConfig(cfg config.StorageConfig, opts ...Option) (*Service, error) {
	factory := &ProviderFactory{}
	provider, err := factory.CreateProvider(cfg)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		logger.Warn("[媒体上传] 未配置对象存储, 附件将以本地路径引用保存")
	} else {
		logger.Infof("[媒体上传] 使用对象存储: %s, 存储桶: %s", provider.Name(), cfg.Bucket)
	}
	return NewService(provider, cfg, opts...), nil
}

// Available 是否配置了对象存储
func (s *Service) Available() bool {
	return s.provider != nil
}

// Provider 当前提供商, 未配置时为nil
func (s *Service) Provider() Provider {
	return s.provider
}

// MaxFileSize 单个文件大小上限(字节)
func (s *Service) MaxFileSize() int64 {
	return s.maxSize
}

// StorageKey 生成对象键: {videos|images|documents|files}/{YYYY}/{MM}/{name}_{YYYYMMDD_HHMMSS}{ext}
func (s *Service) StorageKey(path string) string {
	now := s.clock()
	base := filepath.Base(filepath.FromSlash(path))
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return fmt.Sprintf("%s/%s/%s/%s_%s%s",
		folderFor(database.MediaTypeFromPath(base)),
		now.Format("2006"),
		now.Format("01"),
		name,
		now.Format("20060102_150405"),
		ext,
	)
}

func folderFor(mediaType database.MediaType) string {
	switch mediaType {
	case database.MediaTypeVideo:
		return "videos"
	case database.MediaTypeImage:
		return "images"
	case database.MediaTypeDocument:
		return "documents"
	default:
		return "files"
	}
}

// UploadFile 上传单个文件并返回公开地址
// 返回:
//   - ErrFileNotFound: 源文件不存在
//   - ErrFileTooLarge: 超过大小上限
//   - ErrStorageUnavailable: 未配置对象存储
//   - ErrUploadFailed: 存储写入失败, 或写入成功但无法生成公开地址
func (s *Service) UploadFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.Newf(apperrors.ErrFileNotFound, "%s", path)
		}
		return "", apperrors.Wrap(apperrors.ErrUploadFailed, err)
	}
	if info.IsDir() {
		return "", apperrors.Newf(apperrors.ErrFileNotFound, "%s is a directory", path)
	}
	if info.Size() > s.maxSize {
		return "", apperrors.Newf(apperrors.ErrFileTooLarge, "%.1fMB (max: %dMB)",
			float64(info.Size())/(1024*1024), s.maxSize/(1024*1024))
	}
	if s.provider == nil {
		return "", apperrors.NewCode(apperrors.ErrStorageUnavailable)
	}

	key := s.StorageKey(path)
	logger.Infof("[媒体上传] 开始上传 %s -> %s", filepath.Base(path), key)

	file, err := os.Open(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrUploadFailed, err)
	}
	defer file.Close()

	if err := s.provider.UploadFile(key, file, ContentType(path)); err != nil {
		logger.Errorf("[媒体上传] 上传失败: %s, 错误: %v", key, err)
		return "", apperrors.Wrap(apperrors.ErrUploadFailed, err)
	}

	publicURL, err := s.provider.PublicURL(key)
	if err != nil || publicURL == "" {
		if err == nil {
			err = apperrors.NewCode(apperrors.ErrPublicURLUnavailable)
		}
		logger.Errorf("[媒体上传] 无法获取公开地址: %s, 错误: %v", key, err)
		return "", apperrors.Wrap(apperrors.ErrUploadFailed, err)
	}

	logger.Infof("[媒体上传] 上传完成: %s", publicURL)
	return publicURL, nil
}

// UploadMultipleFiles 逐个上传文件, 从不返回错误
// 上传成功的文件记录云端地址; 失败的文件退化为 local://<原路径> 引用
// 已带有地址的附件不再上传, 原样保留
func (s *Service) UploadMultipleFiles(files []database.MediaFile) []database.MediaFile {
	results := make([]database.MediaFile, 0, len(files))
	for _, file := range files {
		result := file
		if file.CloudURL != "" {
			if result.MediaType == "" {
				result.MediaType = result.ResolvedMediaType()
			}
			if result.StorageType == "" {
				result.StorageType = database.StorageTypeCloud
				if strings.HasPrefix(file.CloudURL, database.LocalURLPrefix) {
					result.StorageType = database.StorageTypeLocal
				}
			}
			results = append(results, result)
			continue
		}
		if result.Name == "" {
			result.Name = filepath.Base(file.Path)
		}
		if result.MediaType == "" {
			result.MediaType = result.ResolvedMediaType()
		}
		if result.Size == 0 {
			if info, err := os.Stat(file.Path); err == nil {
				result.Size = info.Size()
			}
		}

		start := time.Now()
		url, err := s.UploadFile(file.Path)
		if err != nil {
			logger.Warnf("[媒体上传] %s 上传失败, 保留本地引用: %v", result.Name, err)
			result.CloudURL = database.LocalURLPrefix + file.Path
			result.StorageType = database.StorageTypeLocal
			s.metrics.UploadFinished("local_fallback", 0)
		} else {
			result.CloudURL = url
			result.StorageType = database.StorageTypeCloud
			s.metrics.UploadFinished("cloud", time.Since(start).Seconds())
		}
		results = append(results, result)
	}
	return results
}

// FileInfo 读取本地文件信息, 构造待上传的附件描述
func (s *Service) FileInfo(path string) (*database.MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Newf(apperrors.ErrFileNotFound, "%s", path)
		}
		return nil, err
	}
	name := filepath.Base(path)
	return &database.MediaFile{
		Path:      path,
		Name:      name,
		Size:      info.Size(),
		Ext:       strings.ToLower(filepath.Ext(name)),
		MediaType: database.MediaTypeFromPath(name),
	}, nil
}

// IsSupportedFile 扩展名是否属于支持的附件类型
func (s *Service) IsSupportedFile(path string) bool {
	return database.IsKnownExtension(path)
}
