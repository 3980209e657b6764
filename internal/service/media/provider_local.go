package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/weiwangfds/racenotes/config"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
)

// LocalProvider 本地目录存储, 对象通过 /media 静态路由对外提供
type LocalProvider struct {
	root   string
	config config.StorageConfig
}

// NewLocalProvider 创建本地存储提供商
func NewLocalProvider(cfg config.StorageConfig) (*LocalProvider, error) {
	if cfg.LocalDir == "" {
		return nil, apperrors.Newf(apperrors.ErrStorageConfigInvalid, "local provider requires local_dir")
	}
	root, err := filepath.Abs(cfg.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local dir: %w", err)
	}
	return &LocalProvider{root: root, config: cfg}, nil
}

// Name 提供商名称
func (p *LocalProvider) Name() string { return "local" }

// Root 存储根目录
func (p *LocalProvider) Root() string { return p.root }

// objectPath 对象键对应的文件路径, 拒绝跳出根目录的键
func (p *LocalProvider) objectPath(objectKey string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(objectKey))
	full := filepath.Join(p.root, clean)
	if !strings.HasPrefix(full, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %s", objectKey)
	}
	return full, nil
}

// UploadFile 写入本地目录
func (p *LocalProvider) UploadFile(objectKey string, reader io.Reader, _ string) error {
	path, err := p.objectPath(objectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// PublicURL 需要配置 public_base_url, 否则无法生成地址
func (p *LocalProvider) PublicURL(objectKey string) (string, error) {
	if u, ok := publicURLOverride(p.config, objectKey); ok {
		return u, nil
	}
	return "", apperrors.Newf(apperrors.ErrPublicURLUnavailable, "local storage has no public_base_url")
}

// DeleteFile 删除本地文件, 文件不存在时视为成功
func (p *LocalProvider) DeleteFile(objectKey string) error {
	path, err := p.objectPath(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// FileExists 检查文件是否存在
func (p *LocalProvider) FileExists(objectKey string) (bool, error) {
	path, err := p.objectPath(objectKey)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// TestConnection 检查根目录可写
func (p *LocalProvider) TestConnection() error {
	f, err := os.CreateTemp(p.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("local dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
