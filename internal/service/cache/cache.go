// Package cache 离线缓存
// 使用三个独立的 badger 库: notes 保存笔记镜像, metadata 保存元数据镜像和最近同步时间, outbox 保存离线期间提交的笔记.
// 缓存读写失败只记录日志并返回空结果, 不会影响远程数据路径.
package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/weiwangfds/racenotes/config"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/metrics"
)

const (
	// DefaultSizeLimit 笔记镜像默认保留条数
	DefaultSizeLimit = 1000
	// DefaultMaxAge 默认过期阈值
	DefaultMaxAge = 24 * time.Hour
)

const (
	notesStore    = "notes"
	metadataStore = "metadata"
	outboxStore   = "outbox"
)

// OfflineCache 离线缓存
type OfflineCache struct {
	notes    *badger.DB
	metadata *badger.DB
	outbox   *badger.DB

	sizeLimit int
	maxAge    time.Duration
	clock     func() time.Time
	metrics   *metrics.Metrics
}

// Option 缓存可选配置
type Option func(*OfflineCache)

// WithClock 指定时钟, 用于同步时间和入队时间
func WithClock(clock func() time.Time) Option {
	return func(c *OfflineCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *OfflineCache) {
		c.metrics = m
	}
}

// Open 打开 cfg.Dir 下的三个缓存库, cfg.InMemory 为true时全部在内存中创建
func Open(cfg config.CacheConfig, opts ...Option) (*OfflineCache, error) {
	c := &OfflineCache{
		sizeLimit: cfg.SizeLimit,
		maxAge:    cfg.MaxAge(),
		clock:     time.Now,
	}
	if c.sizeLimit <= 0 {
		c.sizeLimit = DefaultSizeLimit
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultMaxAge
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if c.notes, err = openStore(cfg, notesStore); err != nil {
		return nil, err
	}
	if c.metadata, err = openStore(cfg, metadataStore); err != nil {
		c.notes.Close()
		return nil, err
	}
	if c.outbox, err = openStore(cfg, outboxStore); err != nil {
		c.notes.Close()
		c.metadata.Close()
		return nil, err
	}

	if cfg.InMemory {
		logger.Info("[离线缓存] 使用内存缓存")
	} else {
		logger.Infof("[离线缓存] 缓存目录: %s", cfg.Dir)
	}
	c.metrics.SetOutboxPending(c.PendingCount())
	return c, nil
}

// OpenOrMemory 打开磁盘缓存, 失败时退化为内存缓存
// 损坏的缓存目录不应阻止服务启动
func OpenOrMemory(cfg config.CacheConfig, opts ...Option) *OfflineCache {
	c, err := Open(cfg, opts...)
	if err == nil {
		return c
	}
	logger.Errorf("[离线缓存] 打开缓存目录失败, 改用内存缓存: %v", err)

	memCfg := cfg
	memCfg.InMemory = true
	c, err = Open(memCfg, opts...)
	if err != nil {
		// 内存模式只会因资源耗尽失败
		logger.Fatalf("[离线缓存] 无法创建内存缓存: %v", err)
	}
	return c
}

func openStore(cfg config.CacheConfig, name string) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, apperrors.Newf(apperrors.ErrCacheUnavailable, "cache dir is empty")
		}
		opts = badger.DefaultOptions(filepath.Join(cfg.Dir, name))
		opts.ValueLogFileSize = 16 << 20
		opts.SyncWrites = name == outboxStore
	}
	opts.MemTableSize = 16 << 20
	opts.Logger = badgerLogger{store: name}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCacheUnavailable, fmt.Errorf("failed to open %s store: %w", name, err))
	}
	return db, nil
}

// SizeLimit 笔记镜像保留条数
func (c *OfflineCache) SizeLimit() int {
	return c.sizeLimit
}

// MaxAge 过期阈值
func (c *OfflineCache) MaxAge() time.Duration {
	return c.maxAge
}

// Status 缓存概况
type Status struct {
	Notes    int        `json:"notes"`
	Pending  int        `json:"pending"`
	Synced   int        `json:"synced"`
	LastSync *time.Time `json:"last_sync,omitempty"`
	Stale    bool       `json:"stale"`
}

// Status 统计缓存中的笔记数量、outbox 状态和同步时间
func (c *OfflineCache) Status() Status {
	status := Status{
		Notes: c.NoteCount(),
		Stale: c.IsStale(0),
	}
	for _, entry := range c.OutboxEntries() {
		if entry.SyncStatus == SyncStatusPending {
			status.Pending++
		} else {
			status.Synced++
		}
	}
	if last, ok := c.LastSync(); ok {
		status.LastSync = &last
	}
	return status
}

// ClearAll 清空三个缓存库
func (c *OfflineCache) ClearAll() error {
	var errs []error
	for name, db := range c.stores() {
		if _, err := deletePrefix(db, nil); err != nil {
			logger.Errorf("[离线缓存] 清空 %s 失败: %v", name, err)
			errs = append(errs, fmt.Errorf("failed to clear %s store: %w", name, err))
		}
	}
	c.metrics.SetOutboxPending(c.PendingCount())
	if len(errs) > 0 {
		return apperrors.Wrap(apperrors.ErrCacheUnavailable, errors.Join(errs...))
	}
	logger.Info("[离线缓存] 已清空全部缓存")
	return nil
}

// Close 关闭三个缓存库
func (c *OfflineCache) Close() error {
	var errs []error
	for name, db := range c.stores() {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s store: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *OfflineCache) stores() map[string]*badger.DB {
	return map[string]*badger.DB{
		notesStore:    c.notes,
		metadataStore: c.metadata,
		outboxStore:   c.outbox,
	}
}

// listKeys 按键序列出前缀下的全部键
func listKeys(db *badger.DB, prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// deleteKeys 批量删除键
func deleteKeys(db *badger.DB, keys [][]byte) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	wb := db.NewWriteBatch()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			wb.Cancel()
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// deletePrefix 删除前缀下的全部键, prefix 为nil时清空整个库
func deletePrefix(db *badger.DB, prefix []byte) (int, error) {
	keys, err := listKeys(db, prefix)
	if err != nil {
		return 0, err
	}
	return deleteKeys(db, keys)
}

// badgerLogger 将 badger 内部日志转发到应用日志
type badgerLogger struct {
	store string
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	logger.WithField("store", l.store).Errorf("[离线缓存] "+strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	logger.WithField("store", l.store).Warnf("[离线缓存] "+strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	logger.WithField("store", l.store).Debugf("[离线缓存] "+strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	logger.WithField("store", l.store).Debugf("[离线缓存] "+strings.TrimSpace(format), args...)
}
