package cache

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/weiwangfds/racenotes/internal/database"
	"github.com/weiwangfds/racenotes/internal/logger"
)

// 元数据表, 每张表保存为一个键
const (
	tableTracks   = "tracks"
	tableSeries   = "series"
	tableDrivers  = "drivers"
	tableSessions = "sessions"
	tableTags     = "tags"

	tablePrefix = "table:"
	syncInfoKey = "sync_info"
)

// Metadata 元数据镜像
type Metadata struct {
	Tracks   []database.Track   `json:"tracks"`
	Series   []database.Series  `json:"series"`
	Drivers  []database.Driver  `json:"drivers"`
	Sessions []database.Session `json:"sessions"`
	Tags     []database.Tag     `json:"tags"`
}

type syncInfo struct {
	LastSync time.Time `json:"last_sync"`
}

func putTable[T any](c *OfflineCache, table string, rows []T) {
	if rows == nil {
		rows = []T{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		logger.Errorf("[离线缓存] 序列化 %s 失败: %v", table, err)
		return
	}
	err = c.metadata.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tablePrefix+table), data)
	})
	if err != nil {
		logger.Errorf("[离线缓存] 写入 %s 失败: %v", table, err)
		return
	}
	c.metrics.CacheRefreshed(table, len(rows))
}

func getTable[T any](c *OfflineCache, table string) []T {
	rows := []T{}
	err := c.metadata.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tablePrefix + table))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rows)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logger.Errorf("[离线缓存] 读取 %s 失败: %v", table, err)
		}
		return []T{}
	}
	return rows
}

// ReplaceTracks 整体替换赛道镜像
func (c *OfflineCache) ReplaceTracks(tracks []database.Track) { putTable(c, tableTracks, tracks) }

// ReplaceSeries 整体替换系列赛镜像
func (c *OfflineCache) ReplaceSeries(series []database.Series) { putTable(c, tableSeries, series) }

// ReplaceDrivers 整体替换车手镜像
func (c *OfflineCache) ReplaceDrivers(drivers []database.Driver) { putTable(c, tableDrivers, drivers) }

// ReplaceSessions 整体替换赛段镜像
func (c *OfflineCache) ReplaceSessions(sessions []database.Session) {
	putTable(c, tableSessions, sessions)
}

// ReplaceTags 整体替换标签镜像
func (c *OfflineCache) ReplaceTags(tags []database.Tag) { putTable(c, tableTags, tags) }

// CachedTracks 缓存的赛道
func (c *OfflineCache) CachedTracks() []database.Track { return getTable[database.Track](c, tableTracks) }

// CachedSeries 缓存的系列赛
func (c *OfflineCache) CachedSeries() []database.Series {
	return getTable[database.Series](c, tableSeries)
}

// CachedDrivers 缓存的车手
func (c *OfflineCache) CachedDrivers() []database.Driver {
	return getTable[database.Driver](c, tableDrivers)
}

// CachedSessions 缓存的赛段
func (c *OfflineCache) CachedSessions() []database.Session {
	return getTable[database.Session](c, tableSessions)
}

// CachedTags 缓存的标签
func (c *OfflineCache) CachedTags() []database.Tag { return getTable[database.Tag](c, tableTags) }

// ReplaceMetadata 替换全部元数据镜像
func (c *OfflineCache) ReplaceMetadata(md Metadata) {
	c.ReplaceTracks(md.Tracks)
	c.ReplaceSeries(md.Series)
	c.ReplaceDrivers(md.Drivers)
	c.ReplaceSessions(md.Sessions)
	c.ReplaceTags(md.Tags)
}

// CachedMetadata 读取全部元数据镜像
func (c *OfflineCache) CachedMetadata() Metadata {
	return Metadata{
		Tracks:   c.CachedTracks(),
		Series:   c.CachedSeries(),
		Drivers:  c.CachedDrivers(),
		Sessions: c.CachedSessions(),
		Tags:     c.CachedTags(),
	}
}

func (c *OfflineCache) stampLastSync() {
	data, err := json.Marshal(syncInfo{LastSync: c.clock().UTC()})
	if err != nil {
		logger.Errorf("[离线缓存] 记录同步时间失败: %v", err)
		return
	}
	err = c.metadata.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(syncInfoKey), data)
	})
	if err != nil {
		logger.Errorf("[离线缓存] 记录同步时间失败: %v", err)
	}
}

// LastSync 最近一次成功刷新笔记镜像的时间
func (c *OfflineCache) LastSync() (time.Time, bool) {
	var info syncInfo
	err := c.metadata.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(syncInfoKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logger.Errorf("[离线缓存] 读取同步时间失败: %v", err)
		}
		return time.Time{}, false
	}
	return info.LastSync, true
}

// IsStale 距上次同步超过 maxAge 或从未同步时返回true, maxAge<=0 时使用配置的阈值
// 仅用于展示, 不会触发刷新
func (c *OfflineCache) IsStale(maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = c.maxAge
	}
	last, ok := c.LastSync()
	if !ok {
		return true
	}
	return c.clock().Sub(last) > maxAge
}
