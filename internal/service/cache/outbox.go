package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/logger"
)

// outbox 键: outbox:{uuid v7}, 键序即入队顺序
const outboxPrefix = "outbox:"

// SyncStatus outbox 条目的同步状态
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
)

// PendingNote 离线期间提交的笔记
type PendingNote struct {
	Note       database.NoteCreate  `json:"note"`
	Context    database.ContextInfo `json:"context"`
	Author     string               `json:"author,omitempty"`
	MediaFiles []database.MediaFile `json:"media_files,omitempty"`
}

// OutboxEntry outbox 条目
type OutboxEntry struct {
	ID         string      `json:"id"`
	Payload    PendingNote `json:"payload"`
	QueuedAt   time.Time   `json:"queued_at"`
	SyncStatus SyncStatus  `json:"sync_status"`
	SyncedAt   *time.Time  `json:"synced_at,omitempty"`
}

// QueueNote 将笔记加入 outbox, 状态为 pending
// 入队失败会返回错误, 调用方需要告知用户笔记未被保存
func (c *OfflineCache) QueueNote(payload PendingNote) (*OutboxEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCacheUnavailable, err)
	}
	entry := &OutboxEntry{
		ID:         id.String(),
		Payload:    payload,
		QueuedAt:   c.clock().UTC(),
		SyncStatus: SyncStatusPending,
	}
	if err := c.putEntry(entry); err != nil {
		logger.Errorf("[离线缓存] 笔记入队失败: %v", err)
		return nil, apperrors.Wrap(apperrors.ErrCacheUnavailable, err)
	}

	logger.Infof("[离线缓存] 笔记已加入 outbox: %s", entry.ID)
	c.metrics.SetOutboxPending(c.PendingCount())
	return entry, nil
}

func (c *OfflineCache) putEntry(entry *OutboxEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode outbox entry: %w", err)
	}
	return c.outbox.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(outboxPrefix+entry.ID), data)
	})
}

// OutboxEntries 按入队顺序列出全部条目
func (c *OfflineCache) OutboxEntries() []OutboxEntry {
	entries := []OutboxEntry{}
	err := c.outbox.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(outboxPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry OutboxEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logger.Warnf("[离线缓存] 跳过无法解析的 outbox 条目 %s: %v", it.Item().Key(), err)
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		logger.Errorf("[离线缓存] 读取 outbox 失败: %v", err)
		return []OutboxEntry{}
	}
	return entries
}

// PendingNotes 待同步的条目
func (c *OfflineCache) PendingNotes() []OutboxEntry {
	pending := []OutboxEntry{}
	for _, entry := range c.OutboxEntries() {
		if entry.SyncStatus == SyncStatusPending {
			pending = append(pending, entry)
		}
	}
	return pending
}

// PendingCount 待同步条目数
func (c *OfflineCache) PendingCount() int {
	return len(c.PendingNotes())
}

// MarkNoteSynced 将条目标记为已同步, 条目仍保留在 outbox 中直到 ClearSyncedNotes
func (c *OfflineCache) MarkNoteSynced(id string) error {
	key := []byte(outboxPrefix + id)
	err := c.outbox.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var entry OutboxEntry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return err
		}
		if entry.SyncStatus == SyncStatusSynced {
			return nil
		}

		now := c.clock().UTC()
		entry.SyncStatus = SyncStatusSynced
		entry.SyncedAt = &now
		data, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.Newf(apperrors.ErrOutboxEntryNotFound, "%s", id)
	}
	if err != nil {
		logger.Errorf("[离线缓存] 标记同步失败: %s, 错误: %v", id, err)
		return apperrors.Wrap(apperrors.ErrCacheUnavailable, err)
	}

	c.metrics.SetOutboxPending(c.PendingCount())
	return nil
}

// ClearSyncedNotes 删除已同步的条目, 返回删除数量
func (c *OfflineCache) ClearSyncedNotes() int {
	var keys [][]byte
	for _, entry := range c.OutboxEntries() {
		if entry.SyncStatus == SyncStatusSynced {
			keys = append(keys, []byte(outboxPrefix+entry.ID))
		}
	}
	removed, err := deleteKeys(c.outbox, keys)
	if err != nil {
		logger.Errorf("[离线缓存] 清理已同步条目失败: %v", err)
		return 0
	}
	if removed > 0 {
		logger.Infof("[离线缓存] 已清理 %d 条已同步条目", removed)
	}
	return removed
}
