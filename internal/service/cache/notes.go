package cache

import (
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/weiwangfds/racenotes/internal/database"
	"github.com/weiwangfds/racenotes/internal/logger"
)

// 笔记键: note:{创建时间}:{id}, 键序即创建时间顺序
const (
	notePrefix    = "note:"
	noteKeyLayout = "20060102T150405.000000000"
)

func noteKey(view *database.NoteView) []byte {
	return []byte(notePrefix + view.CreatedAt.UTC().Format(noteKeyLayout) + ":" + view.ID)
}

// ReplaceNotes 用最新读取的笔记整体替换镜像, 然后裁剪到保留条数并记录同步时间
func (c *OfflineCache) ReplaceNotes(notes []database.NoteView) {
	if _, err := deletePrefix(c.notes, []byte(notePrefix)); err != nil {
		logger.Errorf("[离线缓存] 清空笔记镜像失败: %v", err)
		return
	}

	wb := c.notes.NewWriteBatch()
	for i := range notes {
		data, err := json.Marshal(&notes[i])
		if err != nil {
			logger.Warnf("[离线缓存] 笔记 %s 序列化失败: %v", notes[i].ID, err)
			continue
		}
		if err := wb.Set(noteKey(&notes[i]), data); err != nil {
			wb.Cancel()
			logger.Errorf("[离线缓存] 写入笔记镜像失败: %v", err)
			return
		}
	}
	if err := wb.Flush(); err != nil {
		logger.Errorf("[离线缓存] 写入笔记镜像失败: %v", err)
		return
	}

	evicted := c.trimNotes()
	c.stampLastSync()
	c.metrics.CacheRefreshed(notesStore, len(notes)-evicted)
	logger.Debugf("[离线缓存] 已缓存 %d 条笔记, 裁剪 %d 条", len(notes)-evicted, evicted)
}

// trimNotes 只保留最新的 sizeLimit 条笔记, 返回删除的条数
func (c *OfflineCache) trimNotes() int {
	keys, err := listKeys(c.notes, []byte(notePrefix))
	if err != nil {
		logger.Errorf("[离线缓存] 裁剪笔记镜像失败: %v", err)
		return 0
	}
	overflow := len(keys) - c.sizeLimit
	if overflow <= 0 {
		return 0
	}

	// 键按创建时间升序, 前 overflow 个即最旧的笔记
	evicted, err := deleteKeys(c.notes, keys[:overflow])
	if err != nil {
		logger.Errorf("[离线缓存] 裁剪笔记镜像失败: %v", err)
		return 0
	}
	return evicted
}

// CachedNotes 按创建时间倒序分页读取镜像
func (c *OfflineCache) CachedNotes(limit, offset int) []database.NoteView {
	return c.scanNotes(nil, limit, offset)
}

// SearchCachedNotes 在镜像中按正文做不区分大小写的子串匹配, 按创建时间倒序
func (c *OfflineCache) SearchCachedNotes(text string, limit int) []database.NoteView {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return c.CachedNotes(limit, 0)
	}
	return c.scanNotes(func(view *database.NoteView) bool {
		return strings.Contains(strings.ToLower(view.Body), needle)
	}, limit, 0)
}

// NoteCount 镜像中的笔记条数
func (c *OfflineCache) NoteCount() int {
	keys, err := listKeys(c.notes, []byte(notePrefix))
	if err != nil {
		logger.Errorf("[离线缓存] 统计笔记失败: %v", err)
		return 0
	}
	return len(keys)
}

func (c *OfflineCache) scanNotes(match func(*database.NoteView) bool, limit, offset int) []database.NoteView {
	views := []database.NoteView{}
	if limit <= 0 {
		limit = c.sizeLimit
	}
	if offset < 0 {
		offset = 0
	}

	err := c.notes.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(notePrefix)
		skipped := 0
		// 反向迭代从前缀范围之后的第一个位置开始
		for it.Seek(append([]byte(notePrefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			var view database.NoteView
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &view)
			})
			if err != nil {
				logger.Warnf("[离线缓存] 跳过无法解析的笔记 %s: %v", it.Item().Key(), err)
				continue
			}
			if match != nil && !match(&view) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			views = append(views, view)
			if len(views) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		logger.Errorf("[离线缓存] 读取笔记镜像失败: %v", err)
		return []database.NoteView{}
	}
	return views
}
