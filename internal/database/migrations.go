package database

import (
	"fmt"

	"github.com/weiwangfds/racenotes/internal/logger"
	"gorm.io/gorm"
)

// NoteViewName 笔记只读视图名称
const NoteViewName = "note_view"

// Migrate 执行远程数据库迁移
// 创建全部表结构、唯一约束以及 note_view 视图
func Migrate(db *gorm.DB) error {
	logger.Info("[数据库] 开始执行数据库迁移...")

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	if err := CreateNoteView(db); err != nil {
		return err
	}

	logger.Info("[数据库] 数据库迁移完成")
	return nil
}

// createIndexes 创建模型标签无法表达的复合索引
func createIndexes(db *gorm.DB) error {
	migrator := db.Migrator()
	indexes := []struct {
		model interface{}
		name  string
		sql   string
	}{
		// 赛段按赛道+系列赛查询当天记录
		{&Session{}, "idx_session_track_series", "CREATE INDEX idx_session_track_series ON session(track_id, series_id, date)"},
		// 信息流按创建时间倒序读取
		{&Note{}, "idx_note_session_created", "CREATE INDEX idx_note_session_created ON note(session_id, created_at)"},
	}

	for _, idx := range indexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := db.Exec(idx.sql).Error; err != nil {
			logger.Errorf("[数据库] 创建索引失败: %s, 错误: %v", idx.name, err)
			return err
		}
	}
	return nil
}

// noteViewSelect 视图主体, 两种方言共用连接部分, 聚合列按方言替换
const noteViewSelect = `SELECT
	n.id, n.body, n.shared, n.category, n.created_by, n.created_at, n.updated_at,
	n.driver_id, n.session_id,
	d.name AS driver_name,
	s.date AS session_date,
	s.session AS session_type,
	s.track_id, s.series_id,
	t.name AS track_name,
	t.type AS track_type,
	sr.name AS series_name,
	%s
FROM note n
LEFT JOIN driver d ON d.id = n.driver_id
LEFT JOIN session s ON s.id = n.session_id
LEFT JOIN track t ON t.id = s.track_id
LEFT JOIN series sr ON sr.id = s.series_id`

const sqliteAggregates = `(SELECT json_group_array(tg.label) FROM note_tag nt JOIN tag tg ON tg.id = nt.tag_id WHERE nt.note_id = n.id) AS tags,
	(SELECT json_group_array(json_object('file_url', m.file_url, 'media_type', m.media_type, 'filename', m.filename))
		FROM media m WHERE m.note_id = n.id) AS media_files,
	(SELECT json_group_array(m.file_url) FROM media m WHERE m.note_id = n.id) AS media_urls`

const mysqlAggregates = `COALESCE((SELECT JSON_ARRAYAGG(tg.label) FROM note_tag nt JOIN tag tg ON tg.id = nt.tag_id WHERE nt.note_id = n.id), JSON_ARRAY()) AS tags,
	COALESCE((SELECT JSON_ARRAYAGG(JSON_OBJECT('file_url', m.file_url, 'media_type', m.media_type, 'filename', m.filename))
		FROM media m WHERE m.note_id = n.id), JSON_ARRAY()) AS media_files,
	COALESCE((SELECT JSON_ARRAYAGG(m.file_url) FROM media m WHERE m.note_id = n.id), JSON_ARRAY()) AS media_urls`

// CreateNoteView 按方言(重新)创建 note_view
// media_files 为结构化附件数组, media_urls 为旧版的URL平铺数组
func CreateNoteView(db *gorm.DB) error {
	var ddl string
	if IsMySQL(db) {
		ddl = "CREATE OR REPLACE VIEW " + NoteViewName + " AS " + fmt.Sprintf(noteViewSelect, mysqlAggregates)
	} else {
		if err := db.Exec("DROP VIEW IF EXISTS " + NoteViewName).Error; err != nil {
			return err
		}
		ddl = "CREATE VIEW " + NoteViewName + " AS " + fmt.Sprintf(noteViewSelect, sqliteAggregates)
	}

	if err := db.Exec(ddl).Error; err != nil {
		logger.Errorf("[数据库] 创建视图 %s 失败: %v", NoteViewName, err)
		return err
	}
	return nil
}

// SeedDefaultTags 写入默认标签, 已存在的标签保持不变
func SeedDefaultTags(db *gorm.DB, labels []string) error {
	logger.Debugf("[数据库] 初始化默认标签, 共 %d 个", len(labels))

	for _, label := range labels {
		tag := Tag{Label: label}
		if err := db.Where(Tag{Label: label}).FirstOrCreate(&tag).Error; err != nil {
			return err
		}
	}
	return nil
}
