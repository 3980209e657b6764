// Package database 定义赛事笔记系统的数据模型
// 包含远程数据库表模型、只读视图 note_view 的投影结构, 以及写入请求和查询条件等值类型
package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionDateLayout 赛段日期的存储格式
const SessionDateLayout = "2006-01-02"

// assignID 首次写入时生成UUID主键
func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Track 赛道
// 名称唯一, 由按名称查找或创建的流程惰性生成, 本系统不会删除
type Track struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null;size:120;uniqueIndex:idx_track_name" json:"name" validate:"required,notblank"`
	Type      TrackType `gorm:"not null;size:32" json:"type" validate:"required,track_type"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Track) TableName() string { return "track" }

// BeforeCreate 生成主键
func (t *Track) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// Series 系列赛
type Series struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null;size:120;uniqueIndex:idx_series_name" json:"name" validate:"required,notblank"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Series) TableName() string { return "series" }

// BeforeCreate 生成主键
func (s *Series) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// Driver 车手, 可以不隶属于任何系列赛
type Driver struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null;size:120;index" json:"name" validate:"required,notblank"`
	SeriesID  *string   `gorm:"size:36;index" json:"series_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Driver) TableName() string { return "driver" }

// BeforeCreate 生成主键
func (d *Driver) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	return nil
}

// Session 赛段
// (date, session, track_id, series_id) 唯一, 是笔记与赛道/系列赛之间的连接点
type Session struct {
	ID        string      `gorm:"primaryKey;size:36" json:"id"`
	Date      string      `gorm:"not null;size:10;uniqueIndex:idx_session_identity,priority:1" json:"date" validate:"required,datetime=2006-01-02"`
	Kind      SessionType `gorm:"column:session;not null;size:16;uniqueIndex:idx_session_identity,priority:2" json:"session" validate:"required,session_type"`
	TrackID   *string     `gorm:"size:36;uniqueIndex:idx_session_identity,priority:3" json:"track_id,omitempty"`
	SeriesID  *string     `gorm:"size:36;uniqueIndex:idx_session_identity,priority:4" json:"series_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName 指定表名
func (Session) TableName() string { return "session" }

// BeforeCreate 生成主键
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// Tag 标签, label唯一
type Tag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Label     string    `gorm:"not null;size:80;uniqueIndex:idx_tag_label" json:"label" validate:"required,notblank"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Tag) TableName() string { return "tag" }

// BeforeCreate 生成主键
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// Note 笔记
// 创建后不可修改, shared 没有数据库默认值, 由写入方显式给出
type Note struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	Body      string       `gorm:"type:text;not null" json:"body"`
	Shared    bool         `gorm:"not null" json:"shared"`
	DriverID  *string      `gorm:"size:36;index" json:"driver_id,omitempty"`
	SessionID *string      `gorm:"size:36;index" json:"session_id,omitempty"`
	Category  NoteCategory `gorm:"not null;size:32" json:"category"`
	CreatedBy string       `gorm:"not null;size:120" json:"created_by"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName 指定表名
func (Note) TableName() string { return "note" }

// BeforeCreate 生成主键
func (n *Note) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	return nil
}

// NoteTag 笔记与标签的关联
type NoteTag struct {
	NoteID string `gorm:"primaryKey;size:36" json:"note_id"`
	TagID  string `gorm:"primaryKey;size:36;index" json:"tag_id"`
}

// TableName 指定表名
func (NoteTag) TableName() string { return "note_tag" }

// Media 笔记附件, 只会插入, 不会更新
type Media struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	NoteID    string    `gorm:"not null;size:36;index" json:"note_id"`
	FileURL   string    `gorm:"not null;size:1024" json:"file_url"`
	MediaType MediaType `gorm:"not null;size:16" json:"media_type"`
	SizeMB    float64   `json:"size_mb"`
	Filename  string    `gorm:"size:255" json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (Media) TableName() string { return "media" }

// BeforeCreate 生成主键
func (m *Media) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// AllModels 参与迁移的全部表模型
func AllModels() []interface{} {
	return []interface{}{
		&Track{},
		&Series{},
		&Driver{},
		&Session{},
		&Tag{},
		&Note{},
		&NoteTag{},
		&Media{},
	}
}
