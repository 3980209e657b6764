package database

import (
	"math"
	"strings"
	"time"
)

// MediaInfo 笔记视图中的单个附件
// 无论远程数据以何种形态保存附件, 读取后都归一为该结构
type MediaInfo struct {
	FileURL   string    `json:"file_url"`
	MediaType MediaType `json:"media_type"`
	Filename  string    `json:"filename,omitempty"`
}

// NoteView 笔记的只读投影, 包含赛段/赛道/系列赛/车手名称以及标签和附件
// 字段为空字符串表示对应的关联不存在
type NoteView struct {
	ID          string       `json:"id"`
	Body        string       `json:"body"`
	Shared      bool         `json:"shared"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Category    NoteCategory `json:"category"`
	DriverName  string       `json:"driver_name,omitempty"`
	SessionDate string       `json:"session_date,omitempty"`
	SessionType SessionType  `json:"session_type,omitempty"`
	TrackName   string       `json:"track_name,omitempty"`
	TrackType   TrackType    `json:"track_type,omitempty"`
	SeriesName  string       `json:"series_name,omitempty"`
	Tags        []string     `json:"tags"`
	MediaFiles  []MediaInfo  `json:"media_files"`
}

// NoteCreate 笔记写入请求
type NoteCreate struct {
	Body      string       `json:"body" validate:"required,notblank"`
	Shared    bool         `json:"shared"`
	DriverID  *string      `json:"driver_id,omitempty" validate:"omitempty,uuid"`
	SessionID *string      `json:"session_id,omitempty" validate:"omitempty,uuid"`
	Category  NoteCategory `json:"category" validate:"omitempty,note_category"`
	TagIDs    []string     `json:"tag_ids" validate:"dive,required"`
}

// NewNoteCreate 构造带默认值的写入请求: 共享, 通用分类
func NewNoteCreate(body string) *NoteCreate {
	return &NoteCreate{
		Body:     body,
		Shared:   true,
		Category: NoteCategoryGeneral,
	}
}

// CategoryOrDefault 未指定分类时返回 General
func (n *NoteCreate) CategoryOrDefault() NoteCategory {
	if n.Category == "" {
		return NoteCategoryGeneral
	}
	return n.Category
}

// ContextInfo 笔记提交时的上下文
// 赛段按 (赛道, 系列赛, 赛段类型, 当天日期) 解析
type ContextInfo struct {
	TrackID     string `json:"track_id,omitempty" validate:"omitempty,uuid"`
	TrackName   string `json:"track_name" validate:"required_without=TrackID"`
	SeriesName  string `json:"series_name" validate:"required,notblank"`
	SessionType string `json:"session_type" validate:"required,session_type"`
	DriverName  string `json:"driver_name,omitempty"`
}

// StorageType 附件的存储位置
type StorageType string

const (
	StorageTypeCloud StorageType = "cloud"
	StorageTypeLocal StorageType = "local"
)

// MediaFile 待上传或已上传的附件描述
type MediaFile struct {
	Path        string      `json:"path"`
	Name        string      `json:"name"`
	Size        int64       `json:"size"`
	Ext         string      `json:"ext"`
	MediaType   MediaType   `json:"media_type,omitempty"`
	CloudURL    string      `json:"cloud_url,omitempty"`
	StorageType StorageType `json:"storage_type,omitempty"`
}

// SizeMB 以MB为单位的大小, 保留两位小数
func (m MediaFile) SizeMB() float64 {
	return math.Round(float64(m.Size)/(1024*1024)*100) / 100
}

// FileURL 已上传时返回云端地址, 否则返回 local:// 本地引用
func (m MediaFile) FileURL() string {
	if m.CloudURL != "" {
		return m.CloudURL
	}
	return LocalURLPrefix + m.Path
}

// ResolvedMediaType 未分类时根据扩展名推断
func (m MediaFile) ResolvedMediaType() MediaType {
	if mt, ok := ParseMediaType(string(m.MediaType)); ok {
		return mt
	}
	if m.Ext != "" {
		return MediaTypeFromPath("file" + m.Ext)
	}
	if m.Name != "" {
		return MediaTypeFromPath(m.Name)
	}
	return MediaTypeFromPath(m.Path)
}

// DisplayName 附件文件名
func (m MediaFile) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return MediaFilename(m.Path)
}

// NoteFilter 笔记查询条件
// 赛道和系列赛条件在查询前会被解析为名称
type NoteFilter struct {
	TrackIDs     []string      `json:"track_ids,omitempty"`
	SeriesIDs    []string      `json:"series_ids,omitempty"`
	DriverIDs    []string      `json:"driver_ids,omitempty"`
	SessionIDs   []string      `json:"session_ids,omitempty"`
	TagIDs       []string      `json:"tag_ids,omitempty"`
	SessionTypes []SessionType `json:"session_types,omitempty"`
	TrackTypes   []TrackType   `json:"track_types,omitempty"`
	DateFrom     string        `json:"date_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateTo       string        `json:"date_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SearchText   string        `json:"search_text,omitempty"`
}

// IsEmpty 没有任何条件时返回true
func (f *NoteFilter) IsEmpty() bool {
	if f == nil {
		return true
	}
	return len(f.TrackIDs) == 0 && len(f.SeriesIDs) == 0 && len(f.DriverIDs) == 0 &&
		len(f.SessionIDs) == 0 && len(f.TagIDs) == 0 && len(f.SessionTypes) == 0 &&
		len(f.TrackTypes) == 0 && f.DateFrom == "" && f.DateTo == "" &&
		strings.TrimSpace(f.SearchText) == ""
}
