package database

import (
	"path/filepath"
	"strings"
)

// TrackType 赛道类型
type TrackType string

const (
	TrackTypeSuperspeedway TrackType = "Superspeedway"
	TrackTypeIntermediate  TrackType = "Intermediate"
	TrackTypeShortTrack    TrackType = "Short Track"
	TrackTypeRoadCourse    TrackType = "Road Course"
)

// DefaultTrackType 按名称自动创建赛道时使用的类型
const DefaultTrackType = TrackTypeRoadCourse

// TrackTypes 全部赛道类型
var TrackTypes = []TrackType{TrackTypeSuperspeedway, TrackTypeIntermediate, TrackTypeShortTrack, TrackTypeRoadCourse}

// SessionType 赛段类型
type SessionType string

const (
	SessionTypePractice   SessionType = "Practice"
	SessionTypeQualifying SessionType = "Qualifying"
	SessionTypeRace       SessionType = "Race"
)

// SessionTypes 全部赛段类型
var SessionTypes = []SessionType{SessionTypePractice, SessionTypeQualifying, SessionTypeRace}

// MediaType 媒体类型
type MediaType string

const (
	MediaTypeVideo    MediaType = "video"
	MediaTypeImage    MediaType = "image"
	MediaTypeData     MediaType = "data"
	MediaTypeDocument MediaType = "document"
	MediaTypeOther    MediaType = "other"
)

// MediaTypes 全部媒体类型
var MediaTypes = []MediaType{MediaTypeVideo, MediaTypeImage, MediaTypeData, MediaTypeDocument, MediaTypeOther}

// NoteCategory 笔记分类
type NoteCategory string

const (
	NoteCategoryGeneral        NoteCategory = "General"
	NoteCategoryTrackSpecific  NoteCategory = "Track Specific"
	NoteCategorySeriesSpecific NoteCategory = "Series Specific"
	NoteCategoryDriverSpecific NoteCategory = "Driver Specific"
)

// NoteCategories 全部笔记分类
var NoteCategories = []NoteCategory{NoteCategoryGeneral, NoteCategoryTrackSpecific, NoteCategorySeriesSpecific, NoteCategoryDriverSpecific}

// normalizeEnum 统一大小写和分隔符, "track-specific" 与 "Track Specific" 视为相同
func normalizeEnum(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.ToLower(s)
}

func parseEnum[T ~string](value string, allowed []T) (T, bool) {
	key := normalizeEnum(value)
	for _, candidate := range allowed {
		if normalizeEnum(string(candidate)) == key {
			return candidate, true
		}
	}
	var zero T
	return zero, false
}

// ParseTrackType 解析赛道类型, 不区分大小写
func ParseTrackType(s string) (TrackType, bool) { return parseEnum(s, TrackTypes) }

// ParseSessionType 解析赛段类型, 不区分大小写
func ParseSessionType(s string) (SessionType, bool) { return parseEnum(s, SessionTypes) }

// ParseMediaType 解析媒体类型, 不区分大小写
func ParseMediaType(s string) (MediaType, bool) { return parseEnum(s, MediaTypes) }

// ParseNoteCategory 解析笔记分类, 不区分大小写
func ParseNoteCategory(s string) (NoteCategory, bool) { return parseEnum(s, NoteCategories) }

// LocalURLPrefix 上传失败时媒体地址使用的本地路径前缀
const LocalURLPrefix = "local://"

var extensionMediaTypes = map[string]MediaType{
	".mp4": MediaTypeVideo, ".avi": MediaTypeVideo, ".mov": MediaTypeVideo,
	".wmv": MediaTypeVideo, ".flv": MediaTypeVideo, ".webm": MediaTypeVideo,

	".jpg": MediaTypeImage, ".jpeg": MediaTypeImage, ".png": MediaTypeImage,
	".gif": MediaTypeImage, ".bmp": MediaTypeImage, ".webp": MediaTypeImage,

	".csv": MediaTypeData, ".xlsx": MediaTypeData, ".xls": MediaTypeData,

	".pdf": MediaTypeDocument, ".doc": MediaTypeDocument, ".docx": MediaTypeDocument, ".txt": MediaTypeDocument,
}

// MediaTypeFromPath 根据扩展名推断媒体类型
// 路径或URL均可, local:// 前缀会被忽略, 未知扩展名返回 other
func MediaTypeFromPath(path string) MediaType {
	ext := strings.ToLower(filepath.Ext(MediaFilename(path)))
	if mt, ok := extensionMediaTypes[ext]; ok {
		return mt
	}
	return MediaTypeOther
}

// IsKnownExtension 扩展名是否属于已知媒体类型
func IsKnownExtension(path string) bool {
	_, ok := extensionMediaTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MediaFilename 提取文件名, 去掉 local:// 前缀和URL查询参数
func MediaFilename(path string) string {
	path = strings.TrimPrefix(path, LocalURLPrefix)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
