package gateway

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/weiwangfds/racenotes/internal/database"
)

// mediaShape note_view 中附件列的两种历史形态
// 在网关边界一次性归一为 []database.MediaInfo
type mediaShape interface {
	mediaInfos() []database.MediaInfo
}

// structuredMedia 结构化形态: [{file_url, media_type, filename}, ...]
type structuredMedia []struct {
	FileURL   *string `json:"file_url"`
	MediaType *string `json:"media_type"`
	Filename  *string `json:"filename"`
}

// legacyMedia 旧版形态: URL平铺数组, 类型由扩展名推断
type legacyMedia []*string

func (s structuredMedia) mediaInfos() []database.MediaInfo {
	infos := make([]database.MediaInfo, 0, len(s))
	for _, item := range s {
		if item.FileURL == nil || strings.TrimSpace(*item.FileURL) == "" {
			continue
		}
		url := *item.FileURL
		info := database.MediaInfo{
			FileURL:   url,
			MediaType: structuredMediaType(item.MediaType, url),
			Filename:  database.MediaFilename(url),
		}
		if item.Filename != nil && *item.Filename != "" {
			info.Filename = *item.Filename
		}
		infos = append(infos, info)
	}
	return infos
}

func (l legacyMedia) mediaInfos() []database.MediaInfo {
	infos := make([]database.MediaInfo, 0, len(l))
	for _, url := range l {
		if url == nil || strings.TrimSpace(*url) == "" {
			continue
		}
		infos = append(infos, database.MediaInfo{
			FileURL:   *url,
			MediaType: database.MediaTypeFromPath(*url),
			Filename:  database.MediaFilename(*url),
		})
	}
	return infos
}

// structuredMediaType 结构化形态中的类型字段
// 缺失时按扩展名推断, "csv" 视为 data, 其他未知取值视为 other
func structuredMediaType(raw *string, url string) database.MediaType {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return database.MediaTypeFromPath(url)
	}
	if strings.EqualFold(strings.TrimSpace(*raw), "csv") {
		return database.MediaTypeData
	}
	if mt, ok := database.ParseMediaType(*raw); ok {
		return mt
	}
	return database.MediaTypeOther
}

// parseMediaShape 结构化形态有有效条目时优先, 否则回退到旧版形态
func parseMediaShape(structured, legacy *string) mediaShape {
	if structured != nil && *structured != "" {
		var s structuredMedia
		if err := json.Unmarshal([]byte(*structured), &s); err == nil && len(s.mediaInfos()) > 0 {
			return s
		}
	}
	if legacy != nil && *legacy != "" {
		var l legacyMedia
		if err := json.Unmarshal([]byte(*legacy), &l); err == nil {
			return l
		}
	}
	return legacyMedia(nil)
}

// decodeMedia 将视图行的附件列解码为统一结构
func decodeMedia(structured, legacy *string) []database.MediaInfo {
	return parseMediaShape(structured, legacy).mediaInfos()
}

// decodeTags 解码标签数组, 忽略空值
func decodeTags(raw *string) []string {
	tags := []string{}
	if raw == nil || *raw == "" {
		return tags
	}
	var labels []*string
	if err := json.Unmarshal([]byte(*raw), &labels); err != nil {
		return tags
	}
	for _, label := range labels {
		if label != nil && *label != "" {
			tags = append(tags, *label)
		}
	}
	return tags
}
