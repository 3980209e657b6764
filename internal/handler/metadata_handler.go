package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/response"
	"github.com/weiwangfds/racenotes/internal/service/note"
)

// MetadataHandler 赛道、系列赛、车手和赛段处理器
// 读取在断开时返回离线镜像, 写入要求已连接远程数据库
type MetadataHandler struct {
	notes note.NoteService
}

// NamedRequest 只包含名称的创建请求
type NamedRequest struct {
	Name string `json:"name"`
}

// CreateTrackRequest 创建赛道请求, type为空时使用 Road Course
type CreateTrackRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewMetadataHandler 创建元数据处理器实例
func NewMetadataHandler(notes note.NoteService) *MetadataHandler {
	return &MetadataHandler{notes: notes}
}

// ListTracks GET /tracks
func (h *MetadataHandler) ListTracks(c *gin.Context) {
	tracks := h.notes.LoadMetadata().Tracks
	response.List(c, tracks, len(tracks), 0, 0)
}

// ListSeries GET /series
func (h *MetadataHandler) ListSeries(c *gin.Context) {
	series := h.notes.LoadMetadata().Series
	response.List(c, series, len(series), 0, 0)
}

// ListDrivers GET /drivers
func (h *MetadataHandler) ListDrivers(c *gin.Context) {
	drivers := h.notes.LoadMetadata().Drivers
	response.List(c, drivers, len(drivers), 0, 0)
}

// ListSessions GET /sessions?track_id&series_id
func (h *MetadataHandler) ListSessions(c *gin.Context) {
	sessions := h.notes.LoadSessions(c.Query("track_id"), c.Query("series_id"))
	response.List(c, sessions, len(sessions), 0, 0)
}

// CreateTrack POST /tracks
func (h *MetadataHandler) CreateTrack(c *gin.Context) {
	var req CreateTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var trackType database.TrackType
	if req.Type != "" {
		parsed, ok := database.ParseTrackType(req.Type)
		if !ok {
			response.FromError(c, apperrors.Newf(apperrors.ErrInvalidEnum, "unknown track type %q", req.Type))
			return
		}
		trackType = parsed
	}

	track, err := h.notes.CreateTrack(req.Name, trackType)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "track saved", track)
}

// CreateSeries POST /series
func (h *MetadataHandler) CreateSeries(c *gin.Context) {
	var req NamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	series, err := h.notes.CreateSeries(req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "series saved", series)
}

// CreateDriver POST /drivers
func (h *MetadataHandler) CreateDriver(c *gin.Context) {
	var req NamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	driver, err := h.notes.CreateDriver(req.Name)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, "driver saved", driver)
}
