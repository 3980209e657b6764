// Package handler 提供HTTP处理器
// 笔记、元数据和outbox接口都通过 note.NoteService 访问数据, 不直接接触网关或缓存
package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/response"
	"github.com/weiwangfds/racenotes/internal/service/gateway"
	"github.com/weiwangfds/racenotes/internal/service/note"
)

// MaxNotesLimit 单次读取笔记的上限
const MaxNotesLimit = 1000

// NoteHandler 笔记处理器
type NoteHandler struct {
	notes      note.NoteService
	stagingDir string
}

// NewNoteHandler 创建笔记处理器实例
// 参数:
//   - notes: 笔记数据服务
//   - stagingDir: multipart上传文件的暂存目录, 未能上传到对象存储的附件以该目录下的本地路径引用
func NewNoteHandler(notes note.NoteService, stagingDir string) *NoteHandler {
	return &NoteHandler{notes: notes, stagingDir: stagingDir}
}

// ListNotes 读取笔记
// GET /notes?limit&offset&search&track_ids&series_ids&driver_ids&session_ids&tag_ids&session_types&track_types&date_from&date_to
// 列表参数既可以重复出现, 也可以用逗号分隔
func (h *NoteHandler) ListNotes(c *gin.Context) {
	limit, err := intQuery(c, "limit", gateway.DefaultNotesLimit)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if limit > MaxNotesLimit {
		limit = MaxNotesLimit
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	filter, err := parseNoteFilter(c)
	if err != nil {
		response.FromError(c, err)
		return
	}

	notes := h.notes.LoadNotes(limit, offset, filter)
	response.List(c, notes, len(notes), limit, offset)
}

// CreateNote 提交笔记
// POST /notes, 请求体为JSON, 或multipart表单: payload字段为JSON, files[]为附件
// 已写入远程数据库时返回201, 进入outbox时返回202
func (h *NoteHandler) CreateNote(c *gin.Context) {
	req, err := h.bindCreateRequest(c)
	if err != nil {
		response.FromError(c, err)
		return
	}

	resp, err := h.notes.CreateNote(req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	switch {
	case resp.Mode == note.ModeQueued:
		response.Accepted(c, "note queued for sync", resp)
	case resp.Result.Partial():
		response.Created(c, "note saved, some steps failed: "+resp.Result.Summary(), resp)
	default:
		response.Created(c, "note created", resp)
	}
}

func (h *NoteHandler) bindCreateRequest(c *gin.Context) (*note.CreateNoteRequest, error) {
	req := note.CreateNoteRequest{Note: *database.NewNoteCreate("")}
	if !strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidParams, err)
		}
		if err := rejectClientPaths(req.MediaFiles); err != nil {
			return nil, err
		}
		return &req, nil
	}

	payload := c.PostForm("payload")
	if payload == "" {
		return nil, apperrors.Newf(apperrors.ErrInvalidParams, "payload field is required")
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidParams, err)
	}
	if err := rejectClientPaths(req.MediaFiles); err != nil {
		return nil, err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidParams, err)
	}
	uploads := append(form.File["files[]"], form.File["files"]...)
	if len(uploads) == 0 {
		return &req, nil
	}

	if err := os.MkdirAll(h.stagingDir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("failed to create staging dir: %w", err))
	}
	for _, fh := range uploads {
		name := filepath.Base(fh.Filename)
		dst := filepath.Join(h.stagingDir, uuid.NewString()+"_"+name)
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("failed to stage %s: %w", name, err))
		}
		req.MediaFiles = append(req.MediaFiles, database.MediaFile{
			Path: dst,
			Name: name,
			Size: fh.Size,
			Ext:  strings.ToLower(filepath.Ext(name)),
		})
	}
	logger.Debugf("[HTTP] 已暂存 %d 个附件到 %s", len(uploads), h.stagingDir)
	return &req, nil
}

// rejectClientPaths 请求体中的附件只能携带已有地址, 本地路径只由暂存的上传文件产生
func rejectClientPaths(files []database.MediaFile) error {
	for i, f := range files {
		if f.Path != "" {
			return apperrors.Newf(apperrors.ErrInvalidParams, "media_files[%d].path is not accepted, upload the file as multipart instead", i)
		}
	}
	return nil
}

// parseNoteFilter 解析查询条件, 没有任何条件时返回nil
func parseNoteFilter(c *gin.Context) (*database.NoteFilter, error) {
	filter := &database.NoteFilter{
		TrackIDs:   queryList(c, "track_ids"),
		SeriesIDs:  queryList(c, "series_ids"),
		DriverIDs:  queryList(c, "driver_ids"),
		SessionIDs: queryList(c, "session_ids"),
		TagIDs:     queryList(c, "tag_ids"),
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
		SearchText: strings.TrimSpace(c.Query("search")),
	}

	for _, v := range queryList(c, "session_types") {
		st, ok := database.ParseSessionType(v)
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrInvalidEnum, "unknown session type %q", v)
		}
		filter.SessionTypes = append(filter.SessionTypes, st)
	}
	for _, v := range queryList(c, "track_types") {
		tt, ok := database.ParseTrackType(v)
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrInvalidEnum, "unknown track type %q", v)
		}
		filter.TrackTypes = append(filter.TrackTypes, tt)
	}

	if filter.IsEmpty() {
		return nil, nil
	}
	if err := database.ValidateStruct(filter); err != nil {
		return nil, err
	}
	return filter, nil
}

// queryList 读取列表参数, 支持 ?k=a&k=b 与 ?k=a,b 两种写法
func queryList(c *gin.Context, key string) []string {
	var values []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
	}
	return values
}

// intQuery 读取非负整数参数
func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}
