package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/logger"
	"gorm.io/gorm"
)

// noteViewRow note_view 的原始行, 关联列可能为NULL
type noteViewRow struct {
	ID          string
	Body        string
	Shared      bool
	Category    string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DriverName  *string
	SessionDate *string
	SessionType *string
	TrackName   *string
	TrackType   *string
	SeriesName  *string
	Tags        *string
	MediaFiles  *string
	MediaURLs   *string `gorm:"column:media_urls"`
}

func (r *noteViewRow) toView() database.NoteView {
	view := database.NoteView{
		ID:          r.ID,
		Body:        r.Body,
		Shared:      r.Shared,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Category:    database.NoteCategory(r.Category),
		DriverName:  deref(r.DriverName),
		SessionDate: deref(r.SessionDate),
		SessionType: database.SessionType(deref(r.SessionType)),
		TrackName:   deref(r.TrackName),
		TrackType:   database.TrackType(deref(r.TrackType)),
		SeriesName:  deref(r.SeriesName),
		Tags:        decodeTags(r.Tags),
		MediaFiles:  decodeMedia(r.MediaFiles, r.MediaURLs),
	}
	if category, ok := database.ParseNoteCategory(r.Category); ok {
		view.Category = category
	}
	if view.CreatedBy == "" {
		view.CreatedBy = DefaultAuthor
	}
	return view
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetNotes 从 note_view 读取笔记, 按创建时间倒序, 出错时返回空集合
func (g *RemoteGateway) GetNotes(limit, offset int, filter *database.NoteFilter) []database.NoteView {
	views, _ := g.FetchNotes(limit, offset, filter)
	return views
}

// FetchNotes 与 GetNotes 相同, 但返回读取错误
func (g *RemoteGateway) FetchNotes(limit, offset int, filter *database.NoteFilter) ([]database.NoteView, error) {
	views := []database.NoteView{}
	if !g.IsConnected() {
		return views, apperrors.NewCode(apperrors.ErrNotConnected)
	}
	if limit <= 0 {
		limit = DefaultNotesLimit
	}
	if offset < 0 {
		offset = 0
	}

	var rows []noteViewRow
	err := g.execute(func(db *gorm.DB) error {
		q := db.Table(database.NoteViewName)
		if filter != nil {
			q = g.applyFilter(db, q, filter)
		}
		return q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	})
	if err != nil {
		logger.Errorf("[网关] 读取笔记失败: %v", err)
		return views, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	for i := range rows {
		views = append(views, rows[i].toView())
	}
	return views, nil
}

// applyFilter 将查询条件应用到视图查询
// 视图只暴露赛道和系列赛名称, ID条件先解析为名称; 全部无法解析时忽略该条件
func (g *RemoteGateway) applyFilter(db, q *gorm.DB, filter *database.NoteFilter) *gorm.DB {
	if text := strings.TrimSpace(filter.SearchText); text != "" {
		q = q.Where("LOWER(body) LIKE ?", "%"+strings.ToLower(text)+"%")
	}

	if len(filter.TrackIDs) > 0 {
		if names := pluckNames(db, &database.Track{}, filter.TrackIDs); len(names) > 0 {
			q = q.Where("track_name IN ?", names)
		}
	}
	if len(filter.SeriesIDs) > 0 {
		if names := pluckNames(db, &database.Series{}, filter.SeriesIDs); len(names) > 0 {
			q = q.Where("series_name IN ?", names)
		}
	}

	if len(filter.DriverIDs) > 0 {
		q = q.Where("driver_id IN ?", filter.DriverIDs)
	}
	if len(filter.SessionIDs) > 0 {
		q = q.Where("session_id IN ?", filter.SessionIDs)
	}
	if len(filter.TagIDs) > 0 {
		q = q.Where("id IN (?)", db.Model(&database.NoteTag{}).Select("note_id").Where("tag_id IN ?", filter.TagIDs))
	}
	if len(filter.SessionTypes) > 0 {
		q = q.Where("session_type IN ?", filter.SessionTypes)
	}
	if len(filter.TrackTypes) > 0 {
		q = q.Where("track_type IN ?", filter.TrackTypes)
	}
	if filter.DateFrom != "" {
		q = q.Where("session_date >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		q = q.Where("session_date <= ?", filter.DateTo)
	}
	return q
}

func pluckNames(db *gorm.DB, model interface{}, ids []string) []string {
	var names []string
	if err := db.Model(model).Where("id IN ?", ids).Pluck("name", &names).Error; err != nil {
		logger.Warnf("[网关] 解析过滤条件名称失败: %v", err)
		return nil
	}
	return names
}

// getNoteView 通过视图读取单条笔记
func (g *RemoteGateway) getNoteView(id string) (*database.NoteView, error) {
	var row noteViewRow
	err := g.execute(func(db *gorm.DB) error {
		return db.Table(database.NoteViewName).Where("id = ?", id).Take(&row).Error
	})
	if err != nil {
		return nil, err
	}
	view := row.toView()
	return &view, nil
}

// CreateNote 使用调用方给出的赛段和车手ID写入笔记并关联标签
// 标签关联失败只记录日志
func (g *RemoteGateway) CreateNote(note *database.NoteCreate, author string) (*database.Note, error) {
	if !g.IsConnected() {
		return nil, apperrors.NewCode(apperrors.ErrNotConnected)
	}
	if err := database.ValidateStruct(note); err != nil {
		return nil, err
	}

	row, err := g.insertNote(note, note.SessionID, author)
	if err != nil {
		return nil, err
	}
	if err := g.attachTags(row.ID, note.TagIDs); err != nil {
		logger.Warnf("[网关] 笔记 %s 关联标签失败: %v", row.ID, err)
	}
	return row, nil
}

// CreateNoteWithContext 笔记写入主流程
// 只有赛段解析和笔记写入的失败会终止流程; 之后的步骤失败记录在结果中
func (g *RemoteGateway) CreateNoteWithContext(note *database.NoteCreate, noteCtx *database.ContextInfo, media []database.MediaFile, author string) (*NoteCreateResult, error) {
	if !g.IsConnected() {
		return nil, apperrors.NewCode(apperrors.ErrNotConnected)
	}
	if note == nil || noteCtx == nil {
		return nil, apperrors.Newf(apperrors.ErrValidation, "note and context are required")
	}
	if err := database.ValidateStruct(note); err != nil {
		return nil, err
	}
	if err := database.ValidateStruct(noteCtx); err != nil {
		return nil, err
	}

	session, err := g.resolveSession(noteCtx)
	if err != nil {
		logger.Errorf("[网关] 赛段解析失败, 放弃写入笔记: %v", err)
		return nil, err
	}

	row, err := g.insertNote(note, &session.ID, author)
	if err != nil {
		return nil, err
	}

	result := &NoteCreateResult{NoteID: row.ID, SessionID: session.ID}

	if err := g.attachTags(row.ID, note.TagIDs); err != nil {
		logger.Warnf("[网关] 笔记 %s 关联标签失败: %v", row.ID, err)
		result.fail(StepAttachTags, err)
		g.metrics.StepFailed(string(StepAttachTags))
	}

	if err := g.attachMedia(row.ID, media); err != nil {
		logger.Warnf("[网关] 笔记 %s 写入附件失败: %v", row.ID, err)
		result.fail(StepAttachMedia, err)
		g.metrics.StepFailed(string(StepAttachMedia))
	}

	view, err := g.getNoteView(row.ID)
	if err != nil {
		logger.Warnf("[网关] 笔记 %s 视图读取失败, 使用本地构造的视图: %v", row.ID, err)
		result.fail(StepRefetchView, err)
		g.metrics.StepFailed(string(StepRefetchView))
		view = fallbackView(row, session, noteCtx)
		result.Fallback = true
	}
	result.View = view

	logger.Infof("[网关] 笔记已创建: %s, 赛段: %s", row.ID, session.ID)
	return result, nil
}

// resolveSession 解析当天的赛段, 不存在时创建
func (g *RemoteGateway) resolveSession(noteCtx *database.ContextInfo) (*database.Session, error) {
	trackID := noteCtx.TrackID
	if trackID == "" {
		id, err := g.trackID(strings.TrimSpace(noteCtx.TrackName))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrSessionResolution, err)
		}
		trackID = id
	}

	seriesID, err := g.seriesID(strings.TrimSpace(noteCtx.SeriesName))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSessionResolution, err)
	}

	kind, ok := database.ParseSessionType(noteCtx.SessionType)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrInvalidEnum, "session type %q", noteCtx.SessionType)
	}
	today := g.clock().Format(database.SessionDateLayout)

	session, created, err := findOrCreate(g,
		func(db *gorm.DB) *gorm.DB {
			return db.Where("track_id = ? AND series_id = ? AND date = ? AND LOWER(session) = ?",
				trackID, seriesID, today, strings.ToLower(string(kind)))
		},
		func() *database.Session {
			return &database.Session{Date: today, Kind: kind, TrackID: &trackID, SeriesID: &seriesID}
		},
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSessionResolution, err)
	}
	if created {
		logger.Infof("[网关] 新建赛段: %s %s", today, kind)
	} else {
		logger.Debugf("[网关] 复用赛段: %s", session.ID)
	}
	return session, nil
}

func (g *RemoteGateway) insertNote(note *database.NoteCreate, sessionID *string, author string) (*database.Note, error) {
	if strings.TrimSpace(author) == "" {
		author = DefaultAuthor
	}
	row := &database.Note{
		Body:      note.Body,
		Shared:    note.Shared,
		DriverID:  note.DriverID,
		SessionID: sessionID,
		Category:  note.CategoryOrDefault(),
		CreatedBy: author,
	}
	if err := g.execute(func(db *gorm.DB) error { return db.Create(row).Error }); err != nil {
		logger.Errorf("[网关] 写入笔记失败: %v", err)
		return nil, apperrors.Wrap(apperrors.ErrNoteInsert, err)
	}
	if row.ID == "" {
		return nil, apperrors.Newf(apperrors.ErrNoteInsert, "insert returned no row")
	}
	return row, nil
}

// attachTags 批量写入笔记与标签的关联, 重复的ID只写入一次
func (g *RemoteGateway) attachTags(noteID string, tagIDs []string) error {
	seen := make(map[string]struct{}, len(tagIDs))
	links := make([]database.NoteTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, database.NoteTag{NoteID: noteID, TagID: id})
	}
	if len(links) == 0 {
		return nil
	}
	return g.execute(func(db *gorm.DB) error { return db.Create(&links).Error })
}

// attachMedia 逐个写入附件记录
// 单个附件失败不影响其他附件, 所有失败合并返回
func (g *RemoteGateway) attachMedia(noteID string, files []database.MediaFile) error {
	var errs []error
	for _, file := range files {
		if file.Path == "" && file.CloudURL == "" {
			continue
		}
		row := &database.Media{
			NoteID:    noteID,
			FileURL:   file.FileURL(),
			MediaType: file.ResolvedMediaType(),
			SizeMB:    file.SizeMB(),
			Filename:  file.DisplayName(),
		}
		if err := g.execute(func(db *gorm.DB) error { return db.Create(row).Error }); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", row.Filename, err))
		}
	}
	return errors.Join(errs...)
}

// fallbackView 视图暂不可读时根据输入构造的笔记视图, 标签和附件为空
func fallbackView(row *database.Note, session *database.Session, noteCtx *database.ContextInfo) *database.NoteView {
	return &database.NoteView{
		ID:          row.ID,
		Body:        row.Body,
		Shared:      row.Shared,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Category:    row.Category,
		DriverName:  noteCtx.DriverName,
		SessionDate: session.Date,
		SessionType: session.Kind,
		TrackName:   noteCtx.TrackName,
		SeriesName:  noteCtx.SeriesName,
		Tags:        []string{},
		MediaFiles:  []database.MediaInfo{},
	}
}
