// Package note 提供笔记数据服务
// 在远程网关、附件上传服务和离线缓存之间编排读写:
// 已连接时读写远程数据库并刷新本地镜像, 断开时从镜像读取, 新笔记进入 outbox 等待人工同步
package note

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/database"
	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/metrics"
	"github.com/weiwangfds/racenotes/internal/service/cache"
	"github.com/weiwangfds/racenotes/internal/service/gateway"
	"github.com/weiwangfds/racenotes/internal/service/media"
)

// CreateMode 笔记提交的去向
type CreateMode string

const (
	// ModeOnline 已写入远程数据库
	ModeOnline CreateMode = "online"
	// ModeQueued 已加入离线 outbox
	ModeQueued CreateMode = "queued"
)

// CreateNoteRequest 笔记提交请求
type CreateNoteRequest struct {
	Note       database.NoteCreate  `json:"note"`
	Context    database.ContextInfo `json:"context"`
	MediaFiles []database.MediaFile `json:"media_files,omitempty"`
	Author     string               `json:"author,omitempty"`
}

// CreateNoteResponse 笔记提交结果, Result 与 Outbox 二者之一非空
type CreateNoteResponse struct {
	Mode   CreateMode                `json:"mode"`
	Result *gateway.NoteCreateResult `json:"result,omitempty"`
	Outbox *cache.OutboxEntry        `json:"outbox,omitempty"`
}

// SyncStatus 同步状态
type SyncStatus struct {
	Connected    bool       `json:"connected"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	Stale        bool       `json:"stale"`
	PendingCount int        `json:"pending_count"`
}

// NoteService 笔记数据服务接口
type NoteService interface {
	// Connect 连接远程数据库, 连接成功后初始化附件上传服务
	// 返回是否已连接; 连接失败不会返回错误, 服务以离线模式继续工作
	Connect() bool

	// IsConnected 远程数据库当前是否可用
	IsConnected() bool

	// LoadNotes 读取笔记
	// 已连接时从远程读取并整体替换本地镜像; 断开时从镜像读取, 仅应用搜索文本条件
	LoadNotes(limit, offset int, filter *database.NoteFilter) []database.NoteView

	// LoadMetadata 读取赛道、系列赛、车手、赛段和标签, 已连接时同时刷新镜像
	LoadMetadata() cache.Metadata

	// LoadSessions 读取赛段, 参数为空表示不按该字段过滤
	LoadSessions(trackID, seriesID string) []database.Session

	// CreateTag CreateTrack CreateSeries CreateDriver 写入远程数据库并刷新镜像中对应的表
	// 未连接时返回 ErrNotConnected, 元数据写入不进入 outbox
	CreateTag(label string) (*database.Tag, error)
	CreateTrack(name string, trackType database.TrackType) (*database.Track, error)
	CreateSeries(name string) (*database.Series, error)
	CreateDriver(name string) (*database.Driver, error)

	// CreateNote 提交笔记
	// 参数校验失败时不做任何写入; 断开时加入 outbox 并返回 ModeQueued;
	// 已连接时先上传附件(失败的文件退化为本地引用), 再执行写入主流程
	CreateNote(req *CreateNoteRequest) (*CreateNoteResponse, error)

	// SyncStatus 连接状态、最近同步时间、是否过期以及待同步数量
	SyncStatus() SyncStatus

	// OutboxEntries 列出 outbox 条目
	OutboxEntries() []cache.OutboxEntry

	// MarkNoteSynced 将 outbox 条目标记为已同步
	MarkNoteSynced(id string) error

	// ClearSyncedNotes 删除已同步的 outbox 条目
	ClearSyncedNotes() int
}

// DataService NoteService 的实现
type DataService struct {
	cfg     *config.Config
	offline *cache.OfflineCache
	metrics *metrics.Metrics
	clock   func() time.Time

	mu      sync.RWMutex
	gateway *gateway.RemoteGateway
	media   *media.Service
}

var _ NoteService = (*DataService)(nil)

// Option 数据服务可选配置
type Option func(*DataService)

// WithClock 指定时钟, 传递给网关用于赛段日期
func WithClock(clock func() time.Time) Option {
	return func(s *DataService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DataService) {
		s.metrics = m
	}
}

// NewDataService 创建数据服务, 调用 Connect 之前处于离线状态
func NewDataService(cfg *config.Config, offline *cache.OfflineCache, opts ...Option) *DataService {
	s := &DataService{
		cfg:     cfg,
		offline: offline,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gateway = gateway.New(nil, cfg.Remote, gateway.WithClock(s.clock), gateway.WithMetrics(s.metrics))
	return s
}

// Connect 连接远程数据库
func (s *DataService) Connect() bool {
	gw, err := gateway.Connect(s.cfg.Remote, gateway.WithClock(s.clock), gateway.WithMetrics(s.metrics))
	if err != nil {
		logger.Warnf("[数据服务] 远程数据库不可用, 以离线模式运行: %v", err)
	}

	var uploader *media.Service
	if gw.IsConnected() {
		if len(s.cfg.App.DefaultTags) > 0 {
			if err := database.SeedDefaultTags(gw.DB(), s.cfg.App.DefaultTags); err != nil {
				logger.Warnf("[数据服务] 初始化默认标签失败: %v", err)
			}
		}

		mediaOpts := []media.Option{media.WithClock(s.clock), media.WithMetrics(s.metrics)}
		uploader, err = media.NewServiceFromConfig(s.cfg.Storage, mediaOpts...)
		if err != nil {
			logger.Errorf("[数据服务] 初始化对象存储失败, 附件将以本地路径保存: %v", err)
			uploader = media.NewService(nil, s.cfg.Storage, mediaOpts...)
		}
		logger.Info("[数据服务] 已连接远程数据库")
	}

	s.mu.Lock()
	previous := s.gateway
	s.gateway = gw
	s.media = uploader
	s.mu.Unlock()

	if previous != nil && previous != gw {
		_ = previous.Close()
	}
	return gw.IsConnected()
}

// Gateway 当前网关, 未连接时为离线网关
func (s *DataService) Gateway() gateway.Gateway {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gateway
}

// Media 附件上传服务, 未连接时为nil
func (s *DataService) Media() *media.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.media
}

// Cache 离线缓存
func (s *DataService) Cache() *cache.OfflineCache {
	return s.offline
}

// IsConnected 远程数据库当前是否可用
func (s *DataService) IsConnected() bool {
	return s.Gateway().IsConnected()
}

// LoadNotes 读取笔记
func (s *DataService) LoadNotes(limit, offset int, filter *database.NoteFilter) []database.NoteView {
	if limit <= 0 {
		limit = gateway.DefaultNotesLimit
	}

	gw := s.Gateway()
	if gw.IsConnected() {
		notes, err := gw.FetchNotes(limit, offset, filter)
		if err == nil {
			s.offline.ReplaceNotes(notes)
			logger.Infof("[数据服务] 从远程数据库读取 %d 条笔记", len(notes))
			return notes
		}
		logger.Warnf("[数据服务] 远程读取笔记失败, 改用离线缓存: %v", err)
	}

	var notes []database.NoteView
	if filter != nil && filter.SearchText != "" {
		notes = s.offline.SearchCachedNotes(filter.SearchText, limit)
	} else {
		notes = s.offline.CachedNotes(limit, offset)
	}
	logger.Infof("[数据服务] 从离线缓存读取 %d 条笔记", len(notes))
	return notes
}

// LoadMetadata 读取元数据
func (s *DataService) LoadMetadata() cache.Metadata {
	gw := s.Gateway()
	if !gw.IsConnected() {
		return s.offline.CachedMetadata()
	}

	lookups, err := gw.FetchLookups()
	if err != nil {
		logger.Warnf("[数据服务] 远程读取元数据失败, 改用离线缓存: %v", err)
		return s.offline.CachedMetadata()
	}
	md := cache.Metadata{
		Tracks:   lookups.Tracks,
		Series:   lookups.Series,
		Drivers:  lookups.Drivers,
		Sessions: lookups.Sessions,
		Tags:     lookups.Tags,
	}
	s.offline.ReplaceMetadata(md)
	return md
}

// LoadSessions 读取赛段
func (s *DataService) LoadSessions(trackID, seriesID string) []database.Session {
	gw := s.Gateway()
	if gw.IsConnected() {
		return gw.GetSessions(trackID, seriesID)
	}

	sessions := []database.Session{}
	for _, session := range s.offline.CachedSessions() {
		if trackID != "" && (session.TrackID == nil || *session.TrackID != trackID) {
			continue
		}
		if seriesID != "" && (session.SeriesID == nil || *session.SeriesID != seriesID) {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}

// CreateTag 创建标签
func (s *DataService) CreateTag(label string) (*database.Tag, error) {
	gw := s.Gateway()
	tag, err := gw.CreateTag(label)
	if err != nil {
		return nil, err
	}
	s.offline.ReplaceTags(gw.GetTags())
	return tag, nil
}

// CreateTrack 创建赛道
func (s *DataService) CreateTrack(name string, trackType database.TrackType) (*database.Track, error) {
	gw := s.Gateway()
	track, err := gw.CreateTrack(name, trackType)
	if err != nil {
		return nil, err
	}
	s.offline.ReplaceTracks(gw.GetTracks())
	return track, nil
}

// CreateSeries 创建系列赛
func (s *DataService) CreateSeries(name string) (*database.Series, error) {
	gw := s.Gateway()
	series, err := gw.CreateSeries(name)
	if err != nil {
		return nil, err
	}
	s.offline.ReplaceSeries(gw.GetSeries())
	return series, nil
}

// CreateDriver 创建车手
func (s *DataService) CreateDriver(name string) (*database.Driver, error) {
	gw := s.Gateway()
	driver, err := gw.CreateDriver(name)
	if err != nil {
		return nil, err
	}
	s.offline.ReplaceDrivers(gw.GetDrivers())
	return driver, nil
}

// CreateNote 提交笔记
func (s *DataService) CreateNote(req *CreateNoteRequest) (*CreateNoteResponse, error) {
	if err := database.ValidateStruct(&req.Note); err != nil {
		return nil, err
	}
	if err := database.ValidateStruct(&req.Context); err != nil {
		return nil, err
	}
	author := req.Author
	if author == "" {
		author = s.cfg.App.DefaultAuthor
	}

	gw := s.Gateway()
	if !gw.IsConnected() {
		entry, err := s.offline.QueueNote(cache.PendingNote{
			Note:       req.Note,
			Context:    req.Context,
			Author:     author,
			MediaFiles: req.MediaFiles,
		})
		if err != nil {
			return nil, err
		}
		s.metrics.NoteCreated(string(ModeQueued))
		logger.Infof("[数据服务] 未连接远程数据库, 笔记已加入 outbox: %s", entry.ID)
		return &CreateNoteResponse{Mode: ModeQueued, Outbox: entry}, nil
	}

	files := s.stagedOnly(req.MediaFiles)
	if uploader := s.Media(); uploader != nil && len(files) > 0 {
		logger.Infof("[数据服务] 笔记包含 %d 个附件", len(files))
		files = uploader.UploadMultipleFiles(files)
	}

	result, err := gw.CreateNoteWithContext(&req.Note, &req.Context, files, author)
	if err != nil {
		logger.Errorf("[数据服务] 笔记写入失败: %v", err)
		return nil, err
	}
	if result.Fallback {
		s.metrics.NoteCreated("fallback_view")
	} else {
		s.metrics.NoteCreated(string(ModeOnline))
	}
	if result.Partial() {
		logger.Warnf("[数据服务] 笔记 %s 已保存, 部分步骤失败: %s", result.NoteID, result.Summary())
	}
	return &CreateNoteResponse{Mode: ModeOnline, Result: result}, nil
}

// stagedOnly 过滤附件, 本地路径必须位于暂存目录内; 只携带地址的附件原样保留
func (s *DataService) stagedOnly(files []database.MediaFile) []database.MediaFile {
	kept := make([]database.MediaFile, 0, len(files))
	for _, f := range files {
		if f.Path != "" && !withinDir(s.cfg.Storage.StagingDir, f.Path) {
			logger.Warnf("[数据服务] 忽略暂存目录之外的附件: %s", f.Path)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func withinDir(dir, path string) bool {
	if dir == "" {
		return false
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SyncStatus 同步状态
func (s *DataService) SyncStatus() SyncStatus {
	status := SyncStatus{
		Connected:    s.IsConnected(),
		Stale:        s.offline.IsStale(0),
		PendingCount: s.offline.PendingCount(),
	}
	if last, ok := s.offline.LastSync(); ok {
		status.LastSync = &last
	}
	return status
}

// OutboxEntries 列出 outbox 条目
func (s *DataService) OutboxEntries() []cache.OutboxEntry {
	return s.offline.OutboxEntries()
}

// MarkNoteSynced 将 outbox 条目标记为已同步
// 重新连接后不会自动回放 outbox, 需要调用方逐条确认
func (s *DataService) MarkNoteSynced(id string) error {
	return s.offline.MarkNoteSynced(id)
}

// ClearSyncedNotes 删除已同步的 outbox 条目
func (s *DataService) ClearSyncedNotes() int {
	return s.offline.ClearSyncedNotes()
}

// Close 关闭远程连接, 离线缓存由创建方关闭
func (s *DataService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway.Close()
}
