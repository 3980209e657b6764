// Package gateway 提供远程数据网关
// 将领域操作翻译为对远程数据库表和 note_view 视图的查询,
// 并负责赛段/赛道/系列赛的"查找或创建"解析
package gateway

import (
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker/v2"
	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/metrics"
	"gorm.io/gorm"
)

// DefaultAuthor 未提供作者时笔记记录的创建者
const DefaultAuthor = "anonymous"

// DefaultNotesLimit 未指定数量时读取的笔记条数
const DefaultNotesLimit = 50

// Gateway 远程数据网关接口
// Get* 读操作在断开或出错时返回空集合并记录日志; Fetch* 读操作额外返回错误
type Gateway interface {
	// IsConnected 远程数据库是否可用
	IsConnected() bool

	// Ping 检查远程数据库连通性
	Ping() error

	// GetTracks 按名称排序返回全部赛道
	GetTracks() []database.Track

	// GetSeries 按名称排序返回全部系列赛
	GetSeries() []database.Series

	// GetDrivers 按名称排序返回全部车手
	GetDrivers() []database.Driver

	// GetTags 按标签文本排序返回全部标签
	GetTags() []database.Tag

	// GetSessions 返回赛段列表, trackID/seriesID 为空时不过滤, 最新日期在前
	GetSessions(trackID, seriesID string) []database.Session

	// CreateTag 幂等创建标签, 已存在时返回已有记录
	CreateTag(label string) (*database.Tag, error)

	// CreateTrack 按名称查找或创建赛道, trackType 为空时使用默认类型
	CreateTrack(name string, trackType database.TrackType) (*database.Track, error)

	// CreateSeries 按名称查找或创建系列赛
	CreateSeries(name string) (*database.Series, error)

	// CreateDriver 创建不隶属任何系列赛的车手
	CreateDriver(name string) (*database.Driver, error)

	// GetNotes 从 note_view 读取笔记, 按创建时间倒序
	// 参数:
	//   limit - 返回数量, <=0 时使用 DefaultNotesLimit
	//   offset - 跳过的条数
	//   filter - 查询条件, 可为nil
	GetNotes(limit, offset int, filter *database.NoteFilter) []database.NoteView

	// FetchNotes 与 GetNotes 相同, 读取失败时返回错误, 调用方据此区分"没有笔记"和"读取失败"
	FetchNotes(limit, offset int, filter *database.NoteFilter) ([]database.NoteView, error)

	// FetchLookups 读取全部元数据, 任一表读取失败时返回错误
	FetchLookups() (*Lookups, error)

	// CreateNote 使用调用方给出的赛段和车手ID直接写入笔记并关联标签
	CreateNote(note *database.NoteCreate, author string) (*database.Note, error)

	// CreateNoteWithContext 笔记写入主流程
	// 依次执行: 解析或创建赛段 -> 写入笔记 -> 关联标签 -> 写入附件 -> 通过视图重新读取
	// 返回:
	//   *NoteCreateResult - 笔记视图以及失败的尽力而为步骤
	//   error - 仅在未连接、校验失败、赛段解析失败或笔记写入失败时返回
	CreateNoteWithContext(note *database.NoteCreate, noteCtx *database.ContextInfo, media []database.MediaFile, author string) (*NoteCreateResult, error)
}

// RemoteGateway 基于gorm的网关实现
type RemoteGateway struct {
	db      *gorm.DB
	breaker *gobreaker.CircuitBreaker[any]
	lookups *cache.Cache
	clock   func() time.Time
	metrics *metrics.Metrics
}

var _ Gateway = (*RemoteGateway)(nil)

// Option 网关可选配置
type Option func(*RemoteGateway)

// WithClock 指定赛段日期使用的时钟
func WithClock(clock func() time.Time) Option {
	return func(g *RemoteGateway) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *RemoteGateway) {
		g.metrics = m
	}
}

// New 使用已建立的数据库连接创建网关
// db 为nil时网关处于离线状态, 所有操作按断开处理
func New(db *gorm.DB, cfg config.DatabaseConfig, opts ...Option) *RemoteGateway {
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	lookupTTL := cfg.LookupCacheTTL
	if lookupTTL <= 0 {
		lookupTTL = 10 * time.Minute
	}

	g := &RemoteGateway{
		db:      db,
		lookups: cache.New(lookupTTL, 2*lookupTTL),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "remote-gateway",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// 未找到记录和唯一约束冲突属于正常业务结果, 不计入连接失败
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, gorm.ErrRecordNotFound) ||
				errors.Is(err, gorm.ErrDuplicatedKey)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("[网关] 连接状态变化: %s -> %s", from.String(), to.String())
			g.metrics.SetBreakerState(breakerStateValue(to))
		},
	})
	return g
}

// Connect 按配置打开远程数据库并创建网关
// DSN为空时返回离线网关; 连接失败时同样返回离线网关以及错误
func Connect(cfg config.DatabaseConfig, opts ...Option) (*RemoteGateway, error) {
	if cfg.DSN == "" {
		logger.Info("[网关] 未配置远程数据库, 以离线模式运行")
		return New(nil, cfg, opts...), nil
	}

	db, err := database.Init(cfg)
	if err != nil {
		logger.Errorf("[网关] 连接远程数据库失败: %v", err)
		return New(nil, cfg, opts...), apperrors.Wrap(apperrors.ErrDatabaseConnection, err)
	}
	return New(db, cfg, opts...), nil
}

// DB 返回底层连接, 离线时为nil
func (g *RemoteGateway) DB() *gorm.DB {
	return g.db
}

// Close 关闭底层连接
func (g *RemoteGateway) Close() error {
	if g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsConnected 存在连接且熔断器未断开
func (g *RemoteGateway) IsConnected() bool {
	return g.db != nil && g.breaker.State() != gobreaker.StateOpen
}

// Ping 检查远程数据库连通性
func (g *RemoteGateway) Ping() error {
	return g.execute(func(db *gorm.DB) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
}

// execute 通过熔断器执行一次数据库调用
func (g *RemoteGateway) execute(fn func(db *gorm.DB) error) error {
	if g.db == nil {
		return apperrors.NewCode(apperrors.ErrNotConnected)
	}

	_, err := g.breaker.Execute(func() (any, error) {
		return nil, fn(g.db)
	})
	switch {
	case err == nil:
		g.metrics.GatewayRequest("success")
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		g.metrics.GatewayRequest("rejected")
		return apperrors.Wrap(apperrors.ErrNotConnected, err)
	default:
		g.metrics.GatewayRequest("failure")
	}
	return err
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
