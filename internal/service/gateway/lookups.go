package gateway

import (
	"errors"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/logger"
	"gorm.io/gorm"
)

// Lookups 一次读取的全部元数据
type Lookups struct {
	Tracks   []database.Track
	Series   []database.Series
	Drivers  []database.Driver
	Sessions []database.Session
	Tags     []database.Tag
}

// GetTracks 按名称排序返回全部赛道
func (g *RemoteGateway) GetTracks() []database.Track {
	tracks, _ := listOrdered[database.Track](g, "赛道", "name")
	return tracks
}

// GetSeries 按名称排序返回全部系列赛
func (g *RemoteGateway) GetSeries() []database.Series {
	series, _ := listOrdered[database.Series](g, "系列赛", "name")
	return series
}

// GetDrivers 按名称排序返回全部车手
func (g *RemoteGateway) GetDrivers() []database.Driver {
	drivers, _ := listOrdered[database.Driver](g, "车手", "name")
	return drivers
}

// GetTags 按标签文本排序返回全部标签
func (g *RemoteGateway) GetTags() []database.Tag {
	tags, _ := listOrdered[database.Tag](g, "标签", "label")
	return tags
}

// listOrdered 读取整表, 断开或出错时返回空集合和错误
func listOrdered[T any](g *RemoteGateway, what, orderBy string) ([]T, error) {
	rows := []T{}
	if !g.IsConnected() {
		return rows, apperrors.NewCode(apperrors.ErrNotConnected)
	}
	err := g.execute(func(db *gorm.DB) error {
		return db.Order(orderBy).Find(&rows).Error
	})
	if err != nil {
		logger.Errorf("[网关] 读取%s列表失败: %v", what, err)
		return []T{}, err
	}
	return rows, nil
}

// GetSessions 返回赛段列表, 最新日期在前
func (g *RemoteGateway) GetSessions(trackID, seriesID string) []database.Session {
	sessions, _ := g.fetchSessions(trackID, seriesID)
	return sessions
}

func (g *RemoteGateway) fetchSessions(trackID, seriesID string) ([]database.Session, error) {
	sessions := []database.Session{}
	if !g.IsConnected() {
		return sessions, apperrors.NewCode(apperrors.ErrNotConnected)
	}

	err := g.execute(func(db *gorm.DB) error {
		q := db.Model(&database.Session{})
		if trackID != "" {
			q = q.Where("track_id = ?", trackID)
		}
		if seriesID != "" {
			q = q.Where("series_id = ?", seriesID)
		}
		return q.Order("date DESC").Order("created_at DESC").Find(&sessions).Error
	})
	if err != nil {
		logger.Errorf("[网关] 读取赛段列表失败: %v", err)
		return []database.Session{}, err
	}
	return sessions, nil
}

// FetchLookups 读取全部元数据, 任何一张表读取失败都返回错误
func (g *RemoteGateway) FetchLookups() (*Lookups, error) {
	var (
		l   Lookups
		err error
	)
	if l.Tracks, err = listOrdered[database.Track](g, "赛道", "name"); err != nil {
		return nil, err
	}
	if l.Series, err = listOrdered[database.Series](g, "系列赛", "name"); err != nil {
		return nil, err
	}
	if l.Drivers, err = listOrdered[database.Driver](g, "车手", "name"); err != nil {
		return nil, err
	}
	if l.Sessions, err = g.fetchSessions("", ""); err != nil {
		return nil, err
	}
	if l.Tags, err = listOrdered[database.Tag](g, "标签", "label"); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateTag 幂等创建标签
// 先按label查找, 不存在时插入; 并发插入触发唯一约束时重新查询已有记录
func (g *RemoteGateway) CreateTag(label string) (*database.Tag, error) {
	if !g.IsConnected() {
		return nil, apperrors.NewCode(apperrors.ErrNotConnected)
	}
	label = strings.TrimSpace(label)
	if err := database.ValidateStruct(&database.Tag{Label: label}); err != nil {
		return nil, err
	}

	tag, created, err := findOrCreate(g,
		func(db *gorm.DB) *gorm.DB { return db.Where("label = ?", label) },
		func() *database.Tag { return &database.Tag{Label: label} },
	)
	if err != nil {
		logger.Errorf("[网关] 创建标签失败: %s, 错误: %v", label, err)
		return nil, apperrors.Wrap(apperrors.ErrRecordCreate, err)
	}
	if created {
		logger.Infof("[网关] 新建标签: %s", label)
	}
	return tag, nil
}

// CreateTrack 按名称查找或创建赛道
func (g *RemoteGateway) CreateTrack(name string, trackType database.TrackType) (*database.Track, error) {
	if !g.IsConnected() {
		return nil, apperrors.NewCode(apperrors.ErrNotConnected)
	}
	track, err := g.findOrCreateTrack(strings.TrimSpace(name), trackType)
	if err != nil {
		return nil, err
	}
	return track, nil
}

// CreateSeries 按名称查找或创建系列赛
func (g *RemoteGateway) CreateSeries(name string) (*database.Series, error) {
	if !g.IsConnected() {
		return nil, apperrors.NewCode(apperrors.ErrNotConnected)
	}
	return g.findOrCreateSeries(strings.TrimSpace(name))
}

// CreateDriver 创建车手, 不做去重
func (g *RemoteGateway) CreateDriver(name string) (*database.Driver, error) {
	if !g.IsConnected() {
		return nil, apperrors.NewCode(apperrors.ErrNotConnected)
	}
	driver := &database.Driver{Name: strings.TrimSpace(name)}
	if err := database.ValidateStruct(driver); err != nil {
		return nil, err
	}
	if err := g.execute(func(db *gorm.DB) error { return db.Create(driver).Error }); err != nil {
		logger.Errorf("[网关] 创建车手失败: %s, 错误: %v", driver.Name, err)
		return nil, apperrors.Wrap(apperrors.ErrRecordCreate, err)
	}
	logger.Infof("[网关] 新建车手: %s", driver.Name)
	return driver, nil
}

func (g *RemoteGateway) findOrCreateTrack(name string, trackType database.TrackType) (*database.Track, error) {
	if trackType == "" {
		trackType = database.DefaultTrackType
	}
	candidate := &database.Track{Name: name, Type: trackType}
	if err := database.ValidateStruct(candidate); err != nil {
		return nil, err
	}

	track, created, err := findOrCreate(g,
		func(db *gorm.DB) *gorm.DB { return db.Where("name = ?", name) },
		func() *database.Track { return candidate },
	)
	if err != nil {
		logger.Errorf("[网关] 解析赛道失败: %s, 错误: %v", name, err)
		return nil, apperrors.Wrap(apperrors.ErrTrackResolution, err)
	}
	if created {
		logger.Infof("[网关] 新建赛道: %s (%s)", track.Name, track.Type)
	}
	g.lookups.Set(trackKey(track.Name), track.ID, cache.DefaultExpiration)
	return track, nil
}

func (g *RemoteGateway) findOrCreateSeries(name string) (*database.Series, error) {
	candidate := &database.Series{Name: name}
	if err := database.ValidateStruct(candidate); err != nil {
		return nil, err
	}

	series, created, err := findOrCreate(g,
		func(db *gorm.DB) *gorm.DB { return db.Where("name = ?", name) },
		func() *database.Series { return candidate },
	)
	if err != nil {
		logger.Errorf("[网关] 解析系列赛失败: %s, 错误: %v", name, err)
		return nil, apperrors.Wrap(apperrors.ErrSeriesResolution, err)
	}
	if created {
		logger.Infof("[网关] 新建系列赛: %s", series.Name)
	}
	g.lookups.Set(seriesKey(series.Name), series.ID, cache.DefaultExpiration)
	return series, nil
}

// trackID 解析赛道ID, 优先使用内存中已确认存在的映射
func (g *RemoteGateway) trackID(name string) (string, error) {
	if id, ok := g.lookups.Get(trackKey(name)); ok {
		return id.(string), nil
	}
	track, err := g.findOrCreateTrack(name, database.DefaultTrackType)
	if err != nil {
		return "", err
	}
	return track.ID, nil
}

func (g *RemoteGateway) seriesID(name string) (string, error) {
	if id, ok := g.lookups.Get(seriesKey(name)); ok {
		return id.(string), nil
	}
	series, err := g.findOrCreateSeries(name)
	if err != nil {
		return "", err
	}
	return series.ID, nil
}

func trackKey(name string) string  { return "track:" + name }
func seriesKey(name string) string { return "series:" + name }

// findOrCreate 按自然键查找记录, 不存在时插入
// 插入失败时重新查询一次: 其他客户端可能刚刚创建了同一记录
// 返回的布尔值表示记录是否由本次调用创建
func findOrCreate[T any](g *RemoteGateway, scope func(*gorm.DB) *gorm.DB, build func() *T) (*T, bool, error) {
	var found T
	err := g.execute(func(db *gorm.DB) error {
		return scope(db).Take(&found).Error
	})
	if err == nil {
		return &found, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	row := build()
	createErr := g.execute(func(db *gorm.DB) error {
		return db.Create(row).Error
	})
	if createErr == nil {
		return row, true, nil
	}

	var existing T
	if err := g.execute(func(db *gorm.DB) error {
		return scope(db).Take(&existing).Error
	}); err == nil {
		logger.Debugf("[网关] 插入冲突, 使用已存在的记录: %v", createErr)
		return &existing, false, nil
	}
	return nil, false, createErr
}
