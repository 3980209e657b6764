// Package router 组装gin引擎
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/handler"
	"github.com/weiwangfds/racenotes/internal/metrics"
	"github.com/weiwangfds/racenotes/internal/middleware"
	"github.com/weiwangfds/racenotes/internal/response"
	"github.com/weiwangfds/racenotes/internal/service/note"
)

// Router 路由配置
type Router struct {
	engine *gin.Engine
}

// NewRouter 创建路由实例
// 参数:
//   - cfg: 应用配置
//   - notes: 笔记数据服务
//   - m: 指标, 为nil时不注册 /metrics
func NewRouter(cfg *config.Config, notes note.NoteService, m *metrics.Metrics) *Router {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	engine := gin.New()

	noteHandler := handler.NewNoteHandler(notes, cfg.Storage.StagingDir)
	tagHandler := handler.NewTagHandler(notes)
	metadataHandler := handler.NewMetadataHandler(notes)
	syncHandler := handler.NewSyncHandler(notes)

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	// 配置CORS
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept-Language", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        86400,
	}))

	engine.NoRoute(func(c *gin.Context) {
		response.NotFound(c, c.Request.URL.Path)
	})

	engine.GET("/health", syncHandler.Health)
	if m != nil {
		engine.GET("/metrics", gin.WrapH(m.Handler()))
	}
	// local 提供商的文件由本服务直接提供
	if cfg.Storage.Provider == "local" && cfg.Storage.LocalDir != "" {
		engine.Static("/media", cfg.Storage.LocalDir)
	}

	api := engine.Group("/api/v1")
	{
		notesGroup := api.Group("/notes")
		{
			notesGroup.GET("", noteHandler.ListNotes)
			notesGroup.POST("", noteHandler.CreateNote)
		}

		api.GET("/tracks", metadataHandler.ListTracks)
		api.POST("/tracks", metadataHandler.CreateTrack)
		api.GET("/series", metadataHandler.ListSeries)
		api.POST("/series", metadataHandler.CreateSeries)
		api.GET("/drivers", metadataHandler.ListDrivers)
		api.POST("/drivers", metadataHandler.CreateDriver)
		api.GET("/sessions", metadataHandler.ListSessions)
		api.GET("/tags", tagHandler.ListTags)
		api.POST("/tags", tagHandler.CreateTag)

		api.GET("/sync/status", syncHandler.Status)

		outbox := api.Group("/outbox")
		{
			outbox.GET("", syncHandler.ListOutbox)
			outbox.POST("/:id/synced", syncHandler.MarkSynced)
			outbox.DELETE("/synced", syncHandler.ClearSynced)
		}
	}

	return &Router{engine: engine}
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
