package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlite 文件库启用WAL模式和其他优化选项
const sqliteFileParams = "_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=5000&_busy_timeout=5000&_foreign_keys=on"

// Init 初始化远程数据库连接并完成迁移
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// 对于SQLite，限制并发连接数以避免锁定问题, 内存库也依赖单连接共享同一份数据
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	logger.Infof("[数据库] 已连接远程数据库, 驱动: %s", cfg.Driver)
	return db, nil
}

func openDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(sqliteDSN(cfg.DSN)), nil
	case "mysql":
		dsn := cfg.DSN
		if !strings.Contains(dsn, "parseTime") {
			dsn = appendParams(dsn, "parseTime=true&charset=utf8mb4&loc=UTC")
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// sqliteDSN 为文件库追加WAL参数, 内存库保持原样
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return dsn
	}
	return appendParams(dsn, sqliteFileParams)
}

func appendParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

func parseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// IsMySQL 判断连接是否使用MySQL方言
func IsMySQL(db *gorm.DB) bool {
	return db != nil && db.Dialector.Name() == "mysql"
}
