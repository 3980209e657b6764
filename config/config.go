// Package config 负责加载应用配置
// 配置来源按优先级依次为: 环境变量(RACENOTES_前缀) > 配置文件 > 默认值
// 加载结果是一个显式构造的 *Config, 由调用方逐个传入各组件
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/weiwangfds/racenotes/internal/logger"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "RACENOTES"

// Config 应用总配置
type Config struct {
	App     AppConfig      `mapstructure:"app"`
	Server  ServerConfig   `mapstructure:"server"`
	Log     logger.Config  `mapstructure:"log"`
	Remote  DatabaseConfig `mapstructure:"remote"`
	Storage StorageConfig  `mapstructure:"storage"`
	Cache   CacheConfig    `mapstructure:"cache"`
}

// AppConfig 应用级配置
type AppConfig struct {
	Name          string   `mapstructure:"name"`
	Version       string   `mapstructure:"version"`
	Language      string   `mapstructure:"language"`       // 错误消息默认语言 (en-US, zh-CN)
	DefaultAuthor string   `mapstructure:"default_author"` // 未指定作者时使用
	DefaultTags   []string `mapstructure:"default_tags"`   // 远程库初始化时写入的标签
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`          // gin运行模式: debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int    `mapstructure:"write_timeout"` // 秒
	EnableHTTPS  bool   `mapstructure:"enable_https"`
	EnableHTTP2  bool   `mapstructure:"enable_http2"`
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`
}

// DatabaseConfig 远程数据库配置
// DSN为空时服务以离线模式运行
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // sqlite, mysql
	DSN             string `mapstructure:"dsn"`
	LogLevel        string `mapstructure:"log_level"` // gorm日志级别: silent, error, warn, info
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒, 0表示不限制

	// BreakerFailureThreshold 连续失败多少次后判定为断开
	BreakerFailureThreshold uint32 `mapstructure:"breaker_failure_threshold"`
	// BreakerOpenTimeout 断开后多久允许试探请求
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
	// LookupCacheTTL 赛道/系列名称到ID映射的缓存时间
	LookupCacheTTL time.Duration `mapstructure:"lookup_cache_ttl"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	Provider      string `mapstructure:"provider"` // aliyun, tencent, qiniu, local, 为空表示不上传
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	PublicBaseURL string `mapstructure:"public_base_url"` // 设置后覆盖提供商默认的公开URL
	LocalDir      string `mapstructure:"local_dir"`       // local提供商的存储根目录
	StagingDir    string `mapstructure:"staging_dir"`     // HTTP上传文件的暂存目录
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
}

// MaxFileSizeBytes 单文件上限(字节)
func (s StorageConfig) MaxFileSizeBytes() int64 {
	return s.MaxFileSizeMB * 1024 * 1024
}

// CacheConfig 离线缓存配置
type CacheConfig struct {
	Dir         string `mapstructure:"dir"`
	SizeLimit   int    `mapstructure:"size_limit"`    // 笔记镜像最多保留条数
	MaxAgeHours int    `mapstructure:"max_age_hours"` // 超过该时长未同步视为过期
	InMemory    bool   `mapstructure:"in_memory"`
}

// MaxAge 过期阈值
func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// DefaultTags 远程库初始化时写入的默认标签
var DefaultTags = []string{
	"Qualifying", "Restart", "Entry", "Exit", "Min Speed", "Proximity", "Angle",
	"Shape", "Pass", "Aero", "Pit Road", "Green Pit Entry", "Green Pit Exit",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Racing Notes")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.language", "en-US")
	v.SetDefault("app.default_author", "anonymous")
	v.SetDefault("app.default_tags", DefaultTags)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/racenotes.log")

	v.SetDefault("remote.driver", "sqlite")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.log_level", "warn")
	v.SetDefault("remote.max_idle_conns", 5)
	v.SetDefault("remote.max_open_conns", 10)
	v.SetDefault("remote.conn_max_lifetime", 0)
	v.SetDefault("remote.breaker_failure_threshold", 5)
	v.SetDefault("remote.breaker_open_timeout", "30s")
	v.SetDefault("remote.lookup_cache_ttl", "10m")

	v.SetDefault("storage.provider", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.bucket", "racing-notes-media")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.local_dir", "data/media")
	v.SetDefault("storage.staging_dir", "data/uploads")
	v.SetDefault("storage.max_file_size_mb", 100)

	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("cache.size_limit", 1000)
	v.SetDefault("cache.max_age_hours", 24)
	v.SetDefault("cache.in_memory", false)
}

// Load 加载配置
// 参数:
//   - path: 配置文件路径, 为空时在当前目录和 ./config 下查找 config.(yaml|toml|json), 找不到则只用默认值
//
// 返回值:
//   - *Config: 配置对象
//   - error: 配置文件解析失败或校验失败
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 兼容旧版部署使用的 LOG_LEVEL
	if err := v.BindEnv("log.level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.Remote.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported remote driver: %q", c.Remote.Driver)
	}

	switch c.Storage.Provider {
	case "", "aliyun", "tencent", "qiniu", "local":
	default:
		return fmt.Errorf("unsupported storage provider: %q", c.Storage.Provider)
	}

	if c.Storage.MaxFileSizeMB <= 0 {
		return fmt.Errorf("storage.max_file_size_mb must be positive, got %d", c.Storage.MaxFileSizeMB)
	}
	if c.Cache.SizeLimit <= 0 {
		return fmt.Errorf("cache.size_limit must be positive, got %d", c.Cache.SizeLimit)
	}
	if c.Cache.MaxAgeHours <= 0 {
		return fmt.Errorf("cache.max_age_hours must be positive, got %d", c.Cache.MaxAgeHours)
	}
	if c.Server.EnableHTTPS && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file are required when https is enabled")
	}
	return nil
}

// IsOffline 未配置远程数据库时返回true
func (c *Config) IsOffline() bool {
	return strings.TrimSpace(c.Remote.DSN) == ""
}
