// Package logger 提供全局logrus日志实例
// 各组件通过包级函数输出日志, 日志内容以 "[组件名]" 作为前缀
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger 全局日志实例
var Logger *logrus.Logger

// Fields 日志字段
type Fields = logrus.Fields

// Config 日志配置结构体
type Config struct {
	// Level 日志级别 (debug, info, warn, error)
	Level string `mapstructure:"level" json:"level"`
	// Format 日志格式 (json, text)
	Format string `mapstructure:"format" json:"format"`
	// Output 输出方式 (console, file, both)
	Output string `mapstructure:"output" json:"output"`
	// FilePath 日志文件路径, Output为file或both时生效
	FilePath string `mapstructure:"file_path" json:"file_path"`
}

// DefaultConfig 返回默认日志配置
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/racenotes.log",
	}
}

// Init 初始化日志系统
// 参数:
//   - config: 日志配置，如果为nil则使用默认配置
//
// 返回值:
//   - error: 日志文件无法创建时返回
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		l.Warnf("无效的日志级别 '%s'，使用默认级别 'info'", config.Level)
	}
	l.SetLevel(level)

	switch config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	default:
		if config.Format != "" && config.Format != "text" {
			l.Warnf("无效的日志格式 '%s'，使用默认格式 'text'", config.Format)
		}
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	out, err := openOutput(config)
	if err != nil {
		return err
	}
	l.SetOutput(out)

	Logger = l
	setupGinLogger()

	Logger.Debug("日志系统初始化完成")
	return nil
}

// openOutput 按配置构造输出目标
func openOutput(config *Config) (io.Writer, error) {
	switch config.Output {
	case "", "console":
		return os.Stdout, nil
	case "file", "both":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, err
		}
		logFile, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		if config.Output == "file" {
			return logFile, nil
		}
		return io.MultiWriter(os.Stdout, logFile), nil
	default:
		return os.Stdout, nil
	}
}

// setupGinLogger 将Gin的输出重定向到logrus
func setupGinLogger() {
	w := ginWriter{entry: Logger.WithField("component", "gin")}
	gin.DefaultWriter = w
	gin.DefaultErrorWriter = w
}

// ginWriter 逐行转发Gin的输出
type ginWriter struct {
	entry *logrus.Entry
}

func (w ginWriter) Write(p []byte) (int, error) {
	if line := strings.TrimRight(string(p), "\r\n"); line != "" {
		w.entry.Info(line)
	}
	return len(p), nil
}

// current 当前日志实例, 未初始化时按默认配置初始化
func current() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			return logrus.StandardLogger()
		}
	}
	return Logger
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }

func Info(args ...interface{}) { current().Info(args...) }

func Infof(format string, args ...interface{}) { current().Infof(format, args...) }

func Warn(args ...interface{}) { current().Warn(args...) }

func Warnf(format string, args ...interface{}) { current().Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// Fatalf 记录日志后退出进程
func Fatalf(format string, args ...interface{}) { current().Fatalf(format, args...) }

// WithField 带单个字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return current().WithField(key, value)
}

// WithFields 带多个字段的日志条目, 请求日志使用
func WithFields(fields Fields) *logrus.Entry {
	return current().WithFields(fields)
}
