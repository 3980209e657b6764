package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		require.NoError(t, Init(nil))
		assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
		assert.IsType(t, ginWriter{}, gin.DefaultWriter)
	})

	t.Run("无效级别回退到info", func(t *testing.T) {
		require.NoError(t, Init(&Config{Level: "loud", Format: "json", Output: "console"}))
		assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, Logger.Formatter)
	})

	t.Run("输出到文件", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "app.log")
		require.NoError(t, Init(&Config{Level: "debug", Format: "text", Output: "file", FilePath: path}))

		Infof("[测试] 写入文件 %d", 1)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "[测试] 写入文件 1")
	})
}

func TestGinOutputForwarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gin.log")
	require.NoError(t, Init(&Config{Level: "info", Format: "text", Output: "file", FilePath: path}))

	_, err := gin.DefaultWriter.Write([]byte("[GIN-debug] GET /health\n"))
	require.NoError(t, err)
	_, err = gin.DefaultWriter.Write([]byte("\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=gin")
	assert.Contains(t, string(data), "GET /health")
	assert.Equal(t, 1, strings.Count(string(data), "component=gin"))
}
