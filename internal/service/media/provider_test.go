package media

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiwangfds/racenotes/config"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
)

func TestProviderFactory(t *testing.T) {
	factory := &ProviderFactory{}

	p, err := factory.CreateProvider(config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = factory.CreateProvider(config.StorageConfig{Provider: "s3"})
	assert.Equal(t, apperrors.ErrStorageProviderNotSupported, apperrors.CodeOf(err))

	_, err = factory.CreateProvider(config.StorageConfig{Provider: "qiniu"})
	assert.Equal(t, apperrors.ErrStorageConfigInvalid, apperrors.CodeOf(err))

	p, err = factory.CreateProvider(config.StorageConfig{Provider: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())
}

func TestLocalProvider(t *testing.T) {
	root := t.TempDir()
	p, err := NewLocalProvider(config.StorageConfig{LocalDir: root})
	require.NoError(t, err)
	require.NoError(t, p.TestConnection())

	key := "images/2024/02/apex_20240218_101500.jpg"
	require.NoError(t, p.UploadFile(key, strings.NewReader("jpeg"), "image/jpeg"))

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	exists, err := p.FileExists(key)
	require.NoError(t, err)
	assert.True(t, exists)

	// 未配置公开地址
	_, err = p.PublicURL(key)
	assert.ErrorIs(t, err, apperrors.ErrPublicURLError)

	require.NoError(t, p.DeleteFile(key))
	require.NoError(t, p.DeleteFile(key))
	exists, err = p.FileExists(key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalProviderKeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	p, err := NewLocalProvider(config.StorageConfig{LocalDir: root})
	require.NoError(t, err)

	require.NoError(t, p.UploadFile("../../escape.txt", strings.NewReader("x"), ""))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)

	_, err = p.objectPath("/")
	assert.Error(t, err)
}

func TestLocalProviderPublicURL(t *testing.T) {
	p, err := NewLocalProvider(config.StorageConfig{
		LocalDir:      t.TempDir(),
		PublicBaseURL: "http://localhost:8080/media/",
	})
	require.NoError(t, err)

	url, err := p.PublicURL("videos/2024/02/lap_20240218_101500.mp4")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/videos/2024/02/lap_20240218_101500.mp4", url)
}

func TestLocalProviderThroughService(t *testing.T) {
	root := t.TempDir()
	p, err := NewLocalProvider(config.StorageConfig{LocalDir: root, PublicBaseURL: "http://notes.test/media"})
	require.NoError(t, err)

	s := newTestService(p, 100)
	src := writeFile(t, t.TempDir(), "stint.csv", 12)

	url, err := s.UploadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "http://notes.test/media/files/2024/02/stint_20240218_101500.csv", url)
	assert.FileExists(t, filepath.Join(root, "files", "2024", "02", "stint_20240218_101500.csv"))
}

func TestTencentCOSProvider(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, err := NewTencentCOSProvider(config.StorageConfig{
		Bucket:    "racing-notes-1250000000",
		Region:    "ap-guangzhou",
		AccessKey: "AKID",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	key := "videos/2024/02/lap_20240218_101500.mp4"
	objectURL := "https://racing-notes-1250000000.cos.ap-guangzhou.myqcloud.com/" + key

	var gotType, gotBody string
	httpmock.RegisterResponder(http.MethodPut, objectURL, func(req *http.Request) (*http.Response, error) {
		gotType = req.Header.Get("Content-Type")
		body, _ := io.ReadAll(req.Body)
		gotBody = string(body)
		resp := httpmock.NewStringResponse(http.StatusOK, "")
		resp.Header.Set("ETag", `"5d41402abc4b2a76b9719d911017c592"`)
		return resp, nil
	})
	httpmock.RegisterResponder(http.MethodHead, objectURL, httpmock.NewStringResponder(http.StatusOK, ""))

	require.NoError(t, p.UploadFile(key, strings.NewReader("hello"), "video/mp4"))
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, "hello", gotBody)

	exists, err := p.FileExists(key)
	require.NoError(t, err)
	assert.True(t, exists)

	url, err := p.PublicURL(key)
	require.NoError(t, err)
	assert.Equal(t, objectURL, url)
}

func TestTencentCOSUploadFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	p, err := NewTencentCOSProvider(config.StorageConfig{
		Bucket:    "racing-notes-1250000000",
		Region:    "ap-guangzhou",
		AccessKey: "AKID",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	httpmock.RegisterNoResponder(httpmock.NewStringResponder(http.StatusForbidden,
		`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))

	err = p.UploadFile("images/a.png", strings.NewReader("png"), "image/png")
	assert.Error(t, err)
}

func TestAliyunPublicURL(t *testing.T) {
	p, err := NewAliyunOSSProvider(config.StorageConfig{
		Bucket:    "racing-notes",
		Region:    "cn-hangzhou",
		AccessKey: "id",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	url, err := p.PublicURL("images/2024/02/apex.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://racing-notes.oss-cn-hangzhou.aliyuncs.com/images/2024/02/apex.jpg", url)
}

func TestQiniuPublicURL(t *testing.T) {
	base := config.StorageConfig{
		Bucket:    "racing-notes",
		Region:    "z0",
		AccessKey: "ak",
		SecretKey: "sk",
	}

	withDomain := base
	withDomain.Endpoint = "cdn.racing-notes.test"
	p, err := NewQiniuKodoProvider(withDomain)
	require.NoError(t, err)
	url, err := p.PublicURL("documents/2024/02/debrief.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.racing-notes.test/documents/2024/02/debrief.pdf", url)

	p, err = NewQiniuKodoProvider(base)
	require.NoError(t, err)
	_, err = p.PublicURL("documents/2024/02/debrief.pdf")
	assert.ErrorIs(t, err, apperrors.ErrPublicURLError)

	unknown := base
	unknown.Region = "mars-1"
	_, err = NewQiniuKodoProvider(unknown)
	assert.Equal(t, apperrors.ErrStorageConfigInvalid, apperrors.CodeOf(err))
}
