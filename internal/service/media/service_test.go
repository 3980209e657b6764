package media

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var uploadTime = time.Date(2024, time.February, 18, 10, 15, 0, 0, time.UTC)

// memoryProvider 内存中的对象存储
type memoryProvider struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	uploadErr    error
	urlErr       error
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (p *memoryProvider) Name() string { return "memory" }

func (p *memoryProvider) UploadFile(key string, r io.Reader, contentType string) error {
	if p.uploadErr != nil {
		return p.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = data
	p.contentTypes[key] = contentType
	return nil
}

func (p *memoryProvider) PublicURL(key string) (string, error) {
	if p.urlErr != nil {
		return "", p.urlErr
	}
	return "https://cdn.test/" + key, nil
}

func (p *memoryProvider) DeleteFile(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, key)
	return nil
}

func (p *memoryProvider) FileExists(key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.objects[key]
	return ok, nil
}

func (p *memoryProvider) TestConnection() error { return nil }

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
	return path
}

func newTestService(provider Provider, maxMB int64) *Service {
	cfg := config.StorageConfig{MaxFileSizeMB: maxMB}
	return NewService(provider, cfg, WithClock(func() time.Time { return uploadTime }))
}

func TestStorageKey(t *testing.T) {
	s := newTestService(newMemoryProvider(), 100)

	tests := map[string]string{
		"/tmp/Lap 12.mp4": "videos/2024/02/Lap 12_20240218_101500.mp4",
		"/tmp/tire.PNG":   "images/2024/02/tire_20240218_101500.PNG",
		"debrief.pdf":     "documents/2024/02/debrief_20240218_101500.pdf",
		"/data/stint.csv": "files/2024/02/stint_20240218_101500.csv",
		"/data/setup":     "files/2024/02/setup_20240218_101500",
	}
	for path, want := range tests {
		assert.Equal(t, want, s.StorageKey(path), path)
	}
}

func TestUploadFileSuccess(t *testing.T) {
	provider := newMemoryProvider()
	s := newTestService(provider, 100)
	path := writeFile(t, t.TempDir(), "onboard.mp4", 2048)

	url, err := s.UploadFile(path)
	require.NoError(t, err)

	key := "videos/2024/02/onboard_20240218_101500.mp4"
	assert.Equal(t, "https://cdn.test/"+key, url)
	assert.Len(t, provider.objects[key], 2048)
	assert.Equal(t, "video/mp4", provider.contentTypes[key])
}

func TestUploadFileErrors(t *testing.T) {
	dir := t.TempDir()
	small := writeFile(t, dir, "setup.png", 10)
	large := writeFile(t, dir, "big.mp4", 1024*1024+1)

	t.Run("missing file", func(t *testing.T) {
		_, err := newTestService(newMemoryProvider(), 100).UploadFile(filepath.Join(dir, "missing.mp4"))
		assert.ErrorIs(t, err, apperrors.ErrFileNotFoundError)
	})

	t.Run("too large", func(t *testing.T) {
		provider := newMemoryProvider()
		_, err := newTestService(provider, 1).UploadFile(large)
		assert.ErrorIs(t, err, apperrors.ErrFileTooLargeError)
		assert.Empty(t, provider.objects)
	})

	t.Run("no storage configured", func(t *testing.T) {
		_, err := newTestService(nil, 100).UploadFile(small)
		assert.ErrorIs(t, err, apperrors.ErrStorageUnavailableError)
	})

	t.Run("storage write fails", func(t *testing.T) {
		provider := newMemoryProvider()
		provider.uploadErr = stderrors.New("bucket quota exceeded")
		_, err := newTestService(provider, 100).UploadFile(small)
		assert.ErrorIs(t, err, apperrors.ErrUploadFailedError)
		assert.Contains(t, err.Error(), "bucket quota exceeded")
	})

	t.Run("public url unavailable", func(t *testing.T) {
		provider := newMemoryProvider()
		provider.urlErr = apperrors.NewCode(apperrors.ErrPublicURLUnavailable)
		url, err := newTestService(provider, 100).UploadFile(small)
		assert.Empty(t, url)
		assert.ErrorIs(t, err, apperrors.ErrUploadFailedError)
		assert.ErrorIs(t, err, apperrors.ErrPublicURLError)
		// 字节已经写入, 但仍视为上传失败
		assert.Len(t, provider.objects, 1)
	})
}

func TestUploadMultipleFilesDegradesPerFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "apex.jpg", 64)
	missing := filepath.Join(dir, "gone.csv")

	s := newTestService(newMemoryProvider(), 100)
	results := s.UploadMultipleFiles([]database.MediaFile{
		{Path: good},
		{Path: missing, Name: "gone.csv"},
	})
	require.Len(t, results, 2)

	assert.Equal(t, "https://cdn.test/images/2024/02/apex_20240218_101500.jpg", results[0].CloudURL)
	assert.Equal(t, database.StorageTypeCloud, results[0].StorageType)
	assert.Equal(t, "apex.jpg", results[0].Name)
	assert.Equal(t, int64(64), results[0].Size)
	assert.Equal(t, database.MediaTypeImage, results[0].MediaType)

	assert.Equal(t, "local://"+missing, results[1].CloudURL)
	assert.Equal(t, database.StorageTypeLocal, results[1].StorageType)
	assert.Equal(t, database.MediaTypeData, results[1].MediaType)
}

func TestUploadMultipleFilesKeepsExistingURLs(t *testing.T) {
	provider := newMemoryProvider()
	s := newTestService(provider, 100)

	results := s.UploadMultipleFiles([]database.MediaFile{
		{Name: "lap.mp4", CloudURL: "https://cdn.example.com/videos/lap.mp4"},
		{Name: "setup.pdf", CloudURL: "local:///data/uploads/setup.pdf"},
	})
	require.Len(t, results, 2)

	assert.Equal(t, "https://cdn.example.com/videos/lap.mp4", results[0].FileURL())
	assert.Equal(t, database.StorageTypeCloud, results[0].StorageType)
	assert.Equal(t, database.MediaTypeVideo, results[0].MediaType)

	assert.Equal(t, "local:///data/uploads/setup.pdf", results[1].FileURL())
	assert.Equal(t, database.StorageTypeLocal, results[1].StorageType)
	assert.Empty(t, provider.objects)
}

func TestUploadMultipleFilesWithoutStorage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "debrief.pdf", 32)
	results := newTestService(nil, 100).UploadMultipleFiles([]database.MediaFile{{Path: path}})

	require.Len(t, results, 1)
	assert.Equal(t, "local://"+path, results[0].FileURL())
	assert.Equal(t, database.StorageTypeLocal, results[0].StorageType)
	assert.Empty(t, newTestService(nil, 100).UploadMultipleFiles(nil))
}

func TestFileInfoAndSupport(t *testing.T) {
	s := newTestService(nil, 100)
	path := writeFile(t, t.TempDir(), "Telemetry.XLSX", 100)

	info, err := s.FileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "Telemetry.XLSX", info.Name)
	assert.Equal(t, ".xlsx", info.Ext)
	assert.Equal(t, int64(100), info.Size)
	assert.Equal(t, database.MediaTypeData, info.MediaType)

	_, err = s.FileInfo(filepath.Join(t.TempDir(), "nope.mp4"))
	assert.ErrorIs(t, err, apperrors.ErrFileNotFoundError)

	assert.True(t, s.IsSupportedFile("lap.webm"))
	assert.True(t, s.IsSupportedFile("NOTES.TXT"))
	assert.False(t, s.IsSupportedFile("setup.sto"))
	assert.False(t, s.Available())
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/quicktime", ContentType("a.MOV"))
	assert.Equal(t, "text/csv", ContentType("stint.csv"))
	assert.Equal(t, "application/octet-stream", ContentType("setup.zz9"))
}
