package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/racenotes/internal/i18n"
)

func TestWrapAndIs(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("upload photo: %w", Wrap(ErrUploadFailed, cause))

	assert.True(t, stderrors.Is(err, ErrUploadFailedError))
	assert.False(t, stderrors.Is(err, ErrFileTooLargeError))
	assert.True(t, stderrors.Is(err, cause), "原始错误应保留在错误链中")

	appErr, ok := GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrUploadFailed, appErr.Code)
	assert.Equal(t, "disk full", appErr.Details)
	assert.Equal(t, ErrUploadFailed, CodeOf(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrSuccess, CodeOf(nil))
	assert.Equal(t, ErrInternalServer, CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrSessionResolution, CodeOf(NewCode(ErrSessionResolution)))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "File Too Large", GetErrorMessageWithLang(ErrFileTooLarge, i18n.LangEnUS))
	assert.Equal(t, "文件大小超限", GetErrorMessageWithLang(ErrFileTooLarge, i18n.LangZhCN))
	assert.Equal(t, "Unknown Error", GetErrorMessageWithLang(ErrorCode(9999), i18n.LangEnUS))

	err := Newf(ErrFileNotFound, "missing %s", "lap.mp4")
	assert.Equal(t, "[3000] File Not Found: missing lap.mp4", err.Error())
}
