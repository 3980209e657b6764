package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaTypeFromPath(t *testing.T) {
	tests := map[string]MediaType{
		"onboard.mp4":                 MediaTypeVideo,
		"local:///tmp/Pit Lane.MOV":   MediaTypeVideo,
		"https://cdn/x/setup.png?v=2": MediaTypeImage,
		"telemetry.csv":               MediaTypeData,
		"fuel.xlsx":                   MediaTypeData,
		"debrief.pdf":                 MediaTypeDocument,
		"notes.txt":                   MediaTypeDocument,
		"archive.zip":                 MediaTypeOther,
		"no-extension":                MediaTypeOther,
		`C:\laps\lap12.jpeg`:          MediaTypeImage,
	}
	for path, want := range tests {
		assert.Equal(t, want, MediaTypeFromPath(path), path)
	}
}

func TestParseEnums(t *testing.T) {
	st, ok := ParseSessionType("qualifying")
	assert.True(t, ok)
	assert.Equal(t, SessionTypeQualifying, st)

	tt, ok := ParseTrackType("short-track")
	assert.True(t, ok)
	assert.Equal(t, TrackTypeShortTrack, tt)

	nc, ok := ParseNoteCategory("driver_specific")
	assert.True(t, ok)
	assert.Equal(t, NoteCategoryDriverSpecific, nc)

	_, ok = ParseMediaType("audio")
	assert.False(t, ok)
}

func TestMediaFileHelpers(t *testing.T) {
	f := MediaFile{Path: "/tmp/laps/onboard.mp4", Size: 5 * 1024 * 1024 / 2}
	assert.Equal(t, 2.5, f.SizeMB())
	assert.Equal(t, "local:///tmp/laps/onboard.mp4", f.FileURL())
	assert.Equal(t, MediaTypeVideo, f.ResolvedMediaType())
	assert.Equal(t, "onboard.mp4", f.DisplayName())

	f.CloudURL = "https://cdn.example.com/videos/2024/02/onboard_20240218_101500.mp4"
	assert.Equal(t, f.CloudURL, f.FileURL())

	f.MediaType = MediaTypeData
	assert.Equal(t, MediaTypeData, f.ResolvedMediaType())
}

func TestNoteFilterIsEmpty(t *testing.T) {
	var nilFilter *NoteFilter
	assert.True(t, nilFilter.IsEmpty())
	assert.True(t, (&NoteFilter{SearchText: "  "}).IsEmpty())
	assert.False(t, (&NoteFilter{TrackIDs: []string{"a"}}).IsEmpty())
}
