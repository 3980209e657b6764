package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weiwangfds/racenotes/internal/database"
)

func strPtr(s string) *string { return &s }

func TestDecodeMediaLegacyAndStructuredAgree(t *testing.T) {
	legacy := strPtr(`["https://cdn/videos/2024/02/lap_20240218_101500.mp4","https://cdn/images/2024/02/tire_20240218_101501.png","local:///tmp/stint.csv","https://cdn/documents/2024/02/debrief.pdf","https://cdn/files/2024/02/setup.sto"]`)
	structured := strPtr(`[
		{"file_url":"https://cdn/videos/2024/02/lap_20240218_101500.mp4","media_type":"video","filename":"lap_20240218_101500.mp4"},
		{"file_url":"https://cdn/images/2024/02/tire_20240218_101501.png","media_type":"image","filename":"tire_20240218_101501.png"},
		{"file_url":"local:///tmp/stint.csv","media_type":"csv","filename":"stint.csv"},
		{"file_url":"https://cdn/documents/2024/02/debrief.pdf","media_type":"document","filename":"debrief.pdf"},
		{"file_url":"https://cdn/files/2024/02/setup.sto","media_type":"other","filename":"setup.sto"}
	]`)

	fromLegacy := decodeMedia(nil, legacy)
	fromStructured := decodeMedia(structured, nil)

	assert.Equal(t, fromStructured, fromLegacy)
	want := []database.MediaType{
		database.MediaTypeVideo,
		database.MediaTypeImage,
		database.MediaTypeData,
		database.MediaTypeDocument,
		database.MediaTypeOther,
	}
	for i, info := range fromLegacy {
		assert.Equal(t, want[i], info.MediaType, info.FileURL)
	}
	assert.Equal(t, "stint.csv", fromLegacy[2].Filename)
}

func TestDecodeMediaPrefersStructured(t *testing.T) {
	structured := strPtr(`[{"file_url":"https://cdn/a.png","media_type":"image","filename":"front wing.png"}]`)
	legacy := strPtr(`["https://cdn/ignored.mp4"]`)

	infos := decodeMedia(structured, legacy)
	assert.Equal(t, []database.MediaInfo{{FileURL: "https://cdn/a.png", MediaType: database.MediaTypeImage, Filename: "front wing.png"}}, infos)
}

func TestDecodeMediaFallsBackToLegacy(t *testing.T) {
	tests := []struct {
		name       string
		structured *string
	}{
		{"missing column", nil},
		{"empty array", strPtr(`[]`)},
		{"null urls only", strPtr(`[{"file_url":null,"media_type":null,"filename":null}]`)},
		{"malformed", strPtr(`{not json`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			infos := decodeMedia(tt.structured, strPtr(`["https://cdn/onboard.MOV", null, ""]`))
			assert.Equal(t, []database.MediaInfo{{FileURL: "https://cdn/onboard.MOV", MediaType: database.MediaTypeVideo, Filename: "onboard.MOV"}}, infos)
		})
	}
}

func TestDecodeMediaEmpty(t *testing.T) {
	assert.Empty(t, decodeMedia(nil, nil))
	assert.Empty(t, decodeMedia(strPtr(`[]`), strPtr(`[]`)))
	assert.NotNil(t, decodeMedia(nil, nil))
}

func TestStructuredMediaTypeInference(t *testing.T) {
	assert.Equal(t, database.MediaTypeImage, structuredMediaType(nil, "x.jpg"))
	assert.Equal(t, database.MediaTypeData, structuredMediaType(strPtr("CSV"), "x.bin"))
	assert.Equal(t, database.MediaTypeOther, structuredMediaType(strPtr("audio"), "x.mp3"))
	assert.Equal(t, database.MediaTypeVideo, structuredMediaType(strPtr("Video"), "x"))
}

func TestDecodeTags(t *testing.T) {
	assert.Equal(t, []string{"Setup", "Strategy"}, decodeTags(strPtr(`["Setup", null, "Strategy"]`)))
	assert.Equal(t, []string{}, decodeTags(nil))
	assert.Equal(t, []string{}, decodeTags(strPtr(`oops`)))
}
