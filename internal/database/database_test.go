package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/racenotes/config"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Init(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestInitCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	for _, model := range AllModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}

	var count int64
	require.NoError(t, db.Table(NoteViewName).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInitUnsupportedDriver(t *testing.T) {
	_, err := Init(config.DatabaseConfig{Driver: "postgres", DSN: "x"})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN("file::memory:?cache=shared"))
	assert.Equal(t, "notes.db?"+sqliteFileParams, sqliteDSN("notes.db"))
	assert.Equal(t, "notes.db?mode=rwc&"+sqliteFileParams, sqliteDSN("notes.db?mode=rwc"))
}

func TestUniqueConstraints(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Create(&Tag{Label: "Setup"}).Error)
	err := db.Create(&Tag{Label: "Setup"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	trackID := "8c1f3f51-6a38-4c2f-9d34-4b1b5a3f7a10"
	seriesID := "4e2a8c8d-1f73-4b8e-8a0e-1d7b4c6f9e21"
	first := Session{Date: "2024-02-18", Kind: SessionTypePractice, TrackID: &trackID, SeriesID: &seriesID}
	require.NoError(t, db.Create(&first).Error)
	dup := Session{Date: "2024-02-18", Kind: SessionTypePractice, TrackID: &trackID, SeriesID: &seriesID}
	assert.ErrorIs(t, db.Create(&dup).Error, gorm.ErrDuplicatedKey)
}

func TestNoteViewAggregates(t *testing.T) {
	db := openTestDB(t)

	track := Track{Name: "Daytona", Type: TrackTypeSuperspeedway}
	series := Series{Name: "CUP"}
	require.NoError(t, db.Create(&track).Error)
	require.NoError(t, db.Create(&series).Error)
	session := Session{Date: "2024-02-18", Kind: SessionTypeRace, TrackID: &track.ID, SeriesID: &series.ID}
	require.NoError(t, db.Create(&session).Error)
	tag := Tag{Label: "Tire Wear"}
	require.NoError(t, db.Create(&tag).Error)

	note := Note{Body: "Loose off turn 4", Shared: false, SessionID: &session.ID, Category: NoteCategoryGeneral, CreatedBy: "crew"}
	require.NoError(t, db.Create(&note).Error)
	require.NoError(t, db.Create(&NoteTag{NoteID: note.ID, TagID: tag.ID}).Error)
	require.NoError(t, db.Create(&Media{NoteID: note.ID, FileURL: "https://cdn/x.png", MediaType: MediaTypeImage, Filename: "x.png"}).Error)

	var row struct {
		TrackName   string
		SeriesName  string
		SessionType string
		Shared      bool
		Tags        string
		MediaFiles  string
		MediaURLs   string `gorm:"column:media_urls"`
	}
	require.NoError(t, db.Table(NoteViewName).Where("id = ?", note.ID).Take(&row).Error)

	assert.Equal(t, "Daytona", row.TrackName)
	assert.Equal(t, "CUP", row.SeriesName)
	assert.Equal(t, "Race", row.SessionType)
	assert.False(t, row.Shared)
	assert.JSONEq(t, `["Tire Wear"]`, row.Tags)
	assert.JSONEq(t, `[{"file_url":"https://cdn/x.png","media_type":"image","filename":"x.png"}]`, row.MediaFiles)
	assert.JSONEq(t, `["https://cdn/x.png"]`, row.MediaURLs)
}

func TestSeedDefaultTags(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, SeedDefaultTags(db, []string{"Setup", "Strategy"}))
	require.NoError(t, SeedDefaultTags(db, []string{"Setup", "Pit Stop"}))

	var labels []string
	require.NoError(t, db.Model(&Tag{}).Order("label").Pluck("label", &labels).Error)
	assert.Equal(t, []string{"Pit Stop", "Setup", "Strategy"}, labels)
}

func TestValidateStruct(t *testing.T) {
	tagID := "0b9f0a5e-5c55-4b0f-9a77-3a9f2f0d6c11"
	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
	}{
		{"valid note", &NoteCreate{Body: "Brake later into T1", Category: NoteCategoryGeneral, TagIDs: []string{tagID}}, false},
		{"blank body", &NoteCreate{Body: "   "}, true},
		{"empty tag id", &NoteCreate{Body: "ok", TagIDs: []string{""}}, true},
		{"bad category", &NoteCreate{Body: "ok", Category: "Weather"}, true},
		{"valid context", &ContextInfo{TrackName: "Daytona", SeriesName: "CUP", SessionType: "practice"}, false},
		{"context without track", &ContextInfo{SeriesName: "CUP", SessionType: "Race"}, true},
		{"context bad session", &ContextInfo{TrackName: "Daytona", SeriesName: "CUP", SessionType: "Warmup"}, true},
		{"track type", &Track{Name: "Sonoma", Type: TrackTypeRoadCourse}, false},
		{"bad track type", &Track{Name: "Sonoma", Type: "Oval"}, true},
		{"session date", &Session{Date: "2024/02/18", Kind: SessionTypeRace}, true},
		{"filter dates", &NoteFilter{DateFrom: "2024-01-01", DateTo: "2024-12-31"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
