package note

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/database"
	apperrors "github.com/weiwangfds/racenotes/internal/errors"
	"github.com/weiwangfds/racenotes/internal/service/cache"
)

var raceDay = time.Date(2024, time.February, 18, 14, 30, 0, 0, time.UTC)

func testConfig(t *testing.T, online bool) *config.Config {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{
			DefaultAuthor: "pit wall",
			DefaultTags:   []string{"Restart", "Aero"},
		},
		Remote: config.DatabaseConfig{Driver: "sqlite", LogLevel: "silent"},
		Storage: config.StorageConfig{
			Provider:      "local",
			LocalDir:      t.TempDir(),
			StagingDir:    t.TempDir(),
			PublicBaseURL: "http://notes.test/media",
			MaxFileSizeMB: 10,
		},
	}
	if online {
		cfg.Remote.DSN = ":memory:"
	}
	return cfg
}

func newOfflineCache(t *testing.T) *cache.OfflineCache {
	t.Helper()
	c, err := cache.Open(config.CacheConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestService(t *testing.T, online bool, offline *cache.OfflineCache) *DataService {
	t.Helper()
	s := NewDataService(testConfig(t, online), offline, WithClock(func() time.Time { return raceDay }))
	assert.Equal(t, online, s.Connect())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func practiceRequest(body string) *CreateNoteRequest {
	return &CreateNoteRequest{
		Note:    *database.NewNoteCreate(body),
		Context: database.ContextInfo{TrackName: "Daytona", SeriesName: "CUP", SessionType: "Practice"},
	}
}

func TestConnectOnlineSeedsTagsAndMedia(t *testing.T) {
	s := newTestService(t, true, newOfflineCache(t))

	assert.True(t, s.IsConnected())
	require.NotNil(t, s.Media())
	assert.True(t, s.Media().Available())

	md := s.LoadMetadata()
	require.Len(t, md.Tags, 2)
	assert.Equal(t, "Aero", md.Tags[0].Label)
	assert.Len(t, s.Cache().CachedTags(), 2)
}

func TestConnectOffline(t *testing.T) {
	s := newTestService(t, false, newOfflineCache(t))

	assert.False(t, s.IsConnected())
	assert.Nil(t, s.Media())
	assert.Empty(t, s.LoadNotes(10, 0, nil))
	assert.Empty(t, s.LoadMetadata().Tracks)
}

func TestCreateNoteOnlineUploadsMedia(t *testing.T) {
	s := newTestService(t, true, newOfflineCache(t))

	src := filepath.Join(s.cfg.Storage.StagingDir, "apex.png")
	require.NoError(t, os.WriteFile(src, []byte("png"), 0o644))
	missing := filepath.Join(s.cfg.Storage.StagingDir, "gone.mp4")

	req := practiceRequest("Turn 1 entry needs work")
	req.MediaFiles = []database.MediaFile{{Path: src}, {Path: missing}}

	resp, err := s.CreateNote(req)
	require.NoError(t, err)
	assert.Equal(t, ModeOnline, resp.Mode)
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.Partial())

	view := resp.Result.View
	require.NotNil(t, view)
	assert.Equal(t, "pit wall", view.CreatedBy)
	assert.Equal(t, "Daytona", view.TrackName)
	assert.Equal(t, "2024-02-18", view.SessionDate)

	urls := map[string]database.MediaType{}
	for _, m := range view.MediaFiles {
		urls[m.FileURL] = m.MediaType
	}
	assert.Equal(t, database.MediaTypeImage, urls["http://notes.test/media/images/2024/02/apex_20240218_143000.png"])
	assert.Equal(t, database.MediaTypeVideo, urls["local://"+missing])
}

func TestCreateNoteSkipsFilesOutsideStaging(t *testing.T) {
	s := newTestService(t, true, newOfflineCache(t))

	secret := filepath.Join(t.TempDir(), "server_secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("db-password=hunter2"), 0o600))
	escaped := filepath.Join(s.cfg.Storage.StagingDir, "..", "server_secret.txt")

	req := practiceRequest("Brake bias two clicks forward")
	req.MediaFiles = []database.MediaFile{{Path: secret}, {Path: escaped}}

	resp, err := s.CreateNote(req)
	require.NoError(t, err)
	require.NotNil(t, resp.Result.View)
	assert.Empty(t, resp.Result.View.MediaFiles)

	stored, err := os.ReadDir(s.cfg.Storage.LocalDir)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCreateNoteKeepsExistingMediaURL(t *testing.T) {
	s := newTestService(t, true, newOfflineCache(t))

	req := practiceRequest("Onboard from final run")
	req.MediaFiles = []database.MediaFile{{Name: "lap.mp4", CloudURL: "https://cdn.example.com/videos/lap.mp4"}}

	resp, err := s.CreateNote(req)
	require.NoError(t, err)
	require.NotNil(t, resp.Result.View)
	require.Len(t, resp.Result.View.MediaFiles, 1)
	assert.Equal(t, "https://cdn.example.com/videos/lap.mp4", resp.Result.View.MediaFiles[0].FileURL)
	assert.Equal(t, database.MediaTypeVideo, resp.Result.View.MediaFiles[0].MediaType)
}

func TestFailedRemoteReadKeepsMirror(t *testing.T) {
	now := raceDay
	offline, err := cache.Open(config.CacheConfig{InMemory: true}, cache.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = offline.Close() })
	s := newTestService(t, true, offline)

	_, err = s.CreateNote(practiceRequest("Loose in 3 and 4"))
	require.NoError(t, err)
	require.Len(t, s.LoadNotes(10, 0, nil), 1)
	s.LoadMetadata()
	synced, ok := offline.LastSync()
	require.True(t, ok)

	now = raceDay.Add(48 * time.Hour)
	db := s.gateway.DB()
	require.NoError(t, db.Exec("DROP VIEW " + database.NoteViewName).Error)
	require.NoError(t, db.Exec("DROP TABLE driver").Error)

	notes := s.LoadNotes(10, 0, nil)
	require.Len(t, notes, 1)
	assert.Equal(t, "Loose in 3 and 4", notes[0].Body)
	assert.Equal(t, 1, offline.NoteCount())

	last, ok := offline.LastSync()
	require.True(t, ok)
	assert.True(t, synced.Equal(last))
	assert.True(t, s.SyncStatus().Stale)

	md := s.LoadMetadata()
	require.Len(t, md.Tracks, 1)
	assert.Len(t, md.Tags, 2)
	assert.Len(t, offline.CachedTracks(), 1)
}

func TestLoadNotesMirrorsAndFallsBackToCache(t *testing.T) {
	offline := newOfflineCache(t)
	online := newTestService(t, true, offline)

	for _, body := range []string{"Loose in 1 and 2", "Tight center off", "Entry better after wedge"} {
		_, err := online.CreateNote(practiceRequest(body))
		require.NoError(t, err)
	}

	notes := online.LoadNotes(10, 0, nil)
	require.Len(t, notes, 3)
	assert.Equal(t, 3, offline.NoteCount())
	online.LoadMetadata()

	disconnected := newTestService(t, false, offline)
	cached := disconnected.LoadNotes(10, 0, nil)
	require.Len(t, cached, 3)
	assert.Equal(t, notes[0].ID, cached[0].ID)

	found := disconnected.LoadNotes(10, 0, &database.NoteFilter{SearchText: "WEDGE"})
	require.Len(t, found, 1)
	assert.Equal(t, "Entry better after wedge", found[0].Body)

	md := disconnected.LoadMetadata()
	require.Len(t, md.Tracks, 1)
	assert.Equal(t, "Daytona", md.Tracks[0].Name)
	require.Len(t, md.Sessions, 1)
}

func TestCreateNoteOfflineQueues(t *testing.T) {
	s := newTestService(t, false, newOfflineCache(t))

	req := practiceRequest("Queued at the track")
	req.MediaFiles = []database.MediaFile{{Path: "/videos/onboard.mp4"}}

	resp, err := s.CreateNote(req)
	require.NoError(t, err)
	assert.Equal(t, ModeQueued, resp.Mode)
	require.NotNil(t, resp.Outbox)
	assert.Nil(t, resp.Result)
	assert.Equal(t, "pit wall", resp.Outbox.Payload.Author)

	status := s.SyncStatus()
	assert.False(t, status.Connected)
	assert.Equal(t, 1, status.PendingCount)
	assert.True(t, status.Stale)
	assert.Nil(t, status.LastSync)

	entries := s.OutboxEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "/videos/onboard.mp4", entries[0].Payload.MediaFiles[0].Path)

	require.NoError(t, s.MarkNoteSynced(resp.Outbox.ID))
	assert.Equal(t, 0, s.SyncStatus().PendingCount)
	assert.Equal(t, 1, s.ClearSyncedNotes())
	assert.Empty(t, s.OutboxEntries())
}

func TestCreateNoteValidationWritesNothing(t *testing.T) {
	s := newTestService(t, false, newOfflineCache(t))

	tests := []struct {
		name string
		req  *CreateNoteRequest
	}{
		{"blank body", practiceRequest("   ")},
		{"unknown session type", &CreateNoteRequest{
			Note:    *database.NewNoteCreate("body"),
			Context: database.ContextInfo{TrackName: "Daytona", SeriesName: "CUP", SessionType: "Warmup"},
		}},
		{"missing series", &CreateNoteRequest{
			Note:    *database.NewNoteCreate("body"),
			Context: database.ContextInfo{TrackName: "Daytona", SessionType: "Race"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateNote(tt.req)
			assert.Equal(t, apperrors.ErrValidation, apperrors.CodeOf(err))
		})
	}
	assert.Empty(t, s.OutboxEntries())
}

func TestSyncStatusOnline(t *testing.T) {
	s := newTestService(t, true, newOfflineCache(t))
	s.LoadNotes(0, 0, nil)

	status := s.SyncStatus()
	assert.True(t, status.Connected)
	require.NotNil(t, status.LastSync)
	assert.Equal(t, 0, status.PendingCount)
}

func TestMetadataWritesRefreshMirror(t *testing.T) {
	offline := newOfflineCache(t)
	s := newTestService(t, true, offline)

	track, err := s.CreateTrack("Watkins Glen", database.TrackTypeRoadCourse)
	require.NoError(t, err)
	_, err = s.CreateSeries("Xfinity")
	require.NoError(t, err)
	_, err = s.CreateDriver("No. 9")
	require.NoError(t, err)
	_, err = s.CreateTag("Braking")
	require.NoError(t, err)

	require.Len(t, offline.CachedTracks(), 1)
	assert.Equal(t, track.ID, offline.CachedTracks()[0].ID)
	assert.Len(t, offline.CachedSeries(), 1)
	assert.Len(t, offline.CachedDrivers(), 1)
	assert.Len(t, offline.CachedTags(), 3)
}

func TestMetadataWritesRequireConnection(t *testing.T) {
	s := newTestService(t, false, newOfflineCache(t))

	_, err := s.CreateTag("Braking")
	assert.Equal(t, apperrors.ErrNotConnected, apperrors.CodeOf(err))
	_, err = s.CreateTrack("Watkins Glen", "")
	assert.Equal(t, apperrors.ErrNotConnected, apperrors.CodeOf(err))
}

func TestLoadSessionsFiltersCachedRows(t *testing.T) {
	offline := newOfflineCache(t)
	online := newTestService(t, true, offline)

	_, err := online.CreateNote(practiceRequest("Daytona practice"))
	require.NoError(t, err)
	req := practiceRequest("Talladega practice")
	req.Context.TrackName = "Talladega"
	_, err = online.CreateNote(req)
	require.NoError(t, err)
	md := online.LoadMetadata()
	require.Len(t, md.Sessions, 2)

	var daytonaID string
	for _, track := range md.Tracks {
		if track.Name == "Daytona" {
			daytonaID = track.ID
		}
	}
	require.NotEmpty(t, daytonaID)
	assert.Len(t, online.LoadSessions(daytonaID, ""), 1)

	disconnected := newTestService(t, false, offline)
	assert.Len(t, disconnected.LoadSessions("", ""), 2)
	sessions := disconnected.LoadSessions(daytonaID, "")
	require.Len(t, sessions, 1)
	assert.Equal(t, daytonaID, *sessions[0].TrackID)
}
