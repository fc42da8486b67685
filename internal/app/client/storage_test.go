package client

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
	"studysync/internal/domain/identity"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), identity.New(identity.ModeRandom), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDataset() *dataset.Dataset {
	lastSync := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return &dataset.Dataset{
		Sessions: []dataset.Session{{
			Meta:    dataset.Meta{ID: "s1", Timestamp: "2024-01-01T10:00:00.000Z", SavedAt: "2024-01-01T10:00:00.000Z"},
			Course:  "Cardio",
			Seconds: 1800,
		}},
		Scores: []dataset.Score{{
			Meta:   dataset.Meta{ID: "sc1", Timestamp: "2024-01-02T10:00:00.000Z"},
			Course: "Nephro",
			Score:  85,
		}},
		Events: []dataset.Event{{
			Meta:     dataset.Meta{ID: "e1", Timestamp: "2024-01-03T10:00:00.000Z"},
			Title:    "Board exam",
			Date:     "2024-06-01",
			Priority: dataset.PriorityHigh,
		}},
		Courses:     []string{"Cardio", "Nephro"},
		Preferences: dataset.Preferences{"theme": "dark", "updatedAt": "2024-01-01T00:00:00.000Z"},
		LastSync:    &lastSync,
	}
}

func TestSQLiteStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	ds := sampleDataset()

	require.NoError(t, s.SaveAll(ctx, ds))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, ds.Sessions, loaded.Sessions)
	assert.Equal(t, ds.Scores, loaded.Scores)
	assert.Equal(t, ds.Events, loaded.Events)
	assert.Equal(t, ds.Courses, loaded.Courses)
	assert.Equal(t, "dark", loaded.Preferences["theme"])
	require.NotNil(t, loaded.LastSync)
	assert.True(t, ds.LastSync.Equal(*loaded.LastSync))
}

func TestSQLiteStorageEmpty(t *testing.T) {
	loaded, err := newTestSQLite(t).LoadAll(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.Empty())
	assert.Nil(t, loaded.LastSync)
}

func TestLoadAllSkipsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	raw := `[
		{"id":"ok","timestamp":"2024-01-01T10:00:00Z","course":"Cardio","seconds":60},
		{"id":"no-course","timestamp":"2024-01-01T10:00:00Z","seconds":60},
		{"id":"bad-type","course":"Cardio","seconds":"sixty"},
		42
	]`
	require.NoError(t, s.set(ctx, KeySessions, []byte(raw)))
	require.NoError(t, s.set(ctx, KeyScores, []byte("not json")))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)

	require.Len(t, loaded.Sessions, 1)
	assert.Equal(t, "ok", loaded.Sessions[0].ID)
	assert.Empty(t, loaded.Scores)
}

func TestLoadAllAssignsMissingIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	raw := `[{"timestamp":"2024-01-01T10:00:00Z","title":"Exam","date":"2024-05-01"}]`
	require.NoError(t, s.set(ctx, KeyEvents, []byte(raw)))

	first, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, first.Events, 1)
	assert.NotEmpty(t, first.Events[0].ID)
	assert.Equal(t, dataset.PriorityMedium, first.Events[0].Priority)

	second, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Events[0].ID, second.Events[0].ID)
}

func TestSQLiteStorageQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	small := sampleDataset()
	require.NoError(t, s.SaveAll(ctx, small))

	_, err := s.db.Exec("PRAGMA max_page_count = 10")
	require.NoError(t, err)

	big := sampleDataset()
	notes := strings.Repeat("n", 500)
	for i := 0; i < 5000; i++ {
		big.Sessions = append(big.Sessions, dataset.Session{
			Meta:    dataset.Meta{ID: fmt.Sprintf("bulk-%d", i), Timestamp: "2024-01-01T10:00:00.000Z"},
			Course:  "Cardio",
			Seconds: i,
			Notes:   notes,
		})
	}

	err = s.SaveAll(ctx, big)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, small.Sessions, loaded.Sessions)
}

func TestMemoryStorageQuota(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage(identity.New(identity.ModeRandom), slog.Default()).WithQuota(64)

	err := m.SaveAll(ctx, sampleDataset())
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestPendingDeletes(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	pending, err := s.LoadPendingDeletes(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	want := []PendingDelete{{Collection: dataset.CollectionScores, ID: "sc1", DeletedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}}
	require.NoError(t, s.SavePendingDeletes(ctx, want))

	pending, err = s.LoadPendingDeletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, pending)
}

func TestGetSetValue(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	var course string
	ok, err := s.GetValue(ctx, KeyLastCourse, &course)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetValue(ctx, KeyLastCourse, "Surgery"))
	ok, err = s.GetValue(ctx, KeyLastCourse, &course)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Surgery", course)

	require.NoError(t, s.DeleteValue(ctx, KeyLastCourse))
	ok, err = s.GetValue(ctx, KeyLastCourse, &course)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAllChunksLargeCollections(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(identity.New(identity.ModeRandom), slog.Default())

	ds := &dataset.Dataset{}
	for i := 0; i < 2*saveChunkSize+3; i++ {
		ts := dataset.FormatTime(time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC))
		ds.Sessions = append(ds.Sessions, session(fmt.Sprintf("s%d", i), ts, "Cardio", i))
	}
	require.NoError(t, s.SaveAll(ctx, ds))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ds.Sessions, loaded.Sessions)
	assert.Equal(t, []dataset.Score{}, loaded.Scores)

	t.Run("cancelled context keeps previous value", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, s.SaveAll(cancelled, &dataset.Dataset{Sessions: ds.Sessions[:1]}), context.Canceled)

		loaded, err := s.LoadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, loaded.Sessions, len(ds.Sessions))
	})
}
