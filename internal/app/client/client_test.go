package client

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"studysync/internal/app/client/calendar"
	"studysync/internal/app/client/config"
	"studysync/internal/domain/dataset"
	"studysync/internal/domain/identity"
)

var appNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, remote *fakeRemote) (*App, *MemoryStorage) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		ServerAddress:    "127.0.0.1:1",
		ConfigDir:        dir,
		TokenPath:        filepath.Join(dir, "token"),
		DataPath:         filepath.Join(dir, "studysync.db"),
		SyncInterval:     30,
		IDMode:           "random",
		PushBatchSize:    10,
		RequestTimeout:   time.Second,
		StatusClearAfter: time.Hour,
		Calendar: config.Calendar{
			Name:        "StudySync",
			Mode:        "two-way",
			BatchSize:   5,
			MaxAttempts: 1,
		},
	}
	log := slog.Default()

	httpCl, err := NewHTTPClient(cfg, log)
	require.NoError(t, err)

	assigner := identity.New(identity.ModeRandom)
	store := NewMemoryStorage(assigner, log)
	if remote == nil {
		remote = &fakeRemote{}
	}

	app := newApp(cfg, log, httpCl, remote, store, assigner)
	app.now = func() time.Time { return appNow }
	app.syncService.now = func() time.Time { return appNow }
	require.NoError(t, app.Open(context.Background()))
	t.Cleanup(func() { _ = app.Close() })
	return app, store
}

func TestAddSession(t *testing.T) {
	app, _ := newTestApp(t, nil)
	ctx := context.Background()

	s, err := app.AddSession(ctx, "  Math ", 1500, "chapter 3")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Math", s.Course)
	assert.Equal(t, dataset.FormatTime(appNow), s.SavedAt)

	ds := app.Dataset()
	require.Len(t, ds.Sessions, 1)
	assert.Equal(t, s, ds.Sessions[0])
	assert.Equal(t, []string{"Math"}, ds.Courses)
	assert.Equal(t, "Math", app.LastCourse(ctx))

	_, err = app.AddSession(ctx, "math", 600, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Math"}, app.Dataset().Courses, "курс не дублируется")

	_, err = app.AddSession(ctx, "", 600, "")
	assert.ErrorIs(t, err, dataset.ErrInvalidRecord)
	assert.Len(t, app.Dataset().Sessions, 2)
}

func TestAddScoreValidation(t *testing.T) {
	app, _ := newTestApp(t, nil)
	ctx := context.Background()

	_, err := app.AddScore(ctx, "Physics", 101, "")
	assert.ErrorIs(t, err, dataset.ErrInvalidRecord)

	sc, err := app.AddScore(ctx, "Physics", 87, "midterm")
	require.NoError(t, err)
	assert.Equal(t, []dataset.Score{sc}, app.Dataset().Scores)
	assert.Equal(t, []string{"Physics"}, app.Dataset().Courses)
}

func TestEvents(t *testing.T) {
	app, store := newTestApp(t, nil)
	ctx := context.Background()

	e, err := app.AddEvent(ctx, "Final exam", "2024-06-01", "")
	require.NoError(t, err)
	assert.Equal(t, dataset.PriorityMedium, e.Priority)

	_, err = app.AddEvent(ctx, "Bad", "June 1st", dataset.PriorityHigh)
	assert.ErrorIs(t, err, dataset.ErrInvalidRecord)

	require.NoError(t, app.SetEventDone(ctx, e.ID, true))
	assert.True(t, app.Dataset().Events[0].IsDone)
	assert.ErrorIs(t, app.SetEventDone(ctx, "missing", true), ErrRecordNotFound)

	t.Run("delete queues remote removal", func(t *testing.T) {
		require.NoError(t, app.DeleteRecord(ctx, dataset.CollectionEvents, e.ID))
		assert.Empty(t, app.Dataset().Events)

		pending, err := store.LoadPendingDeletes(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, PendingDelete{Collection: dataset.CollectionEvents, ID: e.ID, DeletedAt: appNow}, pending[0])

		assert.ErrorIs(t, app.DeleteRecord(ctx, dataset.CollectionEvents, e.ID), ErrRecordNotFound)
		assert.Error(t, app.DeleteRecord(ctx, dataset.Collection("notes"), e.ID))
	})
}

func TestCoursesAndPreferences(t *testing.T) {
	app, _ := newTestApp(t, nil)
	ctx := context.Background()

	added, err := app.AddCourse(ctx, "Math")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = app.AddCourse(ctx, "MATH")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = app.AddCourse(ctx, "biology")
	require.NoError(t, err)
	assert.Equal(t, []string{"biology", "Math"}, app.Dataset().Courses)

	assert.Error(t, app.SetPreference(ctx, "", "x"))
	assert.Error(t, app.SetPreference(ctx, dataset.PreferencesUpdatedAtKey, "x"))

	require.NoError(t, app.SetPreference(ctx, "theme", "dark"))
	prefs := app.Dataset().Preferences
	assert.Equal(t, "dark", prefs["theme"])
	assert.Equal(t, appNow, prefs.UpdatedAt())
}

func TestQuotaExceededKeepsMemoryCopy(t *testing.T) {
	app, store := newTestApp(t, nil)
	store.WithQuota(64)

	_, err := app.AddSession(context.Background(), "Math", 60, "a long note that does not fit into the tiny quota")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Len(t, app.Dataset().Sessions, 1)
}

func TestAppSyncReloadsData(t *testing.T) {
	remoteSession := session("r1", "2024-03-09T10:00:00.000Z", "History", 900)
	remote := &fakeRemote{
		authenticated: true,
		fetch: FetchResult{
			Outcome: FetchFetched,
			Dataset: &dataset.Dataset{Sessions: []dataset.Session{remoteSession}, Courses: []string{"History"}},
		},
	}
	app, _ := newTestApp(t, remote)
	ctx := context.Background()

	local, err := app.AddSession(ctx, "Math", 60, "")
	require.NoError(t, err)

	res, err := app.Sync(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, res.Outcome)

	ds := app.Dataset()
	require.Len(t, ds.Sessions, 2)
	assert.ElementsMatch(t, []string{"r1", local.ID}, []string{ds.Sessions[0].ID, ds.Sessions[1].ID})
	assert.Equal(t, []string{"History", "Math"}, ds.Courses)
	require.NotNil(t, ds.LastSync)
	assert.Equal(t, appNow, *ds.LastSync)

	status, last, stats := app.SyncStatus()
	assert.Equal(t, StatusSynced, status.Status)
	assert.Same(t, res, last)
	assert.Equal(t, 1, stats.TotalSyncs)
}

func TestAppSyncNotLoggedIn(t *testing.T) {
	app, _ := newTestApp(t, &fakeRemote{})

	res, err := app.Sync(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.False(t, app.IsAuthenticated())
}

func TestTokenLifecycle(t *testing.T) {
	app, _ := newTestApp(t, nil)

	_, err := app.GetToken()
	assert.Error(t, err)

	require.NoError(t, app.SaveToken("abc"))
	token, err := app.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.True(t, app.IsAuthenticated())

	require.NoError(t, app.ClearToken())
	assert.False(t, app.IsAuthenticated())
	assert.Empty(t, app.UserLogin())
}

// memCalendar - календарь в памяти
type memCalendar struct {
	mu     sync.Mutex
	events []calendar.RemoteEvent
	next   int
}

func (m *memCalendar) FindOrCreateCalendar(context.Context, string) (string, error) {
	return "cal", nil
}

func (m *memCalendar) ListEvents(context.Context, string) ([]calendar.RemoteEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]calendar.RemoteEvent(nil), m.events...), nil
}

func (m *memCalendar) InsertEvent(_ context.Context, _ string, ev calendar.RemoteEvent) (calendar.RemoteEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	ev.ID = fmt.Sprintf("cal-%d", m.next)
	ev.Updated = appNow
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memCalendar) PatchEvent(_ context.Context, _ string, ev calendar.RemoteEvent) (calendar.RemoteEvent, error) {
	return ev, nil
}

func (m *memCalendar) DeleteEvent(context.Context, string, string) error {
	return nil
}

func TestSyncCalendar(t *testing.T) {
	app, _ := newTestApp(t, nil)
	ctx := context.Background()
	cal := &memCalendar{events: []calendar.RemoteEvent{
		{ID: "ext-1", Title: "Dentist", Date: "2024-03-19", Updated: appNow},
	}}
	app.calendarProv = cal

	e, err := app.AddEvent(ctx, "Exam", "2024-03-20", dataset.PriorityHigh)
	require.NoError(t, err)

	res, err := app.SyncCalendar(ctx, "")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Imported)

	events := app.Dataset().Events
	require.Len(t, events, 2)
	assert.Equal(t, e.ID, events[0].ID)
	assert.Equal(t, "cal-1", events[0].ExternalID)
	assert.Equal(t, "Dentist", events[1].Title)
	assert.Equal(t, "ext-1", events[1].ExternalID)

	res, err = app.SyncCalendar(ctx, calendar.ModeTwoWay)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestMergeCalendarResult(t *testing.T) {
	ev := func(id, title, ext string) dataset.Event {
		return dataset.Event{Meta: dataset.Meta{ID: id}, Title: title, Date: "2024-03-20", ExternalID: ext}
	}

	before := []dataset.Event{ev("a", "A", ""), ev("b", "B", ""), ev("e", "E", "")}
	current := []dataset.Event{ev("a", "A", ""), ev("b", "B edited", ""), ev("d", "D", "")}
	result := []dataset.Event{ev("a", "A", "g1"), ev("b", "B", "g2"), ev("e", "E", "g3"), ev("c", "C", "g4")}

	got := mergeCalendarResult(before, current, result)
	assert.Equal(t, []dataset.Event{
		ev("a", "A", "g1"),
		ev("b", "B edited", "g2"),
		ev("c", "C", "g4"),
		ev("d", "D", ""),
	}, got)
}

func TestCalendarDeletionSurvivesRecordSync(t *testing.T) {
	exam := dataset.Event{
		Meta:       dataset.Meta{ID: "ev-1", Timestamp: "2024-03-01T10:00:00.000Z", SavedAt: "2024-03-01T10:00:00.000Z"},
		Title:      "Exam",
		Date:       "2024-03-20",
		Priority:   dataset.PriorityHigh,
		ExternalID: "ext-1",
	}

	for _, mode := range []calendar.Mode{calendar.ModeTwoWay, calendar.ModeMaster} {
		t.Run(string(mode), func(t *testing.T) {
			// на сервере событие еще есть, в календаре его уже удалили
			remote := &fakeRemote{
				authenticated: true,
				fetch: FetchResult{
					Outcome: FetchFetched,
					Dataset: &dataset.Dataset{Events: []dataset.Event{exam}},
				},
			}
			app, store := newTestApp(t, remote)
			app.calendarProv = &memCalendar{}
			ctx := context.Background()
			require.NoError(t, store.SaveAll(ctx, &dataset.Dataset{Events: []dataset.Event{exam}}))

			res, err := app.SyncCalendar(ctx, mode)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Dropped)
			assert.Empty(t, app.Dataset().Events)

			pending, err := store.LoadPendingDeletes(ctx)
			require.NoError(t, err)
			assert.Equal(t, []PendingDelete{{Collection: dataset.CollectionEvents, ID: "ev-1", DeletedAt: appNow}}, pending)

			sr, err := app.Sync(ctx, TriggerManual)
			require.NoError(t, err)
			assert.Equal(t, OutcomeSynced, sr.Outcome)
			assert.Empty(t, app.Dataset().Events, "удаленное в календаре событие не возвращается с сервера")
			assert.Equal(t, []string{"events/ev-1"}, remote.deleted)

			pending, err = store.LoadPendingDeletes(ctx)
			require.NoError(t, err)
			assert.Empty(t, pending)
		})
	}
}

func TestRemovedIDs(t *testing.T) {
	ev := func(id string) dataset.Event { return dataset.Event{Meta: dataset.Meta{ID: id}} }

	assert.Equal(t, []string{"b", "d"}, removedIDs(
		[]dataset.Event{ev("a"), ev("b"), ev("c"), ev("d")},
		[]dataset.Event{ev("c"), ev("a"), ev("e")},
	))
	assert.Empty(t, removedIDs([]dataset.Event{ev("a")}, []dataset.Event{ev("a")}))
}
