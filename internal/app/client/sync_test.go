package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
	"studysync/internal/domain/identity"
)

type fakeRemote struct {
	mu sync.Mutex

	authenticated bool
	healthErr     error
	fetch         FetchResult
	fetchErr      error
	// fetchGate блокирует FetchRemote до закрытия
	fetchGate chan struct{}
	fetchCall chan struct{}
	pushFail  int
	deleteErr map[string]error

	pushed  []PushBatch
	deleted []string
}

func (f *fakeRemote) IsAuthenticated() bool { return f.authenticated }

func (f *fakeRemote) HealthCheck(context.Context) error { return f.healthErr }

func (f *fakeRemote) FetchRemote(context.Context) (FetchResult, error) {
	if f.fetchCall != nil {
		f.fetchCall <- struct{}{}
	}
	if f.fetchGate != nil {
		<-f.fetchGate
	}
	if f.fetch.Dataset != nil {
		return FetchResult{Outcome: f.fetch.Outcome, Dataset: f.fetch.Dataset.Clone()}, f.fetchErr
	}
	return f.fetch, f.fetchErr
}

func (f *fakeRemote) PushRemote(_ context.Context, b PushBatch) (PushReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, b)
	report := PushReport{Pushed: b.Size() - f.pushFail, Failed: f.pushFail}
	for i := 0; i < f.pushFail; i++ {
		report.Errors = append(report.Errors, errors.New("rejected"))
	}
	return report, nil
}

func (f *fakeRemote) DeleteRemote(_ context.Context, c dataset.Collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, c.String()+"/"+id)
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []Status
	results  []*SyncResult
}

func (o *recordingObserver) OnStatus(ev StatusEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, ev.Status)
}

func (o *recordingObserver) OnSyncComplete(res *SyncResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

func (o *recordingObserver) seen() []Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Status(nil), o.statuses...)
}

var syncNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestSync(t *testing.T, remote *fakeRemote) (*SyncService, *MemoryStorage, *recordingObserver) {
	t.Helper()
	store := NewMemoryStorage(identity.New(identity.ModeRandom), slog.Default())
	s := NewSyncService(store, remote, nil, time.Hour, slog.Default())
	s.now = func() time.Time { return syncNow }
	obs := &recordingObserver{}
	s.Subscribe(obs)
	t.Cleanup(s.Close)
	return s, store, obs
}

func session(id, ts, course string, seconds int) dataset.Session {
	return dataset.Session{
		Meta:    dataset.Meta{ID: id, Timestamp: ts, SavedAt: ts},
		Course:  course,
		Seconds: seconds,
	}
}

func TestSyncPreconditions(t *testing.T) {
	tests := []struct {
		name       string
		remote     *fakeRemote
		trigger    Trigger
		wantReason string
		wantStatus []Status
	}{
		{
			name:       "not logged in, manual",
			remote:     &fakeRemote{},
			trigger:    TriggerManual,
			wantReason: "not logged in",
			wantStatus: []Status{StatusNotLoggedIn},
		},
		{
			name:       "not logged in, background is silent",
			remote:     &fakeRemote{},
			trigger:    TriggerBackground,
			wantReason: "not logged in",
		},
		{
			name:       "server unreachable, manual",
			remote:     &fakeRemote{authenticated: true, healthErr: ErrOffline},
			trigger:    TriggerManual,
			wantReason: "offline",
			wantStatus: []Status{StatusOffline},
		},
		{
			name:       "connection lost before fetch",
			remote:     &fakeRemote{authenticated: true, fetch: FetchResult{Outcome: FetchSkipped}},
			trigger:    TriggerMutation,
			wantReason: "offline",
			wantStatus: []Status{StatusSyncing, StatusIdle},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store, obs := newTestSync(t, tt.remote)

			res := s.Sync(context.Background(), tt.trigger)
			assert.Equal(t, OutcomeSkipped, res.Outcome)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, tt.wantStatus, obs.seen())
			assert.Empty(t, tt.remote.pushed)

			ds, err := store.LoadAll(context.Background())
			require.NoError(t, err)
			assert.Nil(t, ds.LastSync)
		})
	}
}

func TestSyncFreshInstallPushesLocal(t *testing.T) {
	remote := &fakeRemote{authenticated: true, fetch: FetchResult{Outcome: FetchNotFound}}
	s, store, obs := newTestSync(t, remote)
	ctx := context.Background()

	require.NoError(t, store.SaveAll(ctx, &dataset.Dataset{
		Sessions: []dataset.Session{session("s1", "2024-03-01T10:00:00.000Z", "Cardio", 1800)},
		Courses:  []string{"Cardio"},
	}))

	res := s.Sync(ctx, TriggerManual)
	require.Equal(t, OutcomeSynced, res.Outcome, res.Err())
	assert.False(t, res.Changed)
	assert.Equal(t, "not_found", res.Fetch)

	require.Len(t, remote.pushed, 1)
	assert.Len(t, remote.pushed[0].Sessions, 1)
	assert.Equal(t, []string{"Cardio"}, remote.pushed[0].Courses)

	ds, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, ds.Sessions, 1)
	require.NotNil(t, ds.LastSync)
	assert.True(t, ds.LastSync.Equal(syncNow))

	assert.Equal(t, []Status{StatusSyncing, StatusSynced}, obs.seen())
	assert.Equal(t, 1, s.GetStats().TotalSyncs)
}

func TestSyncNotFoundStillInfersDeletions(t *testing.T) {
	remote := &fakeRemote{authenticated: true, fetch: FetchResult{Outcome: FetchNotFound}}
	s, store, _ := newTestSync(t, remote)
	ctx := context.Background()

	// другое устройство очистило аккаунт после прошлой синхронизации
	lastSync := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveAll(ctx, &dataset.Dataset{
		Events: []dataset.Event{{
			Meta:     dataset.Meta{ID: "e1", Timestamp: "2024-01-01T09:00:00.000Z", SavedAt: "2024-01-01T09:00:00.000Z"},
			Title:    "Exam",
			Date:     "2024-04-01",
			Priority: dataset.PriorityMedium,
		}},
		Sessions: []dataset.Session{session("s-new", "2024-03-01T10:00:00.000Z", "Cardio", 600)},
		LastSync: &lastSync,
	}))

	res := s.Sync(ctx, TriggerManual)
	require.Equal(t, OutcomeSynced, res.Outcome, res.Err())
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Dropped)

	ds, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds.Events, "tombstone inference: should deletions be explicit tombstones instead?")
	require.Len(t, ds.Sessions, 1)

	require.Len(t, remote.pushed, 1)
	assert.Empty(t, remote.pushed[0].Events)
	assert.Equal(t, []dataset.Session{ds.Sessions[0]}, remote.pushed[0].Sessions)
}

func TestSyncHealthCheckServerError(t *testing.T) {
	remote := &fakeRemote{authenticated: true, healthErr: &APIError{Status: 500}}
	s, store, obs := newTestSync(t, remote)

	res := s.Sync(context.Background(), TriggerBackground)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "health check failed", res.Reason)
	var apiErr *APIError
	require.ErrorAs(t, res.Err(), &apiErr)
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, []Status{StatusError}, obs.seen())
	assert.Empty(t, remote.pushed)

	ds, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ds.LastSync)
}

func TestSyncDropsRecordsDeletedElsewhere(t *testing.T) {
	lastSync := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	remote := &fakeRemote{authenticated: true, fetch: FetchResult{
		Outcome: FetchFetched,
		Dataset: &dataset.Dataset{
			Sessions: []dataset.Session{session("s2", "2024-03-02T10:00:00.000Z", "Nephro", 600)},
		},
	}}
	s, store, _ := newTestSync(t, remote)
	ctx := context.Background()

	require.NoError(t, store.SaveAll(ctx, &dataset.Dataset{
		Sessions: []dataset.Session{
			session("s1", "2024-03-01T10:00:00.000Z", "Cardio", 1800),
			session("s3", "2024-03-08T10:00:00.000Z", "Surgery", 900),
		},
		LastSync: &lastSync,
	}))

	res := s.Sync(ctx, TriggerBackground)
	require.Equal(t, OutcomeSynced, res.Outcome, res.Err())
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 1, res.Added)

	ds, err := store.LoadAll(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(ds.Sessions))
	for _, ss := range ds.Sessions {
		ids = append(ids, ss.ID)
	}
	assert.Equal(t, []string{"s3", "s2"}, ids)

	require.Len(t, remote.pushed, 1)
	require.Len(t, remote.pushed[0].Sessions, 1)
	assert.Equal(t, "s3", remote.pushed[0].Sessions[0].ID)
}

func TestSyncPartialPushKeepsLastSync(t *testing.T) {
	remote := &fakeRemote{
		authenticated: true,
		fetch:         FetchResult{Outcome: FetchFetched, Dataset: &dataset.Dataset{}},
		pushFail:      1,
	}
	s, store, obs := newTestSync(t, remote)
	ctx := context.Background()

	require.NoError(t, store.SaveAll(ctx, &dataset.Dataset{
		Sessions: []dataset.Session{session("s1", "2024-03-09T10:00:00.000Z", "Cardio", 60)},
	}))

	res := s.Sync(ctx, TriggerManual)
	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, 1, res.Failed)
	assert.Error(t, res.Err())

	ds, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Nil(t, ds.LastSync)
	assert.Contains(t, obs.seen(), StatusError)
}

func TestSyncPendingDeletes(t *testing.T) {
	remote := &fakeRemote{
		authenticated: true,
		fetch: FetchResult{Outcome: FetchFetched, Dataset: &dataset.Dataset{
			Sessions: []dataset.Session{
				session("s1", "2024-03-01T10:00:00.000Z", "Cardio", 1800),
				session("gone", "2024-03-01T11:00:00.000Z", "Cardio", 60),
			},
			Events: []dataset.Event{{
				Meta:  dataset.Meta{ID: "stuck", Timestamp: "2024-03-01T11:00:00.000Z"},
				Title: "Exam",
				Date:  "2024-04-01",
			}},
		}},
		deleteErr: map[string]error{"stuck": errors.New("boom")},
	}
	s, store, _ := newTestSync(t, remote)
	ctx := context.Background()

	require.NoError(t, store.SaveAll(ctx, &dataset.Dataset{
		Sessions: []dataset.Session{session("s1", "2024-03-01T10:00:00.000Z", "Cardio", 1800)},
	}))
	require.NoError(t, store.SavePendingDeletes(ctx, []PendingDelete{
		{Collection: dataset.CollectionSessions, ID: "gone", DeletedAt: syncNow},
		{Collection: dataset.CollectionEvents, ID: "stuck", DeletedAt: syncNow},
	}))

	res := s.Sync(ctx, TriggerManual)
	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"sessions/gone"}, remote.deleted)

	ds, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Sessions, 1, "deleted record must not come back")
	assert.Empty(t, ds.Events)

	pending, err := store.LoadPendingDeletes(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "stuck", pending[0].ID)
}

func TestSyncFetchFailureLeavesLocalUntouched(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus Status
	}{
		{"expired session", ErrUnauthorized, StatusNotLoggedIn},
		{"malformed response", errors.New("ошибка парсинга ответа"), StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{authenticated: true, fetchErr: tt.err}
			s, store, obs := newTestSync(t, remote)
			ctx := context.Background()

			local := &dataset.Dataset{
				Sessions: []dataset.Session{session("s1", "2024-03-01T10:00:00.000Z", "Cardio", 1800)},
			}
			require.NoError(t, store.SaveAll(ctx, local))

			res := s.Sync(ctx, TriggerManual)
			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.ErrorIs(t, res.Err(), tt.err)
			assert.Equal(t, tt.wantStatus, s.Status().Status)
			assert.Equal(t, []Status{StatusSyncing, tt.wantStatus}, obs.seen())

			ds, err := store.LoadAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, local.Sessions, ds.Sessions)
			assert.Nil(t, ds.LastSync)
		})
	}
}

func TestSyncQuotaExceededAborts(t *testing.T) {
	remote := &fakeRemote{authenticated: true, fetch: FetchResult{
		Outcome: FetchFetched,
		Dataset: &dataset.Dataset{
			Sessions: []dataset.Session{session("s9", "2024-03-01T10:00:00.000Z", "Cardio", 1800)},
		},
	}}
	s, store, _ := newTestSync(t, remote)
	store.WithQuota(10)

	res := s.Sync(context.Background(), TriggerManual)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err(), ErrQuotaExceeded)
	assert.Equal(t, "storage full", res.Reason)
	assert.Empty(t, remote.pushed)
}

func TestSyncSingleFlight(t *testing.T) {
	remote := &fakeRemote{
		authenticated: true,
		fetch:         FetchResult{Outcome: FetchFetched, Dataset: &dataset.Dataset{}},
		fetchGate:     make(chan struct{}),
		fetchCall:     make(chan struct{}, 1),
	}
	s, _, _ := newTestSync(t, remote)

	done := make(chan *SyncResult)
	go func() { done <- s.Sync(context.Background(), TriggerBackground) }()

	<-remote.fetchCall
	assert.True(t, s.IsSyncing())

	second := s.Sync(context.Background(), TriggerMutation)
	assert.Equal(t, OutcomeDropped, second.Outcome)

	close(remote.fetchGate)
	first := <-done
	assert.Equal(t, OutcomeSynced, first.Outcome)
	assert.False(t, s.IsSyncing())
}

func TestStatusAutoClear(t *testing.T) {
	r := newStatusReporter(20 * time.Millisecond)
	obs := &recordingObserver{}
	r.subscribe(obs)
	defer r.stop()

	r.set(StatusSyncing, "")
	r.set(StatusSynced, "")
	assert.Equal(t, StatusSynced, r.Current().Status)

	assert.Eventually(t, func() bool {
		return r.Current().Status == StatusIdle
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Status{StatusSyncing, StatusSynced, StatusIdle}, obs.seen())

	// новый статус отменяет сброс предыдущего
	r.set(StatusError, "boom")
	r.set(StatusSyncing, "")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusSyncing, r.Current().Status)
}
