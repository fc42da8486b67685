package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
	"studysync/internal/domain/merge"
)

// Trigger - причина запуска цикла синхронизации
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerMutation   Trigger = "mutation"
	TriggerBackground Trigger = "background"
	TriggerStartup    Trigger = "startup"
)

// Outcome - итог цикла синхронизации
type Outcome string

const (
	OutcomeSynced Outcome = "synced"
	// OutcomeSkipped - не выполнены условия: нет токена или сервер недоступен
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDropped - цикл уже выполнялся, запуск отброшен
	OutcomeDropped Outcome = "dropped"
	OutcomeFailed  Outcome = "failed"
	// OutcomePartial - данные слиты и сохранены, но часть отправки не прошла
	OutcomePartial Outcome = "partial"
)

// SyncResult результат синхронизации
type SyncResult struct {
	Trigger   Trigger       `json:"trigger"`
	Outcome   Outcome       `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	Fetch     string        `json:"fetch,omitempty"`
	Changed   bool          `json:"changed"`
	Added     int           `json:"added"`
	Dropped   int           `json:"dropped"`
	Conflicts int           `json:"conflicts"`
	Pushed    int           `json:"pushed"`
	Stale     int           `json:"stale"`
	Failed    int           `json:"failed"`
	Deleted   int           `json:"deleted"`
	Errors    []error       `json:"-"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Err объединяет ошибки цикла.
func (r *SyncResult) Err() error {
	return errors.Join(r.Errors...)
}

// SyncStats статистика синхронизации
type SyncStats struct {
	TotalSyncs      int       `json:"total_syncs"`
	LastSuccessful  time.Time `json:"last_successful"`
	LastFailed      time.Time `json:"last_failed"`
	TotalUploaded   int       `json:"total_uploaded"`
	TotalDownloaded int       `json:"total_downloaded"`
	TotalDropped    int       `json:"total_dropped"`
	TotalConflicts  int       `json:"total_conflicts"`
	TotalErrors     int       `json:"total_errors"`
	AvgSyncDuration float64   `json:"avg_sync_duration"`
}

// SyncService сводит локальный набор с сервером: fetch, merge, сохранение, push.
// Одновременно выполняется не более одного цикла.
type SyncService struct {
	store  Store
	remote Remote
	log    *slog.Logger
	status *statusReporter
	// locker защищает чтение-изменение-запись локального набора
	locker sync.Locker

	inFlight atomic.Bool

	mu         sync.RWMutex
	stats      SyncStats
	lastResult *SyncResult

	now func() time.Time
}

// NewSyncService создает новый сервис синхронизации
func NewSyncService(store Store, remote Remote, locker sync.Locker, clearAfter time.Duration, log *slog.Logger) *SyncService {
	if locker == nil {
		locker = &sync.Mutex{}
	}
	return &SyncService{
		store:  store,
		remote: remote,
		log:    log.With("component", "sync"),
		status: newStatusReporter(clearAfter),
		locker: locker,
		now:    time.Now,
	}
}

// Subscribe добавляет наблюдателя статусов.
func (s *SyncService) Subscribe(o SyncObserver) {
	s.status.subscribe(o)
}

// Status возвращает текущий статус.
func (s *SyncService) Status() StatusEvent {
	return s.status.Current()
}

func (s *SyncService) IsSyncing() bool {
	return s.inFlight.Load()
}

// Sync запускает процесс синхронизации
func (s *SyncService) Sync(ctx context.Context, trigger Trigger) *SyncResult {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("Синхронизация уже выполняется, запуск отброшен", "trigger", trigger)
		return &SyncResult{Trigger: trigger, Outcome: OutcomeDropped, StartTime: s.now()}
	}
	defer s.inFlight.Store(false)

	res := &SyncResult{Trigger: trigger, StartTime: s.now()}
	s.run(ctx, res)

	res.EndTime = s.now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	s.finish(ctx, res)
	return res
}

func (s *SyncService) run(ctx context.Context, res *SyncResult) {
	// Проверяем условия для синхронизации
	if !s.remote.IsAuthenticated() {
		s.skip(res, StatusNotLoggedIn, "not logged in")
		return
	}
	if err := s.remote.HealthCheck(ctx); err != nil {
		if !errors.Is(err, ErrOffline) {
			s.fail(res, "health check", err)
			return
		}
		s.log.Info("Сервер недоступен", "error", err)
		s.skip(res, StatusOffline, "offline")
		return
	}

	s.log.Info("Начало синхронизации", "trigger", res.Trigger)
	s.status.set(StatusSyncing, "")

	// время до запроса: все, что создано позже, в снимок сервера не попало
	startedAt := s.now().UTC()

	fetch, err := s.remote.FetchRemote(ctx)
	if err != nil {
		s.fail(res, "fetch", err)
		return
	}
	res.Fetch = fetch.Outcome.String()

	remote := fetch.Dataset
	switch fetch.Outcome {
	case FetchSkipped:
		s.skip(res, StatusOffline, "offline")
		return
	case FetchNotFound:
		remote = &dataset.Dataset{}
	}

	mr, pending, err := s.mergeLocal(ctx, remote)
	if err != nil {
		s.fail(res, "merge", err)
		return
	}
	res.Changed = mr.Changed
	res.Added, res.Dropped, res.Conflicts, _ = mr.Stats()

	report, err := s.push(ctx, mr)
	if err != nil {
		s.fail(res, "push", err)
		return
	}
	res.Pushed, res.Stale, res.Failed = report.Pushed, report.Stale, report.Failed
	res.Errors = append(res.Errors, report.Errors...)

	deleted, delErrs := s.flushDeletes(ctx, pending)
	res.Deleted = deleted
	res.Failed += len(delErrs)
	res.Errors = append(res.Errors, delErrs...)

	if report.Skipped {
		res.Outcome = OutcomePartial
		res.Reason = "offline"
		s.status.set(StatusOffline, "сервер недоступен, изменения сохранены локально")
		return
	}
	if res.Failed > 0 {
		res.Outcome = OutcomePartial
		res.Reason = fmt.Sprintf("%d changes not sent", res.Failed)
		s.status.set(StatusError, res.Reason)
		return
	}

	if err := s.store.SetLastSync(ctx, startedAt); err != nil {
		s.fail(res, "last sync", err)
		return
	}
	res.Outcome = OutcomeSynced
	s.status.set(StatusSynced, "")
}

// mergeLocal читает локальный набор, сливает его с серверным и сохраняет итог.
// Выполняется под locker, чтобы не потерять изменения, сделанные во время запроса.
func (s *SyncService) mergeLocal(ctx context.Context, remote *dataset.Dataset) (merge.DatasetResult, []PendingDelete, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	local, err := s.store.LoadAll(ctx)
	if err != nil {
		return merge.DatasetResult{}, nil, fmt.Errorf("ошибка чтения локальных данных: %w", err)
	}
	pending, err := s.store.LoadPendingDeletes(ctx)
	if err != nil {
		return merge.DatasetResult{}, nil, fmt.Errorf("ошибка чтения очереди удалений: %w", err)
	}

	// без этого удаленные локально записи вернулись бы с сервера
	remote = withoutPending(remote, pending)

	mr := merge.Dataset(local, remote, local.LastSync)
	_, _, _, toPush := mr.Stats()
	s.log.Debug("Слияние выполнено",
		"changed", mr.Changed,
		"to_push", toPush,
	)

	if mr.Changed {
		if err := s.store.SaveAll(ctx, mr.Dataset); err != nil {
			return merge.DatasetResult{}, nil, fmt.Errorf("ошибка сохранения: %w", err)
		}
	}
	return mr, pending, nil
}

func (s *SyncService) push(ctx context.Context, mr merge.DatasetResult) (PushReport, error) {
	batch := PushBatch{
		Sessions: mr.Sessions.ToPush,
		Scores:   mr.Scores.ToPush,
		Events:   mr.Events.ToPush,
	}
	if mr.Preferences.Push {
		batch.Preferences = mr.Dataset.Preferences
	}
	if mr.Courses.Push {
		batch.Courses = mr.Dataset.Courses
	}
	if batch.Empty() {
		return PushReport{}, nil
	}

	s.log.Info("Отправка изменений", "records", batch.Size())
	return s.remote.PushRemote(ctx, batch)
}

// flushDeletes отправляет накопленные удаления. Подтвержденные убираются из очереди,
// остальные остаются до следующего цикла.
func (s *SyncService) flushDeletes(ctx context.Context, pending []PendingDelete) (int, []error) {
	if len(pending) == 0 {
		return 0, nil
	}

	type key struct {
		c  dataset.Collection
		id string
	}
	done := make(map[key]struct{}, len(pending))
	var errs []error
	for _, p := range pending {
		if err := s.remote.DeleteRemote(ctx, p.Collection, p.ID); err != nil {
			s.log.Warn("Не удалось удалить запись на сервере",
				"collection", p.Collection.String(),
				"id", p.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("delete %s/%s: %w", p.Collection, p.ID, err))
			continue
		}
		done[key{p.Collection, p.ID}] = struct{}{}
	}
	if len(done) == 0 {
		return 0, errs
	}

	s.locker.Lock()
	defer s.locker.Unlock()

	// очередь могла пополниться, пока шли запросы
	current, err := s.store.LoadPendingDeletes(ctx)
	if err != nil {
		return len(done), append(errs, err)
	}
	rest := current[:0]
	for _, p := range current {
		if _, ok := done[key{p.Collection, p.ID}]; !ok {
			rest = append(rest, p)
		}
	}
	if err := s.store.SavePendingDeletes(ctx, rest); err != nil {
		return len(done), append(errs, err)
	}
	return len(done), errs
}

func withoutPending(ds *dataset.Dataset, pending []PendingDelete) *dataset.Dataset {
	if len(pending) == 0 || ds == nil {
		return ds
	}
	hidden := make(map[dataset.Collection]map[string]struct{})
	for _, p := range pending {
		if hidden[p.Collection] == nil {
			hidden[p.Collection] = make(map[string]struct{})
		}
		hidden[p.Collection][p.ID] = struct{}{}
	}

	out := ds.Clone()
	out.Sessions = filterHidden(out.Sessions, hidden[dataset.CollectionSessions])
	out.Scores = filterHidden(out.Scores, hidden[dataset.CollectionScores])
	out.Events = filterHidden(out.Events, hidden[dataset.CollectionEvents])
	return out
}

func filterHidden[T interface{ Key() string }](records []T, hidden map[string]struct{}) []T {
	if len(hidden) == 0 {
		return records
	}
	out := records[:0]
	for _, r := range records {
		if _, ok := hidden[r.Key()]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// skip завершает цикл без обращения к данным. Пользователь видит причину
// только при ручном запуске.
func (s *SyncService) skip(res *SyncResult, status Status, reason string) {
	res.Outcome = OutcomeSkipped
	res.Reason = reason
	s.log.Debug("Синхронизация пропущена", "reason", reason, "trigger", res.Trigger)

	switch {
	case res.Trigger == TriggerManual:
		s.status.set(status, reason)
	case s.status.Current().Status == StatusSyncing:
		s.status.set(StatusIdle, "")
	}
}

func (s *SyncService) fail(res *SyncResult, stage string, err error) {
	res.Outcome = OutcomeFailed
	res.Errors = append(res.Errors, err)

	switch {
	case errors.Is(err, ErrUnauthorized):
		res.Reason = "session expired"
		s.status.set(StatusNotLoggedIn, "сессия истекла, войдите снова")
	case errors.Is(err, ErrQuotaExceeded):
		res.Reason = "storage full"
		s.status.set(StatusError, "локальное хранилище переполнено")
	default:
		res.Reason = stage + " failed"
		s.status.set(StatusError, err.Error())
	}
	s.log.Error("Ошибка синхронизации", "stage", stage, "error", err)
}

func (s *SyncService) finish(ctx context.Context, res *SyncResult) {
	switch res.Outcome {
	case OutcomeSynced, OutcomePartial:
		s.log.Info("Синхронизация завершена",
			"outcome", res.Outcome,
			"duration", res.Duration,
			"added", res.Added,
			"dropped", res.Dropped,
			"pushed", res.Pushed,
			"failed", res.Failed,
		)
	}

	if res.Outcome != OutcomeSkipped && res.Outcome != OutcomeDropped {
		s.updateStats(ctx, res)
	}

	s.mu.Lock()
	s.lastResult = res
	s.mu.Unlock()

	s.status.complete(res)
}

// updateStats обновляет статистику синхронизации
func (s *SyncService) updateStats(ctx context.Context, res *SyncResult) {
	s.mu.Lock()
	s.stats.TotalSyncs++
	if res.Outcome == OutcomeSynced {
		s.stats.LastSuccessful = res.EndTime
	} else {
		s.stats.LastFailed = res.EndTime
	}
	s.stats.TotalUploaded += res.Pushed
	s.stats.TotalDownloaded += res.Added
	s.stats.TotalDropped += res.Dropped
	s.stats.TotalConflicts += res.Conflicts
	s.stats.TotalErrors += len(res.Errors)

	// Обновляем среднюю продолжительность
	n := float64(s.stats.TotalSyncs)
	s.stats.AvgSyncDuration = (s.stats.AvgSyncDuration*(n-1) + res.Duration.Seconds()) / n
	stats := s.stats
	s.mu.Unlock()

	if err := s.store.SetValue(ctx, KeySyncStats, stats); err != nil {
		s.log.Warn("Не удалось сохранить статистику", "error", err)
	}
}

// RestoreStats загружает сохраненную статистику.
func (s *SyncService) RestoreStats(ctx context.Context) error {
	var stats SyncStats
	ok, err := s.store.GetValue(ctx, KeySyncStats, &stats)
	if err != nil || !ok {
		return err
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	return nil
}

func (s *SyncService) GetStats() SyncStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// LastResult возвращает итог последнего цикла или nil.
func (s *SyncService) LastResult() *SyncResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult
}

// Close останавливает таймер сброса статуса.
func (s *SyncService) Close() {
	s.status.stop()
}
