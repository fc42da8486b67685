package client

import (
	"sync"
	"time"
)

// Status - видимое пользователю состояние синхронизации
type Status string

const (
	StatusIdle        Status = "idle"
	StatusSyncing     Status = "syncing"
	StatusSynced      Status = "synced"
	StatusError       Status = "error"
	StatusOffline     Status = "offline"
	StatusNotLoggedIn Status = "not_logged_in"
)

// Text возвращает подпись статуса для пользователя.
func (s Status) Text() string {
	switch s {
	case StatusSyncing:
		return "Syncing…"
	case StatusSynced:
		return "Synced"
	case StatusError:
		return "Sync Error"
	case StatusOffline:
		return "Offline"
	case StatusNotLoggedIn:
		return "Not logged in"
	}
	return ""
}

// StatusEvent - смена статуса с пояснением
type StatusEvent struct {
	Status  Status
	Message string
	At      time.Time
}

// SyncObserver получает смену статуса и итог каждого цикла.
type SyncObserver interface {
	OnStatus(ev StatusEvent)
	OnSyncComplete(res *SyncResult)
}

// statusReporter рассылает статусы наблюдателям и возвращает
// итоговый статус в idle через clearAfter.
type statusReporter struct {
	mu         sync.Mutex
	observers  []SyncObserver
	current    StatusEvent
	clearAfter time.Duration
	timer      *time.Timer
	gen        uint64
	now        func() time.Time
}

func newStatusReporter(clearAfter time.Duration) *statusReporter {
	return &statusReporter{
		clearAfter: clearAfter,
		current:    StatusEvent{Status: StatusIdle},
		now:        time.Now,
	}
}

func (r *statusReporter) subscribe(o SyncObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *statusReporter) Current() StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *statusReporter) set(status Status, message string) {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	ev := StatusEvent{Status: status, Message: message, At: r.now()}
	r.current = ev
	r.gen++
	gen := r.gen
	observers := append([]SyncObserver(nil), r.observers...)

	// syncing держится до конца цикла, остальные статусы гаснут сами
	if status != StatusSyncing && status != StatusIdle && r.clearAfter > 0 {
		r.timer = time.AfterFunc(r.clearAfter, func() { r.clear(gen) })
	}
	r.mu.Unlock()

	for _, o := range observers {
		o.OnStatus(ev)
	}
}

// clear сбрасывает статус, только если после set с номером gen его никто не менял.
func (r *statusReporter) clear(gen uint64) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	ev := StatusEvent{Status: StatusIdle, At: r.now()}
	r.current = ev
	r.gen++
	r.timer = nil
	observers := append([]SyncObserver(nil), r.observers...)
	r.mu.Unlock()

	for _, o := range observers {
		o.OnStatus(ev)
	}
}

func (r *statusReporter) complete(res *SyncResult) {
	r.mu.Lock()
	observers := append([]SyncObserver(nil), r.observers...)
	r.mu.Unlock()

	for _, o := range observers {
		o.OnSyncComplete(res)
	}
}

func (r *statusReporter) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
