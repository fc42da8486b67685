package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studysync/internal/domain/dataset"
)

var (
	ErrTimerRunning    = errors.New("timer is already running")
	ErrTimerNotRunning = errors.New("timer is not running")
)

// TimerKind - тип отсчета
type TimerKind string

const (
	TimerStudy TimerKind = "study"
	TimerBreak TimerKind = "break"
)

// TimerSnapshot - сохраненный запущенный таймер. По нему отсчет
// восстанавливается после перезапуска.
type TimerSnapshot struct {
	Kind            TimerKind     `json:"kind"`
	Course          string        `json:"course,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	PlannedDuration time.Duration `json:"plannedDuration"`
}

// Elapsed возвращает прошедшее время, не больше запланированного.
func (t TimerSnapshot) Elapsed(now time.Time) time.Duration {
	d := now.Sub(t.StartedAt)
	if d < 0 {
		return 0
	}
	if t.PlannedDuration > 0 && d > t.PlannedDuration {
		return t.PlannedDuration
	}
	return d
}

func (t TimerSnapshot) Remaining(now time.Time) time.Duration {
	if t.PlannedDuration <= 0 {
		return 0
	}
	return t.PlannedDuration - t.Elapsed(now)
}

func (t TimerSnapshot) Finished(now time.Time) bool {
	return t.PlannedDuration > 0 && t.Remaining(now) == 0
}

// StartTimer запускает таймер. Для учебного таймера пустой курс заменяется последним.
func (a *App) StartTimer(ctx context.Context, kind TimerKind, course string, planned time.Duration) (*TimerSnapshot, error) {
	if _, ok, err := a.Timer(ctx); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrTimerRunning
	}

	switch kind {
	case TimerStudy:
		if course == "" {
			course = a.LastCourse(ctx)
		}
		if course == "" {
			return nil, fmt.Errorf("курс не указан")
		}
	case TimerBreak:
		course = ""
	default:
		return nil, fmt.Errorf("неизвестный тип таймера: %s", kind)
	}

	snap := &TimerSnapshot{
		Kind:            kind,
		Course:          course,
		StartedAt:       a.now().UTC(),
		PlannedDuration: planned,
	}
	if err := a.storage.SetValue(ctx, KeyTimerSnapshot, snap); err != nil {
		return nil, fmt.Errorf("ошибка сохранения таймера: %w", err)
	}
	return snap, nil
}

// Timer возвращает запущенный таймер.
func (a *App) Timer(ctx context.Context) (*TimerSnapshot, bool, error) {
	var snap *TimerSnapshot
	if _, err := a.storage.GetValue(ctx, KeyTimerSnapshot, &snap); err != nil {
		a.log.Warn("Снимок таймера поврежден, сбрасываем", "error", err)
		return nil, false, a.storage.SetValue(ctx, KeyTimerSnapshot, nil)
	}
	if snap == nil || snap.StartedAt.IsZero() {
		return nil, false, nil
	}
	return snap, true, nil
}

// StopTimer останавливает таймер. Учебный таймер записывается как сессия
// длиной в прошедшее время.
func (a *App) StopTimer(ctx context.Context) (*dataset.Session, error) {
	snap, ok, err := a.Timer(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTimerNotRunning
	}

	if err := a.storage.SetValue(ctx, KeyTimerSnapshot, nil); err != nil {
		return nil, fmt.Errorf("ошибка сброса таймера: %w", err)
	}

	seconds := int(snap.Elapsed(a.now()).Seconds())
	if snap.Kind != TimerStudy || seconds < 1 {
		return nil, nil
	}

	s, err := a.AddSession(ctx, snap.Course, seconds, "")
	if err != nil {
		return nil, err
	}
	return &s, nil
}
