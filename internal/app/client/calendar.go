package client

import (
	"context"
	"fmt"

	"studysync/internal/app/client/calendar"
	"studysync/internal/domain/dataset"
)

// CalendarAuthURL возвращает ссылку для выдачи доступа к календарю.
func (a *App) CalendarAuthURL() (string, error) {
	cfg, err := calendar.OAuthConfig(a.config.Calendar.CredentialsPath)
	if err != nil {
		return "", err
	}
	return calendar.AuthURL(cfg, "studysync"), nil
}

// CalendarAuthorize обменивает код авторизации на токен календаря.
func (a *App) CalendarAuthorize(ctx context.Context, code string) error {
	cfg, err := calendar.OAuthConfig(a.config.Calendar.CredentialsPath)
	if err != nil {
		return err
	}
	if err := calendar.Exchange(ctx, cfg, calendar.NewTokenStore(a.config.Calendar.TokenPath), code); err != nil {
		return err
	}
	a.log.Info("Доступ к календарю получен")
	return nil
}

func (a *App) calendarProvider(ctx context.Context) (calendar.Provider, error) {
	if a.calendarProv != nil {
		return a.calendarProv, nil
	}

	cfg, err := calendar.OAuthConfig(a.config.Calendar.CredentialsPath)
	if err != nil {
		return nil, err
	}
	httpCl, err := calendar.HTTPClient(ctx, cfg, calendar.NewTokenStore(a.config.Calendar.TokenPath))
	if err != nil {
		return nil, err
	}
	return calendar.NewGoogleProvider(ctx, httpCl)
}

// SyncCalendar сводит события с внешним календарем и сохраняет результат.
// Пустой mode берется из настроек.
func (a *App) SyncCalendar(ctx context.Context, mode calendar.Mode) (*calendar.Result, error) {
	if mode == "" {
		m, err := calendar.ParseMode(a.config.Calendar.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	provider, err := a.calendarProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("календарь недоступен: %w", err)
	}
	bridge := calendar.NewBridge(provider, calendar.Config{
		CalendarName: a.config.Calendar.Name,
		BatchSize:    a.config.Calendar.BatchSize,
		BatchPause:   a.config.Calendar.BatchPause,
		MaxAttempts:  a.config.Calendar.MaxAttempts,
	}, a.assigner, a.log)

	// сетевые вызовы идут без блокировки, результат накладывается на свежие данные
	a.mu.Lock()
	ds, err := a.storage.LoadAll(ctx)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки данных: %w", err)
	}
	events := ds.Events

	res, err := bridge.Sync(ctx, mode, events)
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		return res, nil
	}

	err = a.mutate(ctx, func(ds *dataset.Dataset) error {
		merged := mergeCalendarResult(events, ds.Events, res.Events)
		removed := removedIDs(ds.Events, merged)
		ds.Events = merged
		if len(removed) == 0 {
			return nil
		}

		// иначе следующая синхронизация вернет событие с сервера
		pending, err := a.storage.LoadPendingDeletes(ctx)
		if err != nil {
			return err
		}
		for _, id := range removed {
			pending = append(pending, PendingDelete{Collection: dataset.CollectionEvents, ID: id, DeletedAt: a.now().UTC()})
		}
		return a.storage.SavePendingDeletes(ctx, pending)
	})
	if err != nil {
		return res, err
	}
	a.triggerSync()
	return res, nil
}

// mergeCalendarResult применяет итог календаря к текущим событиям.
// События, добавленные или измененные локально за время обмена, сохраняются.
func mergeCalendarResult(before, current, result []dataset.Event) []dataset.Event {
	snapshot := make(map[string]dataset.Event, len(before))
	for _, e := range before {
		snapshot[e.ID] = e
	}

	out := result
	inResult := make(map[string]int, len(result))
	for i, e := range result {
		inResult[e.ID] = i
	}
	for _, e := range current {
		old, existed := snapshot[e.ID]
		switch {
		case !existed:
			out = append(out, e)
		case old != e:
			if i, ok := inResult[e.ID]; ok {
				e.ExternalID = result[i].ExternalID
				out[i] = e
			} else {
				out = append(out, e)
			}
		}
	}

	// удаленные локально за время обмена не возвращаются
	present := make(map[string]bool, len(current))
	for _, e := range current {
		present[e.ID] = true
	}
	filtered := out[:0]
	for _, e := range out {
		if _, existed := snapshot[e.ID]; existed && !present[e.ID] {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// removedIDs возвращает id событий из current, которых нет в next.
func removedIDs(current, next []dataset.Event) []string {
	kept := make(map[string]bool, len(next))
	for _, e := range next {
		kept[e.ID] = true
	}
	var ids []string
	for _, e := range current {
		if !kept[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
