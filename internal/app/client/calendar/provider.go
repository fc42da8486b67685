// Package calendar синхронизирует события с внешним календарем.
package calendar

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRateLimited - провайдер просит снизить частоту запросов, вызов можно повторить
	ErrRateLimited = errors.New("calendar rate limit exceeded")
	// ErrEventNotFound - события нет во внешнем календаре
	ErrEventNotFound = errors.New("calendar event not found")
)

// RemoteEvent - событие во внешнем календаре
type RemoteEvent struct {
	ID          string
	Title       string
	Description string
	// Date - день события в формате 2006-01-02
	Date    string
	Updated time.Time
}

// Provider - внешний календарь
type Provider interface {
	FindOrCreateCalendar(ctx context.Context, name string) (string, error)
	ListEvents(ctx context.Context, calendarID string) ([]RemoteEvent, error)
	InsertEvent(ctx context.Context, calendarID string, ev RemoteEvent) (RemoteEvent, error)
	PatchEvent(ctx context.Context, calendarID string, ev RemoteEvent) (RemoteEvent, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}
