package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	gcal "google.golang.org/api/calendar/v3"

	"studysync/internal/domain/dataset"
)

// GoogleProvider - Provider поверх Google Calendar API.
// События создаются на весь день.
type GoogleProvider struct {
	svc *gcal.Service
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider создает провайдер. client должен подписывать запросы токеном OAuth2.
func NewGoogleProvider(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GoogleProvider, error) {
	svc, err := gcal.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента календаря: %w", err)
	}
	return &GoogleProvider{svc: svc}, nil
}

func (g *GoogleProvider) FindOrCreateCalendar(ctx context.Context, name string) (string, error) {
	pageToken := ""
	for {
		call := g.svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return "", wrapGoogleErr(err)
		}
		for _, c := range list.Items {
			if c.Summary == name {
				return c.Id, nil
			}
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	created, err := g.svc.Calendars.Insert(&gcal.Calendar{Summary: name}).Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleErr(err)
	}
	return created.Id, nil
}

func (g *GoogleProvider) ListEvents(ctx context.Context, calendarID string) ([]RemoteEvent, error) {
	var out []RemoteEvent
	pageToken := ""
	for {
		call := g.svc.Events.List(calendarID).
			ShowDeleted(false).
			SingleEvents(true).
			MaxResults(2500).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Do()
		if err != nil {
			return nil, wrapGoogleErr(err)
		}
		for _, ev := range events.Items {
			if ev.Status == "cancelled" {
				continue
			}
			out = append(out, fromGoogle(ev))
		}
		if events.NextPageToken == "" {
			return out, nil
		}
		pageToken = events.NextPageToken
	}
}

func (g *GoogleProvider) InsertEvent(ctx context.Context, calendarID string, ev RemoteEvent) (RemoteEvent, error) {
	body, err := toGoogle(ev)
	if err != nil {
		return RemoteEvent{}, err
	}
	created, err := g.svc.Events.Insert(calendarID, body).Context(ctx).Do()
	if err != nil {
		return RemoteEvent{}, wrapGoogleErr(err)
	}
	return fromGoogle(created), nil
}

func (g *GoogleProvider) PatchEvent(ctx context.Context, calendarID string, ev RemoteEvent) (RemoteEvent, error) {
	body, err := toGoogle(ev)
	if err != nil {
		return RemoteEvent{}, err
	}
	patched, err := g.svc.Events.Patch(calendarID, ev.ID, body).Context(ctx).Do()
	if err != nil {
		return RemoteEvent{}, wrapGoogleErr(err)
	}
	return fromGoogle(patched), nil
}

func (g *GoogleProvider) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return wrapGoogleErr(g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do())
}

func fromGoogle(ev *gcal.Event) RemoteEvent {
	r := RemoteEvent{
		ID:          ev.Id,
		Title:       ev.Summary,
		Description: ev.Description,
	}
	if ev.Start != nil {
		switch {
		case ev.Start.Date != "":
			r.Date = ev.Start.Date
		case len(ev.Start.DateTime) >= len(dataset.DateLayout):
			r.Date = ev.Start.DateTime[:len(dataset.DateLayout)]
		}
	}
	if t, err := time.Parse(time.RFC3339, ev.Updated); err == nil {
		r.Updated = t.UTC()
	}
	return r
}

func toGoogle(ev RemoteEvent) (*gcal.Event, error) {
	day, err := time.Parse(dataset.DateLayout, ev.Date)
	if err != nil {
		return nil, fmt.Errorf("некорректная дата события %q: %w", ev.Date, err)
	}
	return &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{Date: ev.Date},
		// конец события на весь день не включается
		End: &gcal.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dataset.DateLayout)},
	}, nil
}

// wrapGoogleErr переводит ошибки API в ErrRateLimited и ErrEventNotFound.
func wrapGoogleErr(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	switch gerr.Code {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: %w", ErrEventNotFound, err)
	case http.StatusForbidden:
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return fmt.Errorf("%w: %w", ErrRateLimited, err)
			}
		}
	}
	return err
}
