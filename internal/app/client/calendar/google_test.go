package calendar

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	gcal "google.golang.org/api/calendar/v3"
)

func TestWrapGoogleErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"too many requests", &googleapi.Error{Code: http.StatusTooManyRequests}, ErrRateLimited},
		{
			"quota reason",
			&googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}},
			ErrRateLimited,
		},
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, ErrEventNotFound},
		{"gone", &googleapi.Error{Code: http.StatusGone}, ErrEventNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, wrapGoogleErr(tt.err), tt.want)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		forbidden := &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}
		err := wrapGoogleErr(forbidden)
		assert.False(t, errors.Is(err, ErrRateLimited))
		assert.Same(t, forbidden, err)
		assert.NoError(t, wrapGoogleErr(nil))
	})
}

func TestGoogleEventConversion(t *testing.T) {
	ev := fromGoogle(&gcal.Event{
		Id:      "abc",
		Summary: "Exam",
		Start:   &gcal.EventDateTime{DateTime: "2024-03-10T09:00:00+03:00"},
		Updated: "2024-03-01T10:00:00.000Z",
	})
	assert.Equal(t, "2024-03-10", ev.Date)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ev.Updated)

	body, err := toGoogle(RemoteEvent{Title: "Exam", Date: "2024-03-31"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", body.Start.Date)
	assert.Equal(t, "2024-04-01", body.End.Date)

	_, err = toGoogle(RemoteEvent{Title: "Exam", Date: "31.03.2024"})
	assert.Error(t, err)
}
