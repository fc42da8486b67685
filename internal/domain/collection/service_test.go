package collection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListRows(ctx context.Context, userID int, c dataset.Collection) ([]Row, error) {
	args := m.Called(ctx, userID, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Row), args.Error(1)
}

func (m *MockRepository) UpsertRow(ctx context.Context, userID int, c dataset.Collection, row Row) (bool, error) {
	args := m.Called(ctx, userID, c, row)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) DeleteRow(ctx context.Context, userID int, c dataset.Collection, id string) (bool, error) {
	args := m.Called(ctx, userID, c, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) GetPreferences(ctx context.Context, userID int) (*PreferencesRow, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PreferencesRow), args.Error(1)
}

func (m *MockRepository) UpsertPreferences(ctx context.Context, userID int, prefs PreferencesRow) (bool, error) {
	args := m.Called(ctx, userID, prefs)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListCourses(ctx context.Context, userID int) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) AddCourses(ctx context.Context, userID int, courses []string) error {
	args := m.Called(ctx, userID, courses)
	return args.Error(0)
}

func sessionPayload(id, savedAt string) map[string]any {
	return map[string]any{
		"id":        id,
		"timestamp": "2024-01-01T09:00:00.000Z",
		"savedAt":   savedAt,
		"course":    "Cardio",
		"seconds":   1800,
	}
}

func TestService_Fetch(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	rows := []Row{{ID: "s1", Payload: sessionPayload("s1", "2024-01-01T10:00:00.000Z")}}
	mockRepo.On("ListRows", mock.Anything, 1, dataset.CollectionSessions).Return(rows, nil)
	mockRepo.On("ListRows", mock.Anything, 1, dataset.CollectionScores).Return([]Row{}, nil)
	mockRepo.On("ListRows", mock.Anything, 1, dataset.CollectionEvents).Return([]Row{}, nil)
	mockRepo.On("ListCourses", mock.Anything, 1).Return([]string{"Cardio"}, nil)
	mockRepo.On("GetPreferences", mock.Anything, 1).Return(nil, nil)

	snap, err := service.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, rows, snap.Sessions)
	assert.Equal(t, []string{"Cardio"}, snap.Courses)
	assert.Nil(t, snap.Preferences)

	mockRepo.AssertExpectations(t)
}

func TestService_Fetch_NotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("ListRows", mock.Anything, 7, mock.Anything).Return([]Row{}, nil)
	mockRepo.On("ListCourses", mock.Anything, 7).Return([]string{}, nil)
	mockRepo.On("GetPreferences", mock.Anything, 7).Return(nil, nil)

	_, err := service.Fetch(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Fetch_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("ListRows", mock.Anything, 1, dataset.CollectionSessions).Return(nil, errors.New("database error"))

	_, err := service.Fetch(context.Background(), 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestService_Upsert(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	fresh := Row{ID: "s1", Payload: sessionPayload("s1", "2024-01-01T10:00:00.000Z")}
	stale := Row{ID: "s2", Payload: sessionPayload("s2", "2024-01-01T08:00:00.000Z")}
	invalid := Row{ID: "s3", Payload: map[string]any{"seconds": 10}}
	noID := Row{Payload: sessionPayload("", "2024-01-01T10:00:00.000Z")}

	mockRepo.On("UpsertRow", mock.Anything, 1, dataset.CollectionSessions, mock.MatchedBy(func(r Row) bool {
		return r.ID == "s1"
	})).Return(true, nil)
	mockRepo.On("UpsertRow", mock.Anything, 1, dataset.CollectionSessions, mock.MatchedBy(func(r Row) bool {
		return r.ID == "s2"
	})).Return(false, nil)

	resp, err := service.Upsert(context.Background(), 1, dataset.CollectionSessions, []Row{fresh, stale, invalid, noID})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 1, resp.Stale)
	require.Len(t, resp.Failed, 2)
	assert.Equal(t, "s3", resp.Failed[0].ID)

	mockRepo.AssertExpectations(t)
}

func TestService_Upsert_DerivesUpdatedAt(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mockRepo.On("UpsertRow", mock.Anything, 1, dataset.CollectionSessions, mock.MatchedBy(func(r Row) bool {
		return r.UpdatedAt.Equal(want) && r.Payload["id"] == "s1"
	})).Return(true, nil)

	row := Row{ID: "s1", Payload: sessionPayload("other", "2024-01-01T10:00:00.000Z")}
	resp, err := service.Upsert(context.Background(), 1, dataset.CollectionSessions, []Row{row})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Processed)

	mockRepo.AssertExpectations(t)
}

func TestService_Upsert_UnknownCollection(t *testing.T) {
	service := NewService(new(MockRepository), slog.Default())

	_, err := service.Upsert(context.Background(), 1, dataset.Collection("notes"), nil)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestService_Delete(t *testing.T) {
	tests := []struct {
		name    string
		deleted bool
		repoErr error
		wantErr error
	}{
		{"deleted", true, nil, nil},
		{"missing", false, nil, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := NewService(mockRepo, slog.Default())
			mockRepo.On("DeleteRow", mock.Anything, 1, dataset.CollectionEvents, "e1").Return(tt.deleted, tt.repoErr)

			err := service.Delete(context.Background(), 1, dataset.CollectionEvents, "e1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_SavePreferences(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mockRepo.On("UpsertPreferences", mock.Anything, 1, mock.MatchedBy(func(p PreferencesRow) bool {
		return p.UpdatedAt.Equal(want)
	})).Return(true, nil)

	applied, err := service.SavePreferences(context.Background(), 1, PreferencesRow{
		Payload: map[string]any{"theme": "dark", "updatedAt": "2024-02-01T00:00:00.000Z"},
	})
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = service.SavePreferences(context.Background(), 1, PreferencesRow{})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestService_AddCourses(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, slog.Default())

	mockRepo.On("AddCourses", mock.Anything, 1, []string{"Cardio", "Surgery"}).Return(nil)
	mockRepo.On("ListCourses", mock.Anything, 1).Return([]string{"Cardio", "Nephro", "Surgery"}, nil)

	all, err := service.AddCourses(context.Background(), 1, []string{"Cardio", "cardio", " Surgery", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cardio", "Nephro", "Surgery"}, all)

	mockRepo.AssertExpectations(t)
}
