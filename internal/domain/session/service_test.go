package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, userID int, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockRepository) Validate(ctx context.Context, tokenHash string) (int, error) {
	args := m.Called(ctx, tokenHash)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, time.Hour, slog.Default())

	mockRepo.On("Create", mock.Anything, 123, mock.MatchedBy(func(hash string) bool {
		return len(hash) == 64
	}), mock.MatchedBy(func(expiresAt time.Time) bool {
		return expiresAt.After(time.Now().Add(59*time.Minute)) && expiresAt.Before(time.Now().Add(61*time.Minute))
	})).Return(nil)

	token, err := service.Create(context.Background(), 123)
	require.NoError(t, err)
	// base64 от 32 байт - 44 символа с паддингом
	assert.Len(t, token, 44)

	mockRepo.AssertExpectations(t)
}

func TestService_Create_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, 0, slog.Default())

	mockRepo.On("Create", mock.Anything, 123, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(errors.New("database error"))

	_, err := service.Create(context.Background(), 123)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
}

func TestService_CreateAndValidate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, 0, slog.Default())

	var stored string
	mockRepo.On("Create", mock.Anything, 5, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { stored = args.String(2) }).
		Return(nil)

	token, err := service.Create(context.Background(), 5)
	require.NoError(t, err)

	mockRepo.On("Validate", mock.Anything, mock.MatchedBy(func(hash string) bool {
		return hash == stored
	})).Return(5, nil)

	userID, err := service.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 5, userID)
}

func TestService_Validate_Invalid(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, 0, slog.Default())

	_, err := service.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)

	mockRepo.On("Validate", mock.Anything, mock.AnythingOfType("string")).Return(0, ErrInvalidSession)
	_, err = service.Validate(context.Background(), "expired-token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestService_Revoke(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, 0, slog.Default())

	mockRepo.On("Delete", mock.Anything, hashToken("token")).Return(nil)

	require.NoError(t, service.Revoke(context.Background(), "token"))
	assert.ErrorIs(t, service.Revoke(context.Background(), ""), ErrInvalidSession)

	mockRepo.AssertExpectations(t)
}
