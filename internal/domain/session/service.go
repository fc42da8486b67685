package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

// DefaultTTL - срок жизни токена по умолчанию. Клиент синхронизируется
// в фоне неделями, поэтому токен долгоживущий.
const DefaultTTL = 30 * 24 * time.Hour

type Servicer interface {
	Create(ctx context.Context, userID int) (string, error)
	Validate(ctx context.Context, token string) (int, error)
	Revoke(ctx context.Context, token string) error
}

type Service struct {
	repo Repository
	ttl  time.Duration
	log  *slog.Logger
}

func NewService(repo Repository, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo: repo,
		ttl:  ttl,
		log:  log,
	}
}

func (s *Service) Create(ctx context.Context, userID int) (string, error) {
	// Генерация токена
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	token := base64.URLEncoding.EncodeToString(tokenBytes)

	expiresAt := time.Now().Add(s.ttl)
	if err := s.repo.Create(ctx, userID, hashToken(token), expiresAt); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	return token, nil
}

func (s *Service) Validate(ctx context.Context, token string) (int, error) {
	if token == "" {
		return 0, ErrInvalidSession
	}
	return s.repo.Validate(ctx, hashToken(token))
}

// Revoke удаляет сессию (выход из аккаунта).
func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidSession
	}
	if err := s.repo.Delete(ctx, hashToken(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
