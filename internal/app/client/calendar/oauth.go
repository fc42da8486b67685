package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	gcal "google.golang.org/api/calendar/v3"
)

var ErrNotAuthorized = errors.New("calendar is not authorized")

// OAuthConfig читает client credentials, скачанные из Google Cloud Console.
func OAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения учетных данных календаря: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора учетных данных календаря: %w", err)
	}
	return cfg, nil
}

// AuthURL возвращает ссылку, по которой пользователь выдает доступ к календарю.
func AuthURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// TokenStore хранит токен календаря на диске вместе со сроком действия.
type TokenStore struct {
	path string
	mu   sync.Mutex
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

func (s *TokenStore) Load() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения токена календаря: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("ошибка разбора токена календаря: %w", err)
	}
	return &tok, nil
}

func (s *TokenStore) Save(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токена календаря: %w", err)
	}
	return nil
}

// Exchange обменивает код авторизации на токен и сохраняет его.
func Exchange(ctx context.Context, cfg *oauth2.Config, store *TokenStore, code string) error {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("ошибка получения токена календаря: %w", err)
	}
	return store.Save(tok)
}

// HTTPClient возвращает клиент, подписывающий запросы сохраненным токеном.
// Обновленный библиотекой токен записывается обратно в store.
func HTTPClient(ctx context.Context, cfg *oauth2.Config, store *TokenStore) (*http.Client, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}
	src := &savingSource{
		base:  cfg.TokenSource(ctx, tok),
		store: store,
		last:  tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

type savingSource struct {
	base  oauth2.TokenSource
	store *TokenStore

	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}
