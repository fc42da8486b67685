package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"studysync/internal/app/client/config"
	"studysync/internal/domain/collection"
	"studysync/internal/domain/dataset"
	"studysync/internal/domain/user"
)

type httpClient struct {
	client    *http.Client
	config    *config.Config
	log       *slog.Logger
	baseURL   string
	userAgent string

	mu    sync.RWMutex
	token string
}

var _ Remote = (*httpClient)(nil)

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*httpClient, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
	}

	// Определяем протокол
	scheme := "http://"
	if cfg.EnableTLS {
		scheme = "https://"
		tlsConfig, err := loadTLSConfig(cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsConfig
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &httpClient{
		client: &http.Client{
			Timeout:   timeout,
			Transport: newRetryTransport(transport, cfg.MaxRetries, log),
		},
		config:    cfg,
		log:       log,
		baseURL:   scheme + cfg.ServerAddress,
		userAgent: "StudySync-Client/1.0",
	}, nil
}

func loadTLSConfig(caPath string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if caPath == "" {
		return tlsConfig, nil
	}

	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сертификата CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("файл %s не содержит сертификатов", caPath)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// SetToken устанавливает токен аутентификации
func (h *httpClient) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

func (h *httpClient) IsAuthenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token != ""
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

func (h *httpClient) Register(ctx context.Context, login, password string) (int, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/user/register", user.Credentials{
		Login:    login,
		Password: password,
	})
	if err != nil {
		return 0, err
	}

	var registerResp struct {
		ID int `json:"user_id"`
	}
	if err := h.parseResponse(resp, &registerResp); err != nil {
		return 0, err
	}
	return registerResp.ID, nil
}

func (h *httpClient) Login(ctx context.Context, login, password string) (string, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/user/login", user.Credentials{
		Login:    login,
		Password: password,
	})
	if err != nil {
		return "", err
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := h.parseResponse(resp, &loginResp); err != nil {
		return "", err
	}
	if loginResp.Token == "" {
		return "", errors.New("сервер не вернул токен")
	}

	h.SetToken(loginResp.Token)
	return loginResp.Token, nil
}

// Logout отзывает токен на сервере. Локальный токен сбрасывается в любом случае.
func (h *httpClient) Logout(ctx context.Context) error {
	defer h.SetToken("")
	if !h.IsAuthenticated() {
		return nil
	}

	resp, err := h.doRequest(ctx, http.MethodPost, "/user/logout", nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// FetchRemote загружает полный набор данных пользователя.
// Без токена или сети возвращает FetchSkipped без ошибки.
func (h *httpClient) FetchRemote(ctx context.Context) (FetchResult, error) {
	if !h.IsAuthenticated() {
		return FetchResult{Outcome: FetchSkipped}, nil
	}

	resp, err := h.doRequest(ctx, http.MethodGet, "/api/dataset", nil)
	if err != nil {
		if errors.Is(err, ErrOffline) {
			h.log.Info("Сервер недоступен, загрузка пропущена", "error", err)
			return FetchResult{Outcome: FetchSkipped}, nil
		}
		return FetchResult{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = h.parseResponse(resp, nil)
		return FetchResult{Outcome: FetchNotFound}, nil
	}

	var body collection.FetchResponse
	if err := h.parseResponse(resp, &body); err != nil {
		return FetchResult{}, err
	}
	if body.Data == nil {
		return FetchResult{}, errors.New("ответ сервера не содержит данных")
	}

	ds, skipped := snapshotToDataset(body.Data)
	if skipped > 0 {
		h.log.Warn("Часть серверных записей пропущена", "count", skipped)
	}
	return FetchResult{Outcome: FetchFetched, Dataset: ds, Skipped: skipped}, nil
}

// PushRemote отправляет изменения пакетами по PushBatchSize строк.
// Ошибка одного пакета не останавливает остальные.
func (h *httpClient) PushRemote(ctx context.Context, batch PushBatch) (PushReport, error) {
	if !h.IsAuthenticated() {
		return PushReport{Skipped: true}, nil
	}

	var report PushReport
	h.pushRows(ctx, &report, dataset.CollectionSessions, recordsToRows(batch.Sessions))
	h.pushRows(ctx, &report, dataset.CollectionScores, recordsToRows(batch.Scores))
	h.pushRows(ctx, &report, dataset.CollectionEvents, recordsToRows(batch.Events))

	if batch.Preferences != nil {
		if err := h.pushPreferences(ctx, batch.Preferences); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("preferences: %w", err))
		} else {
			report.Pushed++
		}
	}

	if batch.Courses != nil {
		if err := h.pushCourses(ctx, batch.Courses); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("courses: %w", err))
		} else {
			report.Pushed++
		}
	}

	if report.Pushed == 0 && report.Stale == 0 && len(report.Errors) > 0 && allOffline(report.Errors) {
		h.log.Info("Сервер недоступен, отправка пропущена")
		return PushReport{Skipped: true}, nil
	}
	return report, nil
}

func (h *httpClient) pushRows(ctx context.Context, report *PushReport, c dataset.Collection, rows []collection.Row) {
	size := h.config.PushBatchSize
	if size <= 0 {
		size = len(rows)
	}

	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunk := rows[start:end]

		resp, err := h.doRequest(ctx, http.MethodPost, "/api/dataset/"+c.String(),
			collection.UpsertRequest{Rows: chunk})
		if err == nil {
			var body collection.UpsertResponse
			if err = h.parseResponse(resp, &body); err == nil {
				report.Pushed += body.Processed
				report.Stale += body.Stale
				for _, f := range body.Failed {
					report.Failed++
					report.Errors = append(report.Errors, fmt.Errorf("%s/%s: %s", c, f.ID, f.Error))
				}
				continue
			}
		}

		h.log.Warn("Не удалось отправить пакет",
			"collection", c.String(),
			"rows", len(chunk),
			"error", err,
		)
		report.Failed += len(chunk)
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", c, err))
	}
}

func (h *httpClient) pushPreferences(ctx context.Context, prefs dataset.Preferences) error {
	row := collection.PreferencesRow{
		Payload:   map[string]any(prefs.Clone()),
		UpdatedAt: prefs.UpdatedAt(),
	}
	resp, err := h.doRequest(ctx, http.MethodPut, "/api/dataset/preferences", row)
	if err != nil {
		return err
	}
	var body collection.PreferencesResponse
	return h.parseResponse(resp, &body)
}

func (h *httpClient) pushCourses(ctx context.Context, courses []string) error {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/dataset/courses",
		collection.CoursesRequest{Courses: courses})
	if err != nil {
		return err
	}
	var body collection.CoursesResponse
	return h.parseResponse(resp, &body)
}

// DeleteRemote удаляет запись на сервере. Отсутствующая запись считается удаленной.
func (h *httpClient) DeleteRemote(ctx context.Context, c dataset.Collection, id string) error {
	if !h.IsAuthenticated() {
		return ErrUnauthorized
	}

	resp, err := h.doRequest(ctx, http.MethodDelete,
		"/api/dataset/"+c.String()+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}

	err = h.parseResponse(resp, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		// bytes.Reader позволяет http заполнить GetBody для повторов
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	// Добавляем заголовки
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	h.mu.RLock()
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	h.mu.RUnlock()

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		if isOffline(err) {
			return nil, fmt.Errorf("%w: %w", ErrOffline, err)
		}
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"size", len(body),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}

// errorMessage достает текст ошибки из ответа: detail модели ошибок huma или поле error.
func errorMessage(body []byte) string {
	var errResp struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	switch {
	case errResp.Detail != "":
		return errResp.Detail
	case errResp.Error != "":
		return errResp.Error
	}
	return errResp.Title
}

// isOffline отличает недоступность сервера от прочих ошибок запроса.
func isOffline(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func allOffline(errs []error) bool {
	for _, err := range errs {
		if !errors.Is(err, ErrOffline) {
			return false
		}
	}
	return true
}
