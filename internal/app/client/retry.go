package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/exp/slog"
)

// retryTransport повторяет запросы при 429 и 502-504 с экспоненциальной задержкой.
// Тело запроса перечитывается через GetBody.
type retryTransport struct {
	next       http.RoundTripper
	maxRetries int
	log        *slog.Logger
	// newBackOff подменяется в тестах
	newBackOff func() backoff.BackOff
}

func newRetryTransport(next http.RoundTripper, maxRetries int, log *slog.Logger) *retryTransport {
	return &retryTransport{
		next:       next,
		maxRetries: maxRetries,
		log:        log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 300 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.maxRetries <= 0 {
		return t.next.RoundTrip(req)
	}

	var (
		resp    *http.Response
		attempt int
	)

	op := func() error {
		attempt++
		r := req
		if attempt > 1 {
			// предыдущий ответ больше не нужен
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			resp = nil

			if req.Body != nil && req.Body != http.NoBody {
				if req.GetBody == nil {
					return backoff.Permanent(errors.New("тело запроса нельзя отправить повторно"))
				}
				body, err := req.GetBody()
				if err != nil {
					return backoff.Permanent(err)
				}
				r = req.Clone(req.Context())
				r.Body = body
			}
		}

		res, err := t.next.RoundTrip(r)
		if err != nil {
			// сетевые ошибки отдаются наверх: их обрабатывает синхронизация
			return backoff.Permanent(err)
		}
		resp = res
		if !retryableStatus(res.StatusCode) {
			return nil
		}

		t.log.Debug("Повтор запроса",
			"url", req.URL.String(),
			"status", res.StatusCode,
			"attempt", attempt,
		)
		return fmt.Errorf("сервер вернул статус %d", res.StatusCode)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), uint64(t.maxRetries)), req.Context())
	err := backoff.Retry(op, b)
	if resp != nil && req.Context().Err() == nil {
		// после исчерпания попыток отдаем последний ответ как есть
		return resp, nil
	}
	if resp != nil {
		resp.Body.Close()
	}
	return nil, err
}
