package client

import (
	"context"
	"errors"
	"fmt"

	"studysync/internal/domain/dataset"
)

var (
	ErrUnauthorized = errors.New("not authenticated")
	ErrOffline      = errors.New("server unreachable")
)

// APIError - ответ сервера со статусом 4xx/5xx
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ошибка сервера (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ошибка сервера: статус %d", e.Status)
}

// FetchOutcome - исход запроса удаленного набора
type FetchOutcome int

const (
	FetchFetched FetchOutcome = iota
	// FetchNotFound - у пользователя на сервере еще ничего нет
	FetchNotFound
	// FetchSkipped - нет токена или сети
	FetchSkipped
)

func (o FetchOutcome) String() string {
	switch o {
	case FetchFetched:
		return "fetched"
	case FetchNotFound:
		return "not_found"
	case FetchSkipped:
		return "skipped"
	}
	return "unknown"
}

type FetchResult struct {
	Outcome FetchOutcome
	Dataset *dataset.Dataset
	// Skipped - число серверных строк, которые не удалось разобрать
	Skipped int
}

// PushBatch - изменения для отправки. Nil-поля не отправляются.
type PushBatch struct {
	Sessions    []dataset.Session
	Scores      []dataset.Score
	Events      []dataset.Event
	Preferences dataset.Preferences
	Courses     []string
}

func (b PushBatch) Empty() bool {
	return len(b.Sessions) == 0 && len(b.Scores) == 0 && len(b.Events) == 0 &&
		b.Preferences == nil && b.Courses == nil
}

// Size возвращает число записей коллекций в пакете.
func (b PushBatch) Size() int {
	return len(b.Sessions) + len(b.Scores) + len(b.Events)
}

// PushReport - итог отправки. Ошибки отдельных запросов собираются, а не прерывают отправку.
type PushReport struct {
	Skipped bool
	Pushed  int
	// Stale - строки, которые на сервере новее присланных
	Stale  int
	Failed int
	Errors []error
}

// Remote - удаленное хранилище набора данных
type Remote interface {
	IsAuthenticated() bool
	HealthCheck(ctx context.Context) error
	FetchRemote(ctx context.Context) (FetchResult, error)
	PushRemote(ctx context.Context, batch PushBatch) (PushReport, error)
	DeleteRemote(ctx context.Context, c dataset.Collection, id string) error
}
