package dataset

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Collection - имя синхронизируемой коллекции записей
type Collection string

const (
	CollectionSessions Collection = "sessions"
	CollectionScores   Collection = "scores"
	CollectionEvents   Collection = "events"
)

// Collections возвращает все коллекции в порядке синхронизации.
func Collections() []Collection {
	return []Collection{CollectionSessions, CollectionScores, CollectionEvents}
}

func (Collection) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type: huma.TypeString,
		Enum: []any{
			string(CollectionSessions),
			string(CollectionScores),
			string(CollectionEvents),
		},
		Description: "Коллекция записей",
		Examples:    []any{string(CollectionSessions)},
	}
}

// Validate реализует интерфейс huma.Validatable.
func (c Collection) Validate() error {
	switch c {
	case CollectionSessions, CollectionScores, CollectionEvents:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownCollection, string(c))
}

func (c Collection) String() string {
	return string(c)
}

// DisplayName возвращает человекочитаемое название коллекции.
func (c Collection) DisplayName() string {
	switch c {
	case CollectionSessions:
		return "Учебные сессии"
	case CollectionScores:
		return "Результаты тестов"
	case CollectionEvents:
		return "События"
	default:
		return "Неизвестная коллекция"
	}
}
