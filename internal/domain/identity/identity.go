// Package identity назначает стабильные идентификаторы записям, у которых их нет.
package identity

import (
	"github.com/google/uuid"

	"studysync/internal/domain/dataset"
)

// Mode - способ генерации идентификаторов
type Mode string

const (
	// ModeRandom - случайный UUIDv4
	ModeRandom Mode = "random"
	// ModeLegacy - детерминированный UUIDv5 из коллекции и метки создания,
	// чтобы две копии одной старой записи получили одинаковый id
	ModeLegacy Mode = "legacy"
)

var legacyNamespace = uuid.MustParse("6f0c5b8e-4d1a-4b5e-9a8e-3c2f1d7b9e21")

type Assigner struct {
	mode  Mode
	newID func() string
}

func New(mode Mode) *Assigner {
	if mode != ModeLegacy {
		mode = ModeRandom
	}
	return &Assigner{mode: mode, newID: uuid.NewString}
}

// NewID возвращает свежий идентификатор.
func (a *Assigner) NewID() string {
	return a.newID()
}

// EnsureID проставляет id, если его нет. Существующий id не меняется.
// Возвращает true, если id был назначен.
func (a *Assigner) EnsureID(collection dataset.Collection, m *dataset.Meta) bool {
	if m.ID != "" {
		return false
	}
	if a.mode == ModeLegacy && m.Timestamp != "" {
		m.ID = uuid.NewSHA1(legacyNamespace, []byte(collection.String()+"|"+m.Timestamp)).String()
		return true
	}
	m.ID = a.newID()
	return true
}

// EnsureDataset назначает id всем записям набора без id и возвращает их количество.
func (a *Assigner) EnsureDataset(ds *dataset.Dataset) int {
	assigned := 0
	for i := range ds.Sessions {
		if a.EnsureID(dataset.CollectionSessions, &ds.Sessions[i].Meta) {
			assigned++
		}
	}
	for i := range ds.Scores {
		if a.EnsureID(dataset.CollectionScores, &ds.Scores[i].Meta) {
			assigned++
		}
	}
	for i := range ds.Events {
		if a.EnsureID(dataset.CollectionEvents, &ds.Events[i].Meta) {
			assigned++
		}
	}
	return assigned
}
