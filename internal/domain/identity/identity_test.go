package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studysync/internal/domain/dataset"
)

func TestEnsureID(t *testing.T) {
	a := New(ModeRandom)

	t.Run("assigns missing id", func(t *testing.T) {
		m := dataset.Meta{Timestamp: "2024-01-01T10:00:00.000Z"}
		assert.True(t, a.EnsureID(dataset.CollectionSessions, &m))
		_, err := uuid.Parse(m.ID)
		require.NoError(t, err)
	})

	t.Run("keeps existing id", func(t *testing.T) {
		m := dataset.Meta{ID: "keep-me"}
		assert.False(t, a.EnsureID(dataset.CollectionSessions, &m))
		assert.Equal(t, "keep-me", m.ID)
	})

	t.Run("idempotent", func(t *testing.T) {
		m := dataset.Meta{}
		a.EnsureID(dataset.CollectionScores, &m)
		first := m.ID
		a.EnsureID(dataset.CollectionScores, &m)
		assert.Equal(t, first, m.ID)
	})
}

func TestEnsureIDUnique(t *testing.T) {
	a := New(ModeRandom)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		m := dataset.Meta{}
		a.EnsureID(dataset.CollectionEvents, &m)
		_, dup := seen[m.ID]
		require.False(t, dup, "duplicate id %s", m.ID)
		seen[m.ID] = struct{}{}
	}
}

func TestLegacyModeDeterministic(t *testing.T) {
	a := New(ModeLegacy)
	b := New(ModeLegacy)

	m1 := dataset.Meta{Timestamp: "2024-01-01T10:00:00.000Z"}
	m2 := dataset.Meta{Timestamp: "2024-01-01T10:00:00.000Z"}
	a.EnsureID(dataset.CollectionSessions, &m1)
	b.EnsureID(dataset.CollectionSessions, &m2)
	assert.Equal(t, m1.ID, m2.ID)

	m3 := dataset.Meta{Timestamp: "2024-01-01T10:00:00.000Z"}
	a.EnsureID(dataset.CollectionScores, &m3)
	assert.NotEqual(t, m1.ID, m3.ID)
}

func TestEnsureDataset(t *testing.T) {
	ds := &dataset.Dataset{
		Sessions: []dataset.Session{{Course: "Cardio"}, {Meta: dataset.Meta{ID: "s1"}, Course: "Cardio"}},
		Scores:   []dataset.Score{{Course: "Nephro"}},
		Events:   []dataset.Event{{Title: "Exam"}},
	}

	assert.Equal(t, 3, New(ModeRandom).EnsureDataset(ds))
	assert.Equal(t, "s1", ds.Sessions[1].ID)
	assert.NotEmpty(t, ds.Sessions[0].ID)
	assert.NotEmpty(t, ds.Scores[0].ID)
	assert.NotEmpty(t, ds.Events[0].ID)
}
