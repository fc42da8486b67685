package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
	"studysync/internal/domain/identity"
)

// MemoryStorage - временное in-memory хранилище. Используется, когда файл
// базы недоступен, и в тестах.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
	codec  *datasetCodec
	// quota - предел суммарного размера значений в байтах, 0 - без ограничений
	quota int
}

func NewMemoryStorage(assigner *identity.Assigner, log *slog.Logger) *MemoryStorage {
	m := &MemoryStorage{values: make(map[string][]byte)}
	m.codec = &datasetCodec{raw: m, assigner: assigner, log: log}
	return m
}

// WithQuota ограничивает суммарный размер значений.
func (m *MemoryStorage) WithQuota(bytes int) *MemoryStorage {
	m.quota = bytes
	return m
}

func (m *MemoryStorage) LoadAll(ctx context.Context) (*dataset.Dataset, error) {
	return m.codec.loadAll(ctx)
}

func (m *MemoryStorage) SaveAll(ctx context.Context, ds *dataset.Dataset) error {
	return m.codec.saveAll(ctx, ds)
}

func (m *MemoryStorage) SetLastSync(ctx context.Context, t time.Time) error {
	return m.codec.setJSON(ctx, KeyLastSync, t.UTC())
}

func (m *MemoryStorage) LoadPendingDeletes(ctx context.Context) ([]PendingDelete, error) {
	return m.codec.loadPendingDeletes(ctx)
}

func (m *MemoryStorage) SavePendingDeletes(ctx context.Context, pending []PendingDelete) error {
	return m.codec.setJSON(ctx, KeyPendingDeletes, nonNil(pending))
}

func (m *MemoryStorage) GetValue(ctx context.Context, key string, dst any) (bool, error) {
	return m.codec.getJSON(ctx, key, dst)
}

func (m *MemoryStorage) SetValue(ctx context.Context, key string, v any) error {
	return m.codec.setJSON(ctx, key, v)
}

func (m *MemoryStorage) DeleteValue(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// SetRaw кладет значение как есть, без проверки.
func (m *MemoryStorage) SetRaw(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryStorage) get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quota > 0 {
		total := len(value)
		for k, v := range m.values {
			if k != key {
				total += len(v)
			}
		}
		if total > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
