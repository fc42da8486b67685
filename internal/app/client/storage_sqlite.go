package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
	"studysync/internal/domain/identity"
)

// SQLiteStorage - локальное хранилище ключ-значение в файле SQLite
type SQLiteStorage struct {
	db    *sql.DB
	codec *datasetCodec
}

func NewSQLiteStorage(path string, assigner *identity.Assigner, log *slog.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// PRAGMA действуют на соединение, держим одно
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	storage.codec = &datasetCodec{raw: storage, assigner: assigner, log: log}

	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStorage) LoadAll(ctx context.Context) (*dataset.Dataset, error) {
	return s.codec.loadAll(ctx)
}

// SaveAll пишет каждую коллекцию отдельным ключом. Ошибка одного ключа не
// откатывает остальные. При переполнении возвращается ErrQuotaExceeded.
func (s *SQLiteStorage) SaveAll(ctx context.Context, ds *dataset.Dataset) error {
	return s.codec.saveAll(ctx, ds)
}

func (s *SQLiteStorage) SetLastSync(ctx context.Context, t time.Time) error {
	return s.codec.setJSON(ctx, KeyLastSync, t.UTC())
}

func (s *SQLiteStorage) LoadPendingDeletes(ctx context.Context) ([]PendingDelete, error) {
	return s.codec.loadPendingDeletes(ctx)
}

func (s *SQLiteStorage) SavePendingDeletes(ctx context.Context, pending []PendingDelete) error {
	return s.codec.setJSON(ctx, KeyPendingDeletes, nonNil(pending))
}

func (s *SQLiteStorage) GetValue(ctx context.Context, key string, dst any) (bool, error) {
	return s.codec.getJSON(ctx, key, dst)
}

func (s *SQLiteStorage) SetValue(ctx context.Context, key string, v any) error {
	return s.codec.setJSON(ctx, key, v)
}

// DeleteValue удаляет ключ целиком.
func (s *SQLiteStorage) DeleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("ошибка удаления ключа %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapSQLiteErr(err)
	}
	return []byte(value), true, nil
}

func (s *SQLiteStorage) set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC())
	return wrapSQLiteErr(err)
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func wrapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrFull {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return ErrStoreClosed
	}
	return err
}
