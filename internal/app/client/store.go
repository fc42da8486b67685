package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
	"studysync/internal/domain/identity"
)

// Ключи локального хранилища. Каждый ключ пишется отдельной операцией.
const (
	KeySessions       = "sessions"
	KeyScores         = "scores"
	KeyEvents         = "events"
	KeyCourses        = "courses"
	KeyPreferences    = "preferences"
	KeyLastSync       = "last_sync"
	KeyLastCourse     = "last_course"
	KeyTimerSnapshot  = "timer_snapshot"
	KeyPendingDeletes = "pending_deletes"
	KeySyncStats      = "sync_stats"
)

var (
	// ErrQuotaExceeded - в хранилище закончилось место. Данные в памяти остаются актуальными.
	ErrQuotaExceeded = errors.New("local storage quota exceeded")
	ErrStoreClosed   = errors.New("local storage is closed")
)

// PendingDelete - локальное удаление, еще не подтвержденное сервером
type PendingDelete struct {
	Collection dataset.Collection `json:"collection"`
	ID         string             `json:"id"`
	DeletedAt  time.Time          `json:"deletedAt"`
}

// Store - локальное хранилище набора данных
type Store interface {
	LoadAll(ctx context.Context) (*dataset.Dataset, error)
	SaveAll(ctx context.Context, ds *dataset.Dataset) error
	SetLastSync(ctx context.Context, t time.Time) error
	LoadPendingDeletes(ctx context.Context) ([]PendingDelete, error)
	SavePendingDeletes(ctx context.Context, pending []PendingDelete) error
	GetValue(ctx context.Context, key string, dst any) (bool, error)
	SetValue(ctx context.Context, key string, v any) error
	Close() error
}

// rawStore - ключ-значение поверх которого строятся LoadAll/SaveAll
type rawStore interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, value []byte) error
}

// datasetCodec переводит набор данных в значения ключей и обратно.
// Общий для SQLite и in-memory хранилищ.
type datasetCodec struct {
	raw      rawStore
	assigner *identity.Assigner
	log      *slog.Logger
}

func (c *datasetCodec) loadAll(ctx context.Context) (*dataset.Dataset, error) {
	ds := &dataset.Dataset{}
	var err error

	ds.Sessions, err = loadRecords[dataset.Session](ctx, c, KeySessions)
	if err != nil {
		return nil, err
	}
	ds.Scores, err = loadRecords[dataset.Score](ctx, c, KeyScores)
	if err != nil {
		return nil, err
	}
	ds.Events, err = loadRecords[dataset.Event](ctx, c, KeyEvents)
	if err != nil {
		return nil, err
	}
	for i := range ds.Events {
		ds.Events[i].Priority = ds.Events[i].Priority.OrDefault()
	}

	if _, err := c.getJSON(ctx, KeyCourses, &ds.Courses); err != nil {
		c.log.Warn("Список курсов поврежден, начинаем с пустого", slog.Any("error", err))
		ds.Courses = nil
	}
	if _, err := c.getJSON(ctx, KeyPreferences, &ds.Preferences); err != nil {
		c.log.Warn("Настройки повреждены, начинаем с пустых", slog.Any("error", err))
		ds.Preferences = nil
	}

	var lastSync time.Time
	ok, err := c.getJSON(ctx, KeyLastSync, &lastSync)
	if err != nil {
		c.log.Warn("Метка синхронизации повреждена, игнорируем", slog.Any("error", err))
	} else if ok && !lastSync.IsZero() {
		ds.LastSync = &lastSync
	}

	if assigned := c.assigner.EnsureDataset(ds); assigned > 0 {
		c.log.Info("Старым записям выданы id", slog.Int("count", assigned))
		if err := c.saveRecords(ctx, ds); err != nil {
			c.log.Warn("Не удалось сохранить выданные id", slog.Any("error", err))
		}
	}

	return ds, nil
}

// loadRecords разбирает записи по одной: поврежденная запись пропускается,
// остальные загружаются.
func loadRecords[T interface{ Validate() error }](ctx context.Context, c *datasetCodec, key string) ([]T, error) {
	data, ok, err := c.raw.get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	records, skipped := decodeRecords[T](data)
	if skipped > 0 {
		c.log.Warn("Пропущены поврежденные записи", slog.String("key", key), slog.Int("skipped", skipped))
	}
	return records, nil
}

func decodeRecords[T interface{ Validate() error }](data []byte) ([]T, int) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 1
	}
	out := make([]T, 0, len(raw))
	skipped := 0
	for _, item := range raw {
		var rec T
		if err := json.Unmarshal(item, &rec); err != nil {
			skipped++
			continue
		}
		if err := rec.Validate(); err != nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped
}

func (c *datasetCodec) saveAll(ctx context.Context, ds *dataset.Dataset) error {
	errs := []error{c.saveRecords(ctx, ds)}
	errs = append(errs,
		c.setJSON(ctx, KeyCourses, nonNil(ds.Courses)),
		c.setJSON(ctx, KeyPreferences, ds.Preferences),
	)
	if ds.LastSync != nil {
		errs = append(errs, c.setJSON(ctx, KeyLastSync, ds.LastSync.UTC()))
	}
	return errors.Join(errs...)
}

func (c *datasetCodec) saveRecords(ctx context.Context, ds *dataset.Dataset) error {
	return errors.Join(
		setRecords(ctx, c, KeySessions, ds.Sessions),
		setRecords(ctx, c, KeyScores, ds.Scores),
		setRecords(ctx, c, KeyEvents, ds.Events),
	)
}

// saveChunkSize - записей в одном фрагменте JSON-массива
const saveChunkSize = 500

// setRecords сериализует коллекцию фрагментами по saveChunkSize записей.
// Между фрагментами проверяется ctx, значение по-прежнему пишется одной строкой.
func setRecords[T any](ctx context.Context, c *datasetCodec, key string, records []T) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for start := 0; start < len(records); start += saveChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+saveChunkSize, len(records))
		part, err := json.Marshal(records[start:end])
		if err != nil {
			return fmt.Errorf("ошибка сериализации %s: %w", key, err)
		}
		if start > 0 {
			buf.WriteByte(',')
		}
		buf.Write(part[1 : len(part)-1])
	}
	buf.WriteByte(']')

	if err := c.raw.set(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", key, err)
	}
	return nil
}

func (c *datasetCodec) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := c.raw.get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("ошибка разбора %s: %w", key, err)
	}
	return true, nil
}

func (c *datasetCodec) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", key, err)
	}
	if err := c.raw.set(ctx, key, data); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", key, err)
	}
	return nil
}

func (c *datasetCodec) loadPendingDeletes(ctx context.Context) ([]PendingDelete, error) {
	var pending []PendingDelete
	if _, err := c.getJSON(ctx, KeyPendingDeletes, &pending); err != nil {
		c.log.Warn("Очередь удалений повреждена, сбрасываем", slog.Any("error", err))
		return nil, nil
	}
	return pending, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
