package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"studysync/internal/domain/dataset"
)

const backupVersion = 1

var ErrInvalidBackup = errors.New("invalid backup file")

// Backup - файл резервной копии. Метка синхронизации в него не входит.
type Backup struct {
	Version     int                 `json:"version"`
	ExportedAt  time.Time           `json:"exportedAt"`
	Sessions    []dataset.Session   `json:"sessions"`
	Scores      []dataset.Score     `json:"scores"`
	Events      []dataset.Event     `json:"events"`
	Courses     []string            `json:"courses"`
	Preferences dataset.Preferences `json:"preferences"`
}

// backupFile - формат чтения: записи разбираются по одной
type backupFile struct {
	Version     int                 `json:"version"`
	Sessions    json.RawMessage     `json:"sessions"`
	Scores      json.RawMessage     `json:"scores"`
	Events      json.RawMessage     `json:"events"`
	Courses     []string            `json:"courses"`
	Preferences dataset.Preferences `json:"preferences"`
}

// ExportData сохраняет все локальные данные в JSON-файл.
func (a *App) ExportData(ctx context.Context, path string) (*Backup, error) {
	a.mu.Lock()
	ds, err := a.storage.LoadAll(ctx)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки данных: %w", err)
	}

	b := &Backup{
		Version:     backupVersion,
		ExportedAt:  a.now().UTC(),
		Sessions:    nonNil(ds.Sessions),
		Scores:      nonNil(ds.Scores),
		Events:      nonNil(ds.Events),
		Courses:     nonNil(ds.Courses),
		Preferences: ds.Preferences,
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации резервной копии: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("ошибка записи резервной копии: %w", err)
	}

	a.log.Info("Данные выгружены", "path", path,
		"sessions", len(b.Sessions), "scores", len(b.Scores), "events", len(b.Events))
	return b, nil
}

// ImportData заменяет локальные данные содержимым резервной копии.
// Метка синхронизации сбрасывается: при следующей синхронизации записи,
// которых нет на сервере, будут отправлены, а не удалены.
func (a *App) ImportData(ctx context.Context, path string) (*dataset.Dataset, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения резервной копии: %w", err)
	}

	ds, skipped, err := decodeBackup(data)
	if err != nil {
		return nil, 0, err
	}
	a.assigner.EnsureDataset(ds)

	a.mu.Lock()
	if err := a.storage.SaveAll(ctx, ds); err != nil {
		a.mu.Unlock()
		return nil, skipped, fmt.Errorf("ошибка сохранения: %w", err)
	}
	if err := a.storage.SetValue(ctx, KeyLastSync, nil); err != nil {
		a.mu.Unlock()
		return nil, skipped, fmt.Errorf("ошибка сброса метки синхронизации: %w", err)
	}
	a.data = ds.Clone()
	a.mu.Unlock()

	a.log.Info("Данные загружены из резервной копии", "path", path, "skipped", skipped)
	a.triggerSync()
	return ds, skipped, nil
}

func decodeBackup(data []byte) (*dataset.Dataset, int, error) {
	var f backupFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if f.Version > backupVersion {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrInvalidBackup, f.Version)
	}

	ds := &dataset.Dataset{Preferences: f.Preferences}
	var skipped, n int
	if len(f.Sessions) > 0 {
		ds.Sessions, n = decodeRecords[dataset.Session](f.Sessions)
		skipped += n
	}
	if len(f.Scores) > 0 {
		ds.Scores, n = decodeRecords[dataset.Score](f.Scores)
		skipped += n
	}
	if len(f.Events) > 0 {
		ds.Events, n = decodeRecords[dataset.Event](f.Events)
		skipped += n
	}
	for i := range ds.Events {
		ds.Events[i].Priority = ds.Events[i].Priority.OrDefault()
	}

	for _, c := range f.Courses {
		ds.Courses, _ = dataset.AddCourse(ds.Courses, c)
	}
	dataset.SortCourses(ds.Courses)
	return ds, skipped, nil
}
