package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
)

type Servicer interface {
	Fetch(ctx context.Context, userID int) (*Snapshot, error)
	Upsert(ctx context.Context, userID int, c dataset.Collection, rows []Row) (UpsertResponse, error)
	Delete(ctx context.Context, userID int, c dataset.Collection, id string) error
	SavePreferences(ctx context.Context, userID int, prefs PreferencesRow) (bool, error)
	AddCourses(ctx context.Context, userID int, courses []string) ([]string, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "collection_service"),
		now:  time.Now,
	}
}

// Fetch возвращает все данные пользователя. ErrNotFound - на сервере пусто.
func (s *Service) Fetch(ctx context.Context, userID int) (*Snapshot, error) {
	snap := &Snapshot{}
	for _, c := range dataset.Collections() {
		rows, err := s.repo.ListRows(ctx, userID, c)
		if err != nil {
			s.log.Error("failed to list rows", "user_id", userID, "collection", c, "error", err)
			return nil, fmt.Errorf("list %s: %w", c, err)
		}
		switch c {
		case dataset.CollectionSessions:
			snap.Sessions = rows
		case dataset.CollectionScores:
			snap.Scores = rows
		case dataset.CollectionEvents:
			snap.Events = rows
		}
	}

	courses, err := s.repo.ListCourses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	snap.Courses = courses

	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	snap.Preferences = prefs

	if snap.Empty() {
		return nil, ErrNotFound
	}
	return snap, nil
}

// Upsert пишет строки по одной. Строки старее сохраненных отбрасываются
// (считаются Stale), невалидные попадают в Failed.
func (s *Service) Upsert(ctx context.Context, userID int, c dataset.Collection, rows []Row) (UpsertResponse, error) {
	if err := c.Validate(); err != nil {
		return UpsertResponse{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	resp := UpsertResponse{}
	for _, row := range rows {
		normalized, err := s.normalizeRow(c, row)
		if err != nil {
			resp.Failed = append(resp.Failed, FailedRow{ID: row.ID, Error: err.Error()})
			continue
		}

		applied, err := s.repo.UpsertRow(ctx, userID, c, normalized)
		if err != nil {
			s.log.Error("failed to upsert row", "user_id", userID, "collection", c, "id", row.ID, "error", err)
			resp.Failed = append(resp.Failed, FailedRow{ID: row.ID, Error: "storage error"})
			continue
		}
		if !applied {
			resp.Stale++
			continue
		}
		resp.Processed++
	}

	s.log.Info("rows upserted",
		"user_id", userID,
		"collection", c,
		"processed", resp.Processed,
		"stale", resp.Stale,
		"failed", len(resp.Failed),
	)
	return resp, nil
}

func (s *Service) Delete(ctx context.Context, userID int, c dataset.Collection, id string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	deleted, err := s.repo.DeleteRow(ctx, userID, c, id)
	if err != nil {
		s.log.Error("failed to delete row", "user_id", userID, "collection", c, "id", id, "error", err)
		return fmt.Errorf("delete row: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	s.log.Info("row deleted", "user_id", userID, "collection", c, "id", id)
	return nil
}

// SavePreferences заменяет настройки, если присланные не старее сохраненных.
func (s *Service) SavePreferences(ctx context.Context, userID int, prefs PreferencesRow) (bool, error) {
	if prefs.Payload == nil {
		return false, fmt.Errorf("%w: empty preferences", ErrInvalidData)
	}
	if prefs.UpdatedAt.IsZero() {
		prefs.UpdatedAt = dataset.Preferences(prefs.Payload).UpdatedAt()
	}
	if prefs.UpdatedAt.IsZero() {
		prefs.UpdatedAt = s.now().UTC()
	}

	applied, err := s.repo.UpsertPreferences(ctx, userID, prefs)
	if err != nil {
		return false, fmt.Errorf("save preferences: %w", err)
	}
	return applied, nil
}

// AddCourses дополняет список курсов. Курсы никогда не удаляются.
func (s *Service) AddCourses(ctx context.Context, userID int, courses []string) ([]string, error) {
	var clean []string
	for _, c := range courses {
		clean, _ = dataset.AddCourse(clean, c)
	}
	if len(clean) > 0 {
		if err := s.repo.AddCourses(ctx, userID, clean); err != nil {
			return nil, fmt.Errorf("add courses: %w", err)
		}
	}
	all, err := s.repo.ListCourses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return all, nil
}

// normalizeRow проверяет payload по типу коллекции и выравнивает id и updated_at.
func (s *Service) normalizeRow(c dataset.Collection, row Row) (Row, error) {
	row.ID = strings.TrimSpace(row.ID)
	if row.ID == "" {
		return row, fmt.Errorf("%w: id is required", ErrInvalidData)
	}
	if row.Payload == nil {
		return row, fmt.Errorf("%w: payload is required", ErrInvalidData)
	}
	row.Payload["id"] = row.ID

	meta, err := validatePayload(c, row.Payload)
	if err != nil {
		return row, err
	}

	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = meta.Modified()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = s.now().UTC()
	}
	return row, nil
}

func validatePayload(c dataset.Collection, payload map[string]any) (dataset.Meta, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return dataset.Meta{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	var (
		rec  interface{ Validate() error }
		meta *dataset.Meta
	)
	switch c {
	case dataset.CollectionSessions:
		var v dataset.Session
		rec, meta = &v, &v.Meta
	case dataset.CollectionScores:
		var v dataset.Score
		rec, meta = &v, &v.Meta
	case dataset.CollectionEvents:
		var v dataset.Event
		rec, meta = &v, &v.Meta
	default:
		return dataset.Meta{}, dataset.ErrUnknownCollection
	}

	if err := json.Unmarshal(data, rec); err != nil {
		return dataset.Meta{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if err := rec.Validate(); err != nil {
		if errors.Is(err, dataset.ErrInvalidRecord) {
			return dataset.Meta{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return dataset.Meta{}, err
	}
	return *meta, nil
}
