package client

import (
	"encoding/json"
	"time"

	"studysync/internal/domain/collection"
	"studysync/internal/domain/dataset"
)

type record[T any] interface {
	*T
	RecordMeta() *dataset.Meta
	Validate() error
}

// snapshotToDataset переводит серверный снимок в набор данных.
// Строки, которые не разбираются или не проходят проверку, пропускаются.
func snapshotToDataset(s *collection.Snapshot) (*dataset.Dataset, int) {
	ds := &dataset.Dataset{}
	var skipped, n int

	ds.Sessions, n = rowsToRecords[dataset.Session](s.Sessions)
	skipped += n
	ds.Scores, n = rowsToRecords[dataset.Score](s.Scores)
	skipped += n
	ds.Events, n = rowsToRecords[dataset.Event](s.Events)
	skipped += n

	ds.Courses = append([]string(nil), s.Courses...)
	dataset.SortCourses(ds.Courses)
	if p := s.Preferences; p != nil && p.Payload != nil {
		prefs := dataset.Preferences(p.Payload).Clone()
		if prefs.UpdatedAt().IsZero() && !p.UpdatedAt.IsZero() {
			prefs[dataset.PreferencesUpdatedAtKey] = dataset.FormatTime(p.UpdatedAt)
		}
		ds.Preferences = prefs
	}
	return ds, skipped
}

func rowsToRecords[T any, PT record[T]](rows []collection.Row) ([]T, int) {
	out := make([]T, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, ok := rowToRecord[T, PT](row)
		if !ok {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped
}

func rowToRecord[T any, PT record[T]](row collection.Row) (T, bool) {
	var rec T
	raw, err := json.Marshal(row.Payload)
	if err != nil {
		return rec, false
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, false
	}

	meta := PT(&rec).RecordMeta()
	if meta.ID == "" {
		meta.ID = row.ID
	}
	// время сохранения на сервере главнее, если в payload оно другое
	if !row.UpdatedAt.IsZero() && !dataset.SameInstant(meta.SavedAt, row.UpdatedAt) {
		meta.SavedAt = dataset.FormatTime(row.UpdatedAt)
	}
	if meta.Timestamp == "" {
		meta.Timestamp = meta.SavedAt
	}

	if err := PT(&rec).Validate(); err != nil {
		return rec, false
	}
	return rec, true
}

func recordsToRows[T any, PT record[T]](records []T) []collection.Row {
	rows := make([]collection.Row, 0, len(records))
	for i := range records {
		meta := PT(&records[i]).RecordMeta()
		if meta.ID == "" {
			continue
		}

		raw, err := json.Marshal(records[i])
		if err != nil {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}

		updatedAt := meta.Modified()
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		rows = append(rows, collection.Row{
			ID:        meta.ID,
			Payload:   payload,
			UpdatedAt: updatedAt,
		})
	}
	return rows
}
