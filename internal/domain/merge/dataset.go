package merge

import (
	"time"

	"studysync/internal/domain/dataset"
)

// DatasetResult - итог слияния полного набора данных
type DatasetResult struct {
	Dataset     *dataset.Dataset
	Changed     bool
	Sessions    Result[dataset.Session]
	Scores      Result[dataset.Score]
	Events      Result[dataset.Event]
	Preferences PreferencesResult
	Courses     CoursesResult
}

// Dataset сливает все коллекции, курсы и настройки. Метка последней
// синхронизации переносится из локального набора без изменений.
func Dataset(local, remote *dataset.Dataset, lastSyncAt *time.Time) DatasetResult {
	if local == nil {
		local = &dataset.Dataset{}
	}
	if remote == nil {
		remote = &dataset.Dataset{}
	}

	res := DatasetResult{
		Sessions:    Records(local.Sessions, remote.Sessions, lastSyncAt),
		Scores:      Records(local.Scores, remote.Scores, lastSyncAt),
		Events:      Records(local.Events, remote.Events, lastSyncAt),
		Preferences: Preferences(local.Preferences, remote.Preferences),
		Courses:     Courses(local.Courses, remote.Courses),
	}

	res.Dataset = &dataset.Dataset{
		Sessions:    res.Sessions.Merged,
		Scores:      res.Scores.Merged,
		Events:      res.Events.Merged,
		Courses:     res.Courses.Merged,
		Preferences: res.Preferences.Merged,
	}
	if local.LastSync != nil {
		t := *local.LastSync
		res.Dataset.LastSync = &t
	}

	res.Changed = res.Sessions.Changed || res.Scores.Changed || res.Events.Changed ||
		res.Preferences.Changed || res.Courses.Changed
	return res
}

// Stats возвращает сводные счетчики по всем коллекциям.
func (r DatasetResult) Stats() (added, dropped, conflicts, toPush int) {
	added = len(r.Sessions.Added) + len(r.Scores.Added) + len(r.Events.Added)
	dropped = len(r.Sessions.Dropped) + len(r.Scores.Dropped) + len(r.Events.Dropped)
	conflicts = r.Sessions.Conflicts + r.Scores.Conflicts + r.Events.Conflicts
	toPush = len(r.Sessions.ToPush) + len(r.Scores.ToPush) + len(r.Events.ToPush)
	return added, dropped, conflicts, toPush
}
