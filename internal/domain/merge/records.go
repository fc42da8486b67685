// Package merge сводит локальный и удаленный наборы данных без блокировок.
// Все функции чистые: входные срезы не изменяются.
package merge

import (
	"time"

	"studysync/internal/domain/dataset"
)

// Keyed - запись коллекции, пригодная для слияния
type Keyed interface {
	comparable
	Key() string
	LegacyKey() string
	Modified() time.Time
	Created() (time.Time, bool)
}

// Result - итог слияния одной коллекции
type Result[T Keyed] struct {
	Merged []T
	// Changed - локальное и удаленное состояния расходились
	Changed bool
	// ToPush - записи, которых на сервере нет или там они старее
	ToPush []T
	// Added - записи, пришедшие только с сервера
	Added []T
	// Dropped - локальные записи, удаленные на другом устройстве
	Dropped []T
	// Conflicts - пары с одним ключом и разным содержимым
	Conflicts int
}

// Records сливает коллекцию по правилу last-write-wins.
//
// Для пары с одним ключом побеждает запись со строго более поздним savedAt,
// при равенстве побеждает серверная. Локальная запись без пары удаляется,
// если она создана раньше lastSyncAt (значит, ее удалили на другом устройстве),
// иначе остается и уходит на сервер. Порядок результата: локальные записи в
// исходном порядке, затем добавленные с сервера.
func Records[T Keyed](local, remote []T, lastSyncAt *time.Time) Result[T] {
	res := Result[T]{Merged: make([]T, 0, len(local)+len(remote))}

	byKey := make(map[string]int, len(remote))
	byLegacy := make(map[string]int)
	for i, r := range remote {
		if _, ok := byKey[r.Key()]; !ok {
			byKey[r.Key()] = i
		}
		if lk := legacyKey(r.LegacyKey()); lk != "" {
			if _, ok := byLegacy[lk]; !ok {
				byLegacy[lk] = i
			}
		}
	}

	matched := make([]bool, len(remote))
	seen := make(map[string]struct{}, len(local))

	for _, l := range local {
		if _, dup := seen[l.Key()]; dup {
			res.Changed = true
			continue
		}
		seen[l.Key()] = struct{}{}

		i, ok := lookup(l, byKey, byLegacy, matched)
		if ok {
			matched[i] = true
			r := remote[i]
			if l == r {
				res.Merged = append(res.Merged, l)
				continue
			}
			res.Changed = true
			res.Conflicts++
			if l.Modified().After(r.Modified()) {
				res.Merged = append(res.Merged, l)
				res.ToPush = append(res.ToPush, l)
			} else {
				res.Merged = append(res.Merged, r)
			}
			continue
		}

		if lastSyncAt != nil && createdBefore(l, *lastSyncAt) {
			res.Dropped = append(res.Dropped, l)
			res.Changed = true
			continue
		}
		res.Merged = append(res.Merged, l)
		res.ToPush = append(res.ToPush, l)
	}

	for i, r := range remote {
		if matched[i] {
			continue
		}
		if _, dup := seen[r.Key()]; dup {
			continue
		}
		seen[r.Key()] = struct{}{}
		res.Merged = append(res.Merged, r)
		res.Added = append(res.Added, r)
		res.Changed = true
	}

	return res
}

func lookup[T Keyed](l T, byKey, byLegacy map[string]int, matched []bool) (int, bool) {
	if i, ok := byKey[l.Key()]; ok && !matched[i] {
		return i, true
	}
	// Запись получила id локально, а на сервере лежит ее старая копия без id.
	created, ok := l.Created()
	if !ok {
		return 0, false
	}
	if i, ok := byLegacy[dataset.FormatTime(created)]; ok && !matched[i] {
		return i, true
	}
	return 0, false
}

func legacyKey(timestamp string) string {
	if timestamp == "" {
		return ""
	}
	if t, ok := dataset.ParseTime(timestamp); ok {
		return dataset.FormatTime(t)
	}
	return ""
}

// Записи с неразборчивым timestamp никогда не считаются удаленными.
func createdBefore[T Keyed](l T, lastSyncAt time.Time) bool {
	created, ok := l.Created()
	if !ok {
		return false
	}
	return created.Before(lastSyncAt)
}
