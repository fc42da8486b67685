package merge

import (
	"strings"

	"studysync/internal/domain/dataset"
)

// PreferencesResult - итог слияния настроек
type PreferencesResult struct {
	Merged dataset.Preferences
	// Changed - итог отличается от локальной копии
	Changed bool
	// Push - итог нужно отправить на сервер
	Push bool
}

// Preferences заменяет настройки целиком более новой стороной.
// При равных метках побеждает сервер.
func Preferences(local, remote dataset.Preferences) PreferencesResult {
	if len(remote) == 0 {
		return PreferencesResult{Merged: local.Clone(), Push: len(local) > 0}
	}
	if len(local) > 0 && local.UpdatedAt().After(remote.UpdatedAt()) {
		return PreferencesResult{Merged: local.Clone(), Push: true}
	}
	return PreferencesResult{
		Merged:  remote.Clone(),
		Changed: !local.Equal(remote),
	}
}

// CoursesResult - итог слияния списка курсов
type CoursesResult struct {
	Merged  []string
	Changed bool
	Push    bool
}

// Courses объединяет курсы без учета регистра. Сохраняется написание,
// встреченное первым (локальное раньше серверного). Результат отсортирован.
func Courses(local, remote []string) CoursesResult {
	merged := make([]string, 0, len(local)+len(remote))
	for _, c := range local {
		merged, _ = dataset.AddCourse(merged, c)
	}
	fromLocal := len(merged)
	for _, c := range remote {
		merged, _ = dataset.AddCourse(merged, c)
	}
	dataset.SortCourses(merged)

	return CoursesResult{
		Merged:  merged,
		Changed: len(merged) > fromLocal || !sameOrder(local, merged),
		Push:    !sameSet(remote, merged),
	}
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, c := range a {
		set[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	if len(set) != len(b) {
		return false
	}
	for _, c := range b {
		if _, ok := set[strings.ToLower(c)]; !ok {
			return false
		}
	}
	return true
}
