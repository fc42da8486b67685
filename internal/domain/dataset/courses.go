package dataset

import (
	"sort"
	"strings"
)

// AddCourse добавляет курс без учета регистра. Возвращает false, если курс уже есть.
func AddCourse(courses []string, name string) ([]string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return courses, false
	}
	for _, c := range courses {
		if strings.EqualFold(c, name) {
			return courses, false
		}
	}
	return append(courses, name), true
}

// SortCourses сортирует курсы без учета регистра.
func SortCourses(courses []string) {
	sort.SliceStable(courses, func(i, j int) bool {
		return strings.ToLower(courses[i]) < strings.ToLower(courses[j])
	})
}
