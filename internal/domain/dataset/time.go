package dataset

import (
	"strings"
	"time"
)

const (
	// DateLayout - формат даты события
	DateLayout = "2006-01-02"
	// TimeLayout - ISO-8601 с миллисекундами в UTC
	TimeLayout = "2006-01-02T15:04:05.000Z"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	DateLayout,
}

// ParseTime разбирает ISO-8601 метку. ok=false для пустой или неразборчивой строки.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatTime форматирует момент в TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// SameInstant сообщает, что две метки обозначают один и тот же момент.
func SameInstant(a string, b time.Time) bool {
	t, ok := ParseTime(a)
	return ok && t.Equal(b)
}
