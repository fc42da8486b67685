package dataset

import (
	"encoding/json"
	"reflect"
	"time"
)

// PreferencesUpdatedAtKey - ключ метки изменения настроек
const PreferencesUpdatedAtKey = "updatedAt"

// Preferences - произвольные пользовательские настройки. Заменяются целиком.
type Preferences map[string]any

// UpdatedAt возвращает метку изменения или нулевое время.
func (p Preferences) UpdatedAt() time.Time {
	switch v := p[PreferencesUpdatedAtKey].(type) {
	case string:
		t, _ := ParseTime(v)
		return t
	case time.Time:
		return v.UTC()
	}
	return time.Time{}
}

// Set меняет значение и обновляет метку изменения.
func (p Preferences) Set(key string, value any, now time.Time) {
	p[key] = value
	p[PreferencesUpdatedAtKey] = FormatTime(now)
}

func (p Preferences) Clone() Preferences {
	if p == nil {
		return nil
	}
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Equal сравнивает настройки по JSON-представлению.
func (p Preferences) Equal(other Preferences) bool {
	if len(p) == 0 && len(other) == 0 {
		return true
	}
	a, errA := json.Marshal(p)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(p, other)
	}
	return string(a) == string(b)
}
