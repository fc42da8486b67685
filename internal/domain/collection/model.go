package collection

import (
	"time"
)

// Row - запись коллекции в том виде, в каком она хранится на сервере.
// Payload - JSON записи целиком, UpdatedAt - ее savedAt.
type Row struct {
	ID        string         `json:"id" minLength:"1"`
	Payload   map[string]any `json:"payload"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PreferencesRow - настройки пользователя, заменяются целиком
type PreferencesRow struct {
	Payload   map[string]any `json:"payload"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Snapshot - полный набор данных пользователя на сервере
type Snapshot struct {
	Sessions    []Row           `json:"sessions"`
	Scores      []Row           `json:"scores"`
	Events      []Row           `json:"events"`
	Courses     []string        `json:"courses"`
	Preferences *PreferencesRow `json:"preferences,omitempty"`
}

// Empty сообщает, что у пользователя на сервере ничего нет.
func (s *Snapshot) Empty() bool {
	return len(s.Sessions) == 0 && len(s.Scores) == 0 && len(s.Events) == 0 &&
		len(s.Courses) == 0 && s.Preferences == nil
}
