package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Meta - общие поля всех записей коллекций
type Meta struct {
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	SavedAt   string `json:"savedAt,omitempty"`
}

// Key возвращает ключ сопоставления записи: id, а для старых записей без id - метку создания.
func (m Meta) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return "ts:" + m.Timestamp
}

// LegacyKey непустой только у записей без id.
func (m Meta) LegacyKey() string {
	if m.ID != "" {
		return ""
	}
	return m.Timestamp
}

// Modified возвращает момент последнего изменения (savedAt, иначе timestamp).
func (m Meta) Modified() time.Time {
	if t, ok := ParseTime(m.SavedAt); ok {
		return t
	}
	t, _ := ParseTime(m.Timestamp)
	return t
}

// Created возвращает момент создания записи. ok=false, если timestamp не разбирается.
func (m Meta) Created() (time.Time, bool) {
	return ParseTime(m.Timestamp)
}

// RecordMeta дает доступ к общим полям записи через указатель.
func (m *Meta) RecordMeta() *Meta {
	return m
}

// Touch проставляет savedAt (и timestamp для новой записи).
func (m *Meta) Touch(now time.Time) {
	if m.Timestamp == "" {
		m.Timestamp = FormatTime(now)
	}
	m.SavedAt = FormatTime(now)
}

func (m Meta) validate() error {
	if m.ID == "" && m.Timestamp == "" {
		return fmt.Errorf("%w: id or timestamp is required", ErrInvalidRecord)
	}
	return nil
}

// Session - учебная сессия
type Session struct {
	Meta
	Course  string `json:"course"`
	Seconds int    `json:"seconds"`
	Notes   string `json:"notes,omitempty"`
}

func (s Session) Validate() error {
	if err := s.Meta.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Course) == "" {
		return fmt.Errorf("%w: course is required", ErrInvalidRecord)
	}
	if s.Seconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidRecord)
	}
	return nil
}

// Score - результат теста по курсу
type Score struct {
	Meta
	Course string `json:"course"`
	Score  int    `json:"score"`
	Notes  string `json:"notes,omitempty"`
}

func (s Score) Validate() error {
	if err := s.Meta.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Course) == "" {
		return fmt.Errorf("%w: course is required", ErrInvalidRecord)
	}
	if s.Score < 0 || s.Score > 100 {
		return fmt.Errorf("%w: score must be within 0..100", ErrInvalidRecord)
	}
	return nil
}

// Event - запланированное событие (экзамен, дедлайн)
type Event struct {
	Meta
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Priority   Priority `json:"priority"`
	IsDone     bool     `json:"isDone"`
	ExternalID string   `json:"externalId,omitempty"`
}

func (e Event) Validate() error {
	if err := e.Meta.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("%w: bad date %q", ErrInvalidRecord, e.Date)
	}
	if e.Priority != "" {
		if err := e.Priority.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	return nil
}

// Priority - приоритет события
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return nil
	}
	return fmt.Errorf("unknown priority: %s", p)
}

// OrDefault возвращает medium для пустого или неизвестного приоритета.
func (p Priority) OrDefault() Priority {
	if p.Validate() != nil {
		return PriorityMedium
	}
	return p
}

// Dataset - полный набор пользовательских данных
type Dataset struct {
	Sessions    []Session   `json:"sessions"`
	Scores      []Score     `json:"scores"`
	Events      []Event     `json:"events"`
	Courses     []string    `json:"courses"`
	Preferences Preferences `json:"preferences"`
	LastSync    *time.Time  `json:"-"`
}

// Clone возвращает глубокую копию набора.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return &Dataset{}
	}
	out := &Dataset{
		Sessions:    append([]Session(nil), d.Sessions...),
		Scores:      append([]Score(nil), d.Scores...),
		Events:      append([]Event(nil), d.Events...),
		Courses:     append([]string(nil), d.Courses...),
		Preferences: d.Preferences.Clone(),
	}
	if d.LastSync != nil {
		t := *d.LastSync
		out.LastSync = &t
	}
	return out
}

// Empty сообщает, что в наборе нет ни одной записи и настроек.
func (d *Dataset) Empty() bool {
	return len(d.Sessions) == 0 && len(d.Scores) == 0 && len(d.Events) == 0 &&
		len(d.Courses) == 0 && len(d.Preferences) == 0
}
