package calendar

import (
	"strings"

	"studysync/internal/domain/dataset"
)

// markerPrefix начинает служебную строку в конце описания события.
// Во внешнем календаре нет полей для приоритета и выполнения, поэтому
// они хранятся в этой строке.
const markerPrefix = "[studysync]"

// Metadata - поля события, которых нет у внешнего календаря
type Metadata struct {
	LocalID  string
	Priority dataset.Priority
	Done     bool
}

// EncodeDescription дописывает служебную строку к тексту описания.
func EncodeDescription(text string, m Metadata) string {
	var b strings.Builder
	b.WriteString(markerPrefix)
	b.WriteString(" priority=")
	b.WriteString(string(m.Priority.OrDefault()))
	if m.Done {
		b.WriteString(" done=true")
	}
	if m.LocalID != "" {
		b.WriteString(" id=")
		b.WriteString(m.LocalID)
	}

	text = strings.TrimRight(text, "\n ")
	if text == "" {
		return b.String()
	}
	return text + "\n\n" + b.String()
}

// DecodeDescription отделяет служебную строку от текста.
// ok=false, если строки нет: событие создано не нами.
func DecodeDescription(desc string) (string, Metadata, bool) {
	m := Metadata{Priority: dataset.PriorityMedium}

	idx := strings.LastIndex(desc, markerPrefix)
	if idx < 0 {
		return desc, m, false
	}
	line := desc[idx+len(markerPrefix):]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}

	for _, field := range strings.Fields(line) {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		switch key {
		case "priority":
			m.Priority = dataset.Priority(value).OrDefault()
		case "done":
			m.Done = value == "true"
		case "id":
			m.LocalID = value
		}
	}
	return strings.TrimRight(desc[:idx], "\n "), m, true
}
