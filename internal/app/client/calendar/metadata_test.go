package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"studysync/internal/domain/dataset"
)

func TestDescriptionMetadata(t *testing.T) {
	tests := []struct {
		name     string
		desc     string
		wantText string
		wantMeta Metadata
		wantOK   bool
	}{
		{
			name:     "foreign event",
			desc:     "Room 204",
			wantText: "Room 204",
			wantMeta: Metadata{Priority: dataset.PriorityMedium},
		},
		{
			name:     "marker only",
			desc:     "[studysync] priority=high id=abc",
			wantMeta: Metadata{LocalID: "abc", Priority: dataset.PriorityHigh},
			wantOK:   true,
		},
		{
			name:     "text and marker",
			desc:     "Room 204\nbring pencils\n\n[studysync] priority=low done=true id=x1",
			wantText: "Room 204\nbring pencils",
			wantMeta: Metadata{LocalID: "x1", Priority: dataset.PriorityLow, Done: true},
			wantOK:   true,
		},
		{
			name:     "unknown priority falls back",
			desc:     "[studysync] priority=urgent junk",
			wantMeta: Metadata{Priority: dataset.PriorityMedium},
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, meta, ok := DecodeDescription(tt.desc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantMeta, meta)
		})
	}
}

func TestEncodeDescriptionRoundTrip(t *testing.T) {
	m := Metadata{LocalID: "e1", Priority: dataset.PriorityHigh, Done: true}

	desc := EncodeDescription("notes  \n", m)
	assert.Equal(t, "notes\n\n[studysync] priority=high done=true id=e1", desc)

	// повторное кодирование не накапливает служебные строки
	text, _, _ := DecodeDescription(desc)
	again := EncodeDescription(text, m)
	assert.Equal(t, desc, again)
}
