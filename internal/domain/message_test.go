package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestChatMessageApply(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	later := created.Add(time.Minute)

	tests := []struct {
		name        string
		start       ChatMessage
		patch       MessagePatch
		wantChanged bool
		wantText    *string
		wantShow    bool
		wantBusy    bool
	}{
		{
			name:        "first translation is stored",
			start:       ChatMessage{IsTranslating: true},
			patch:       MessagePatch{TranslatedText: ptr("hola"), IsTranslating: ptr(false)},
			wantChanged: true,
			wantText:    ptr("hola"),
		},
		{
			name:     "second translation is ignored",
			start:    ChatMessage{TranslatedText: ptr("hola")},
			patch:    MessagePatch{TranslatedText: ptr("bonjour")},
			wantText: ptr("hola"),
		},
		{
			name:        "toggle original",
			start:       ChatMessage{TranslatedText: ptr("hola")},
			patch:       MessagePatch{ShowOriginal: ptr(true)},
			wantChanged: true,
			wantText:    ptr("hola"),
			wantShow:    true,
		},
		{
			name:     "same values are not a change",
			start:    ChatMessage{ShowOriginal: true, IsTranslating: true},
			patch:    MessagePatch{ShowOriginal: ptr(true), IsTranslating: ptr(true)},
			wantShow: true,
			wantBusy: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.start
			msg.UpdatedAt = created

			changed := msg.Apply(tt.patch, later)

			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantText, msg.TranslatedText)
			assert.Equal(t, tt.wantShow, msg.ShowOriginal)
			assert.Equal(t, tt.wantBusy, msg.IsTranslating)
			if changed {
				assert.Equal(t, later, msg.UpdatedAt)
			} else {
				assert.Equal(t, created, msg.UpdatedAt)
			}
		})
	}
}

func TestApplyCopiesTranslatedText(t *testing.T) {
	text := "hola"
	var msg ChatMessage
	msg.Apply(MessagePatch{TranslatedText: &text}, time.Now())

	text = "changed"
	require.NotNil(t, msg.TranslatedText)
	assert.Equal(t, "hola", *msg.TranslatedText)
}

func TestSortMessages(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   []ChatMessage
		want []string
	}{
		{
			name: "by creation time",
			in:   []ChatMessage{{ID: "a", CreatedAt: t0.Add(2 * time.Second)}, {ID: "b", CreatedAt: t0}, {ID: "c", CreatedAt: t0.Add(time.Second)}},
			want: []string{"b", "c", "a"},
		},
		{
			name: "ties broken by id",
			in:   []ChatMessage{{ID: "z", CreatedAt: t0}, {ID: "m", CreatedAt: t0}, {ID: "a", CreatedAt: t0}},
			want: []string{"a", "m", "z"},
		},
		{
			name: "time wins over id",
			in:   []ChatMessage{{ID: "a", CreatedAt: t0.Add(time.Second)}, {ID: "z", CreatedAt: t0}},
			want: []string{"z", "a"},
		},
		{
			name: "equal instants in different zones tie",
			in:   []ChatMessage{{ID: "b", CreatedAt: t0}, {ID: "a", CreatedAt: t0.In(time.FixedZone("X", 3600))}},
			want: []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortMessages(tt.in)
			got := make([]string, 0, len(tt.in))
			for _, m := range tt.in {
				got = append(got, m.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMessageValidate(t *testing.T) {
	assert.ErrorIs(t, NewMessage{Text: "hi", Sender: RoleSpectator}.Validate(), ErrReadOnly)
	assert.Error(t, NewMessage{Text: "   ", Sender: RoleParticipantA}.Validate())
	assert.NoError(t, NewMessage{Text: "line one\nline two", Sender: RoleParticipantB}.Validate())
}
