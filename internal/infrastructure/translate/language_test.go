package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameLanguage(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"en", "en", true},
		{"EN", "en", true},
		{"en-US", "en", true},
		{"pt-BR", "pt-PT", true},
		{"en", "ja", false},
		{"zh", "ja", false},
		{"", "en", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SameLanguage(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestSatisfied(t *testing.T) {
	tests := []struct {
		name   string
		result string
		target string
		want   bool
	}{
		{"japanese kana", "こんにちは", "ja", true},
		{"japanese kanji", "日本", "ja", true},
		{"latin for japanese", "Hello", "ja", false},
		{"korean", "안녕하세요", "ko", true},
		{"cyrillic", "Привет", "ru", true},
		{"latin for russian", "Privet", "ru", false},
		{"arabic", "مرحبا", "ar", true},
		{"greek", "Γειά σου", "el", true},
		{"mixed keeps script", "OK ありがとう", "ja", true},
		{"latin target accepts any", "Bonjour", "fr", true},
		{"unknown target accepts any", "whatever", "xx", true},
		{"empty", "   ", "fr", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Satisfied(tt.result, tt.target))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Japanese", DisplayName("ja"))
	assert.Equal(t, "English", DisplayName("en"))
	assert.Equal(t, "!!", DisplayName("!!"))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "[en→ja] Hello", Placeholder("Hello", "en", "ja"))
}
