package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple title", "Fire Detector", "fire-detector"},
		{"trims whitespace", "  Fire Detector  ", "fire-detector"},
		{"lowercases", "FIRE", "fire"},
		{"cyrillic transliteration", "Пожарный извещатель", "pozharnyy-izveschatel"},
		{"mixed scripts", "Датчик CO2", "datchik-co2"},
		{"soft and hard signs dropped", "объём", "obem"},
		{"quotes stripped", `Модуль "Альфа"`, "modul-alfa"},
		{"guillemets stripped", "«Тест»", "test"},
		{"punctuation collapses to single hyphen", "a -- b!! c", "a-b-c"},
		{"leading and trailing hyphens trimmed", "---abc---", "abc"},
		{"digits preserved", "Version 2.0", "version-2-0"},
		{"empty input", "", ""},
		{"punctuation only", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Make(tt.input))
		})
	}
}

func TestMakeTruncates(t *testing.T) {
	long := strings.Repeat("abcde ", 30)
	got := Make(long)
	assert.LessOrEqual(t, len(got), MaxLength)
	assert.NotEmpty(t, got)
}

func TestMakeDeterministic(t *testing.T) {
	assert.Equal(t, Make("Жёлтый дом"), Make("Жёлтый дом"))
}

func TestRandom(t *testing.T) {
	a := Random()
	b := Random()
	assert.Len(t, a, 8)
	assert.Len(t, b, 8)
	assert.NotEqual(t, a, b)
}
