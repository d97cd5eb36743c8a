package language

import (
	"strings"

	"github.com/book-expert/chat-tts-service/internal/core"
)

// Default voice used when the language is unknown or has no table entry.
const (
	DefaultVoice    = "en-US, ZiraRUS"
	DefaultLanguage = "en-US"
)

// VoiceTable maps ISO 639-1 language codes to synthesis voices.
// It is built once at startup and never mutated.
type VoiceTable struct {
	voices map[string]string
}

// NewVoiceTable builds a table from code→voice entries. Each voice entry
// starts with its language tag, e.g. "fr-FR, fr-FR, Julie, Apollo".
func NewVoiceTable(entries map[string]string) *VoiceTable {
	voices := make(map[string]string, len(entries))
	for code, voice := range entries {
		voices[strings.ToLower(code)] = voice
	}

	return &VoiceTable{voices: voices}
}

// DefaultVoiceTable returns the built-in table.
func DefaultVoiceTable() *VoiceTable {
	return NewVoiceTable(map[string]string{
		"it": "it-IT, it-IT, Cosimo, Apollo",
		"de": "de-DE, Hedda",
		"el": "el-GR, Stefanos",
		"es": "es-ES, Pablo, Apollo",
		"fr": "fr-FR, fr-FR, Julie, Apollo",
		"nl": "da-DK, HelleRUS",
		"pt": "pt-PT, HeliaRUS",
		"ru": "ru-RU, ru-RU, Pavel, Apollo",
		"sv": "sv-SE, HedvigRUS",
		"ko": "ko-KR, HeamiRUS",
		"zh": "zh-CN, Kangkang, Apollo",
		"ja": "ja-JP, Ichiro, Apollo",
	})
}

// Default returns the fallback selection.
func Default() core.VoiceSelection {
	return core.VoiceSelection{Language: DefaultLanguage, Voice: DefaultVoice}
}

// Select returns the voice for code, or the default when code is not listed.
func (t *VoiceTable) Select(code string) core.VoiceSelection {
	voice, ok := t.voices[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Default()
	}

	lang, _, _ := strings.Cut(voice, ",")

	return core.VoiceSelection{Language: strings.TrimSpace(lang), Voice: voice}
}
