package speech

import (
	"bytes"
	"encoding/xml"

	"github.com/book-expert/chat-tts-service/internal/core"
)

const (
	ssmlOpen       = "<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='"
	voiceOpen      = "'><voice name='Microsoft Server Speech Text to Speech Voice ("
	voiceOpenClose = ")'>"
	ssmlClose      = "</voice></speak>"
)

// BuildSSML renders the synthesis request document for text spoken by sel.
// Message text is untrusted, so it is XML-escaped along with the voice attributes.
func BuildSSML(sel core.VoiceSelection, text string) string {
	var buf bytes.Buffer

	buf.WriteString(ssmlOpen)
	escape(&buf, sel.Language)
	buf.WriteString(voiceOpen)
	escape(&buf, sel.Voice)
	buf.WriteString(voiceOpenClose)
	escape(&buf, text)
	buf.WriteString(ssmlClose)

	return buf.String()
}

func escape(buf *bytes.Buffer, s string) {
	// Writes to a bytes.Buffer cannot fail.
	_ = xml.EscapeText(buf, []byte(s))
}
