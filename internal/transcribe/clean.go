package transcribe

import (
	"regexp"
	"strings"
)

// controlMarker matches the non-speech tokens whisper emits inline, such as
// [BLANK_AUDIO], [_BEG_], (music) or (speaking in foreign language).
var controlMarker = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

// CleanText strips bracketed control markers and normalizes whitespace.
// This is a contract of the engine's output, not a caller concern: no text
// is stored or published without passing through here.
func CleanText(raw string) string {
	stripped := controlMarker.ReplaceAllString(raw, " ")
	return strings.Join(strings.Fields(stripped), " ")
}
