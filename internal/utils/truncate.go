package utils

import "unicode/utf8"

// TruncateRunes shortens s to at most max runes, appending "..." when
// anything was cut. Counting is rune-based so multi-byte text (emoji,
// accented characters) is never split mid-character.
//
// Example:
//
//	t := utils.TruncateRunes("short", 40)       // "short"
//	t = utils.TruncateRunes("a very long …", 8) // first 8 runes + "..."
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
