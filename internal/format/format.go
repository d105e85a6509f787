// Package format implements the pure text transforms applied to assistant
// replies. Replies arrive as lightweight markup (bold markers, # headers,
// - bullets) and are converted to display markup for the chat view, or
// stripped down to plain prose for speech synthesis.
//
// Both transforms are single-pass, non-recursive substitutions. Order matters
// for display formatting: bold runs first so its asterisks cannot be mistaken
// for structure later, then headers, then subheaders, then bullets, then
// paragraph breaks. The line rules require a space after the marker, so a
// "## " line never half-matches the "# " rule.
package format

import (
	"regexp"
	"strings"
)

var (
	boldRE      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	headerRE    = regexp.MustCompile(`(?m)^# (.*)$`)
	subheaderRE = regexp.MustCompile(`(?m)^## (.*)$`)
	bulletRE    = regexp.MustCompile(`(?m)^- (.*)$`)
	paraRE      = regexp.MustCompile(`\n\n`)

	tagRE     = regexp.MustCompile(`<[^>]+>`)
	multiNLRE = regexp.MustCompile(`\n+`)
)

// Message converts lightweight reply markup into display markup. The marker
// characters are consumed, not merely styled: the visible output contains no
// structural '#', '**', or leading '-' characters.
//
// Substitution order: bold, headers, subheaders, bullets, paragraph breaks.
func Message(text string) string {
	if text == "" {
		return ""
	}
	out := boldRE.ReplaceAllString(text, "<strong>$1</strong>")
	out = headerRE.ReplaceAllString(out, "<h3>$1</h3>")
	out = subheaderRE.ReplaceAllString(out, "<h4>$1</h4>")
	out = bulletRE.ReplaceAllString(out, "<li>$1</li>")
	out = paraRE.ReplaceAllString(out, "<br/>")
	return out
}

// SpeechText reduces a reply to plain prose for speech synthesis: display
// tags and the original markdown markers are dropped, and newline runs
// collapse to a sentence pause (". "). The collapse is deliberately broad:
// single newlines too, not just paragraph breaks. After the markers are
// stripped, adjacent bullet items and headings are separated only by a single
// newline, and without a pause there they would run together when spoken.
func SpeechText(text string) string {
	if text == "" {
		return ""
	}
	out := tagRE.ReplaceAllString(text, "")
	out = strings.ReplaceAll(out, "**", "")
	out = subheaderRE.ReplaceAllString(out, "$1")
	out = headerRE.ReplaceAllString(out, "$1")
	out = bulletRE.ReplaceAllString(out, "$1")
	out = multiNLRE.ReplaceAllString(out, ". ")
	return strings.TrimSpace(out)
}
