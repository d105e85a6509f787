package utils

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase normalizes free-text names to title casing ("maria lópez" ->
// "Maria López"). A fresh caser is built per call; cases.Caser is not safe
// for concurrent use.
func TitleCase(s string) string {
	return cases.Title(language.English).String(s)
}
