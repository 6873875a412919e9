package funcs

import (
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var TemplateFuncs = template.FuncMap{
	"formatTime":  formatTime,
	"titleCase":   titleCase,
	"humanizeTag": humanizeTag,
}

func formatTime(t time.Time) string {
	return t.UTC().Format("02 Jan 2006 at 15:04")
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// humanizeTag turns a snake_case tag like "background_check" into "Background Check"
// for use in email copy.
func humanizeTag(s string) string {
	return titleCase(strings.ReplaceAll(s, "_", " "))
}
