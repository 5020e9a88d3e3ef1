// Package format holds text helpers for Telegram parse modes.
package format

import "strings"

// Bold renders text as a legacy Markdown bold entity. Legacy Markdown has no
// escapes inside an entity and only "*" can close it, so the entity is split
// around every "*" and the star itself is escaped outside of it.
// Other characters are literal inside the entity.
func Bold(text string) string {
	var b strings.Builder
	for i, part := range strings.Split(text, "*") {
		if i > 0 {
			b.WriteString(`\*`)
		}
		if part == "" {
			continue
		}
		b.WriteString("*")
		b.WriteString(part)
		b.WriteString("*")
	}
	return b.String()
}
