package fingerprint

import (
	"strings"
	"unicode"
)

// Line classes forming the structural alphabet. The profile is the
// concatenation of one class byte per non-blank line, so inserting a heading
// or turning prose into a list changes the structural hash even when the
// wording is untouched.
const (
	classHeading       = 'H'
	classNumberedList  = 'N'
	classBulletList    = 'B'
	classLongParagraph = 'P'
	classShortLine     = 'S'
)

// longLineThreshold separates paragraph-length lines from short ones,
// measured in runes after trimming.
const longLineThreshold = 80

// StructuralProfile classifies each non-blank line of content and returns
// the class sequence as a compact string. Blank lines do not contribute.
func StructuralProfile(content string) string {
	var b strings.Builder

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		b.WriteByte(classifyLine(trimmed))
	}

	return b.String()
}

// classifyLine assigns a single structural class to a trimmed, non-empty line.
func classifyLine(trimmed string) byte {
	if strings.HasPrefix(trimmed, "#") {
		return classHeading
	}
	if isNumberedItem(trimmed) {
		return classNumberedList
	}
	if isBulletItem(trimmed) {
		return classBulletList
	}
	if len([]rune(trimmed)) >= longLineThreshold {
		return classLongParagraph
	}
	return classShortLine
}

// isNumberedItem reports whether the line starts with digits followed by a
// '.' or ')' marker, e.g. "1. first" or "12) twelfth".
func isNumberedItem(trimmed string) bool {
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(trimmed) {
		return false
	}
	return trimmed[i] == '.' || trimmed[i] == ')'
}

// isBulletItem reports whether the line starts with a bullet marker followed
// by whitespace.
func isBulletItem(trimmed string) bool {
	r := []rune(trimmed)
	if len(r) < 2 {
		return false
	}
	switch r[0] {
	case '-', '*', '+', '•':
		return unicode.IsSpace(r[1])
	}
	return false
}
