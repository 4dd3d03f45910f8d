// Package normalize holds the pure coercion helpers shared by the parsing and
// sync layers: dates, booleans, subjects and filenames.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// truthyTokens coerce to true; anything else (including empty) is false.
var truthyTokens = map[string]bool{
	"verdadero": true,
	"true":      true,
	"si":        true,
	"sí":        true,
	"1":         true,
	"x":         true,
}

// CoerceBool maps textual tokens to booleans. Never reports absence.
func CoerceBool(value string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(value))]
}

// CoerceDate normalizes a textual date to ISO YYYY-MM-DD. Accepted inputs are
// the ISO form itself and D/M/YYYY interpreted day-first ("3/7/2025" is the
// 3rd of July). Empty or unparseable input yields the empty string.
func CoerceDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.Format("2006-01-02")
	}

	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return ""
	}
	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return ""
	}
	if month < 1 || month > 12 || day < 1 || year < 1 {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject rollovers like 31/2/2025.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return ""
	}
	return t.Format("2006-01-02")
}

// MatchSubject reports whether the subject starts with the configured pattern
// (exact, case-sensitive) and returns the trailing content after it.
func MatchSubject(subject, pattern string) (rest string, ok bool) {
	if pattern == "" || !strings.HasPrefix(subject, pattern) {
		return "", false
	}
	return subject[len(pattern):], true
}

const maxFilenameRunes = 100

// SanitizeFilename makes a name safe for the object store: the characters
// <>:"/\|?* become underscores, whitespace runs collapse to a single
// underscore, and the result is truncated to 100 code points with the last
// extension preserved. Idempotent.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	inSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte('_')
			inSpace = false
		}
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	if inSpace {
		b.WriteByte('_')
	}

	sanitized := b.String()
	if len([]rune(sanitized)) <= maxFilenameRunes {
		return sanitized
	}

	stem, ext := splitExt(sanitized)
	extRunes := []rune(ext)
	keep := maxFilenameRunes - len(extRunes)
	if keep < 1 {
		// Pathological extension longer than the budget; hard-cut the whole name.
		return string([]rune(sanitized)[:maxFilenameRunes])
	}
	stemRunes := []rune(stem)
	if len(stemRunes) > keep {
		stemRunes = stemRunes[:keep]
	}
	return string(stemRunes) + ext
}

// UniqueName resolves collisions by appending a millisecond timestamp before
// the extension, falling back to incrementing counters while exists keeps
// reporting the candidate as taken.
func UniqueName(name string, exists func(string) bool) string {
	if !exists(name) {
		return name
	}

	stem, ext := splitExt(name)
	ts := time.Now().UnixMilli()
	candidate := fmt.Sprintf("%s_%d%s", stem, ts, ext)
	for counter := 1; exists(candidate); counter++ {
		candidate = fmt.Sprintf("%s_%d_%d%s", stem, ts, counter, ext)
	}
	return candidate
}

func splitExt(name string) (stem, ext string) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 { // no dot, or a leading-dot name like ".env"
		return name, ""
	}
	return name[:idx], name[idx:]
}
