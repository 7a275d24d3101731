package textutil

import (
	"strings"
	"unicode"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters and control runes are removed. Leading dots are dropped so the
// result is never hidden or a parent reference.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = fileNameReplacer.Replace(name)
	return strings.TrimSpace(strings.TrimLeft(name, "."))
}

// BaseName returns the last element of a client supplied path, accepting
// both slash styles.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}

// IsSafePathElement reports whether value can be used as one directory name
// without sanitizing: non-empty, no separators, no parent references, and no
// characters SanitizeFileName would change.
func IsSafePathElement(value string) bool {
	if value == "" || value == "." || value == ".." {
		return false
	}
	if len(value) > 255 {
		return false
	}
	return SanitizeFileName(value) == value
}
