package mysql

import (
	"regexp"
	"strings"
)

var (
	unsafeIdentChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
	letterInitial    = regexp.MustCompile(`^[A-Za-z]`)
)

// SanitizeIdentifier rewrites an arbitrary table or column name into a
// diagram-safe identifier. Every character outside [A-Za-z0-9_] becomes
// an underscore; results that are empty or do not start with a letter
// get the caller's prefix. Collisions between distinct inputs are
// possible and accepted.
func SanitizeIdentifier(name, prefix string) string {
	s := strings.TrimSpace(name)
	s = unsafeIdentChars.ReplaceAllString(s, "_")
	if s == "" || !letterInitial.MatchString(s) {
		return prefix + "_" + s
	}
	return s
}

// NormalizeType maps a MySQL data type to one of the coarse diagram
// types int, float, bool, datetime or string. The first matching rule
// wins, so tinyint(1) normalizes to int rather than bool.
func NormalizeType(dataType string) string {
	t := strings.ToLower(dataType)
	switch {
	case strings.Contains(t, "int"):
		return "int"
	case containsAny(t, "decimal", "numeric", "float", "double", "real"):
		return "float"
	case containsAny(t, "bool", "tinyint(1)"):
		return "bool"
	case containsAny(t, "date", "time", "year", "timestamp"):
		return "datetime"
	default:
		return "string"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
