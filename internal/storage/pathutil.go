package storage

import "strings"

// SanitizeSegment turns an arbitrary device id into a single safe path
// segment. Anything outside [A-Za-z0-9._-] becomes '_'.
func SanitizeSegment(id string) string {
	segment := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	if segment == "" || strings.Trim(segment, ".") == "" {
		return "unknown"
	}
	return segment
}
