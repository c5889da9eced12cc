package util

import "regexp"

var controlRuns = regexp.MustCompile(`[\x00-\x1F\x7F]+`)

// SanitizeForLog collapses newlines and other control characters into single
// spaces so request-supplied values cannot forge or split log lines.
func SanitizeForLog(s string) string {
	if s == "" {
		return s
	}
	return controlRuns.ReplaceAllString(s, " ")
}
