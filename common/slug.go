package common

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases s and collapses each run of other characters into a
// single hyphen. It returns "" when nothing alphanumeric remains.
func Slug(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(nonSlugChars.ReplaceAllString(lower, "-"), "-")
}
