package config

import (
	"regexp"
	"strings"
)

var baseURLPattern = regexp.MustCompile(`^https?://[^/\s]+.*$`)

// SanitizeModel strips trailing "#" and "//" comments from a model name the
// way they end up in hand-edited .env files, e.g. "qwen-max # notes".
func SanitizeModel(model string) string {
	out := strings.TrimSpace(model)
	if i := strings.IndexByte(out, '#'); i >= 0 {
		out = strings.TrimSpace(out[:i])
	}
	if i := strings.Index(out, "//"); i >= 0 {
		out = strings.TrimSpace(out[:i])
	}
	return out
}

// Mask returns a display form of a secret. Only the first 6 and last 4
// characters of keys longer than 10 are kept.
func Mask(secret string) string {
	if secret == "" {
		return "<none>"
	}
	r := []rune(strings.TrimSpace(secret))
	if len(r) <= 10 {
		return "***"
	}
	return string(r[:6]) + "***" + string(r[len(r)-4:])
}

// ValidBaseURL reports whether s looks like scheme://host[...]
func ValidBaseURL(s string) bool {
	return baseURLPattern.MatchString(s)
}
