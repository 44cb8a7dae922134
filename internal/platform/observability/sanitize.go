package observability

import (
	"strings"
	"unicode"
)

const (
	routeLimit  = 180
	methodLimit = 10
	headerLimit = 256
)

// clip drops control runes, including line breaks, and truncates to limit runes so request
// data cannot forge extra log lines.
func clip(value string, limit int) string {
	var b strings.Builder
	b.Grow(min(len(value), limit))
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute returns a loggable route pattern or path. Empty input becomes "/".
func SanitizeRoute(route string) string {
	if route = clip(route, routeLimit); route == "" {
		return "/"
	}
	return route
}

func SanitizeMethod(method string) string {
	return strings.ToUpper(clip(method, methodLimit))
}
