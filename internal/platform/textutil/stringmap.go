package textutil

import (
	"net/url"
	"strings"
)

// FlattenQuery turns provider callback parameters into a single-valued map. The first value
// wins for repeated keys, keys are trimmed and empty keys dropped. Values are kept verbatim
// because they take part in signature checks.
func FlattenQuery(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for key, vals := range values {
		key = strings.TrimSpace(key)
		if key == "" || len(vals) == 0 {
			continue
		}
		if _, seen := out[key]; !seen {
			out[key] = vals[0]
		}
	}
	return out
}

// FirstNonEmpty returns the first argument that is not blank after trimming.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
