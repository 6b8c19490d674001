package topic

import "strings"

// Match reports whether a dot-separated topic name falls under a
// subscription pattern. Endpoint routing and the in-process subscriber bus
// share these semantics.
//
// A "*" segment in the middle of a pattern stands in for exactly one name
// segment. A trailing "*" covers the whole remaining subtree, so
// "payment.*" receives both "payment.captured" and
// "payment.intent.created". The bare pattern "*" receives every topic.
func Match(pattern, name string) bool {
	if pattern == "*" || pattern == name {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	nameParts := strings.Split(name, ".")

	for i, pp := range patternParts {
		if pp == "*" && i == len(patternParts)-1 {
			// Trailing wildcard: at least one segment must remain.
			return len(nameParts) > i
		}
		if i >= len(nameParts) {
			return false
		}
		if pp != "*" && pp != nameParts[i] {
			return false
		}
	}

	return len(patternParts) == len(nameParts)
}
