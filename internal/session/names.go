package session

import (
	"fmt"
	"regexp"
	"strconv"
)

// Session ids have the form <prefix>-<N>. The prefix comes from the project
// config; N is allocated as max(existing)+1 so ids are never reused within
// a live listing even when earlier sessions have been killed.

// idPattern returns the anchored matcher for ids of the given prefix.
// The prefix is quoted so prefixes containing regex metacharacters
// ("app.v2") match literally.
func idPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-(\d+)$`)
}

// MatchesPrefix reports whether id is <prefix>-<N> for the exact prefix.
func MatchesPrefix(id, prefix string) bool {
	return idPattern(prefix).MatchString(id)
}

// Number extracts N from an id of the form <prefix>-<N>.
// Returns -1 when the id does not match the prefix.
func Number(id, prefix string) int {
	m := idPattern(prefix).FindStringSubmatch(id)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

// NextID computes the next session id for a prefix given the ids currently
// live on the host. Ids that do not match the prefix are ignored.
// Given {app-1, app-3} the next id is app-4, not app-2.
func NextID(prefix string, existing []string) string {
	max := 0
	for _, id := range existing {
		if n := Number(id, prefix); n > max {
			max = n
		}
	}
	return FormatID(prefix, max+1)
}

// FormatID builds a session id from prefix and number.
func FormatID(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}
