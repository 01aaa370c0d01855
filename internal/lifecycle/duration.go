package lifecycle

import (
	"regexp"
	"strconv"
	"time"
)

// escalationPattern accepts only whole seconds, minutes, or hours. Config
// validation stays loose; an unmatched string simply never escalates by
// time.
var escalationPattern = regexp.MustCompile(`^(\d+)(s|m|h)$`)

// parseEscalation parses "30s", "10m", "2h". Unmatched strings yield 0.
func parseEscalation(s string) time.Duration {
	m := escalationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second
	case "m":
		return time.Duration(n) * time.Minute
	case "h":
		return time.Duration(n) * time.Hour
	}
	return 0
}
