package session

import (
	"regexp"
	"strconv"
)

var (
	githubPRPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)
	trailingNumber  = regexp.MustCompile(`/(\d+)/?$`)
)

// ParsePRURL reconstructs a PRInfo from a stored PR URL.
//
// GitHub pull URLs yield owner/repo/number; anything else falls back to the
// trailing path segment when it is numeric. Returns nil when no PR number
// can be extracted.
func ParsePRURL(url string) *PRInfo {
	if url == "" {
		return nil
	}

	if m := githubPRPattern.FindStringSubmatch(url); m != nil {
		n, _ := strconv.Atoi(m[3])
		return &PRInfo{Number: n, URL: url, Owner: m[1], Repo: m[2]}
	}

	if m := trailingNumber.FindStringSubmatch(url); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &PRInfo{Number: n, URL: url}
	}

	return nil
}
