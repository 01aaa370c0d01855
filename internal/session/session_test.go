package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"working", StatusWorking},
		{"mergeable", StatusMergeable},
		{"starting", StatusWorking}, // legacy alias
		{"", StatusSpawning},
		{"banana", StatusSpawning},
		{"killed", StatusKilled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseStatus(tt.raw), "raw=%q", tt.raw)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusMerged.IsTerminal())
	assert.True(t, StatusKilled.IsTerminal())

	// done/terminated/cleanup are display-only; the loop keeps polling them.
	assert.False(t, StatusDone.IsTerminal())
	assert.False(t, StatusTerminated.IsTerminal())
	assert.False(t, StatusCleanup.IsTerminal())
	assert.False(t, StatusWorking.IsTerminal())
}

func TestNextID(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		existing []string
		want     string
	}{
		{"empty", "app", nil, "app-1"},
		{"sequential", "app", []string{"app-1", "app-2"}, "app-3"},
		{"gaps never reused", "app", []string{"app-1", "app-3"}, "app-4"},
		{"other prefixes ignored", "app", []string{"web-9", "app-2"}, "app-3"},
		{"dotted prefix is literal", "app.v2", []string{"app.v2-5", "appxv2-9"}, "app.v2-6"},
		{"non-numeric suffix ignored", "app", []string{"app-x", "app-2"}, "app-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextID(tt.prefix, tt.existing))
		})
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, 7, Number("app-7", "app"))
	assert.Equal(t, -1, Number("app-7", "web"))
	assert.Equal(t, -1, Number("app", "app"))
}

func TestParsePRURL(t *testing.T) {
	t.Run("github", func(t *testing.T) {
		pr := ParsePRURL("https://github.com/acme/widgets/pull/123")
		assert.Equal(t, 123, pr.Number)
		assert.Equal(t, "acme", pr.Owner)
		assert.Equal(t, "widgets", pr.Repo)
	})
	t.Run("trailing number fallback", func(t *testing.T) {
		pr := ParsePRURL("https://git.example.com/acme/widgets/merge_requests/45")
		assert.Equal(t, 45, pr.Number)
		assert.Empty(t, pr.Owner)
	})
	t.Run("trailing slash", func(t *testing.T) {
		pr := ParsePRURL("https://github.com/acme/widgets/pull/9/")
		assert.Equal(t, 9, pr.Number)
	})
	t.Run("no number", func(t *testing.T) {
		assert.Nil(t, ParsePRURL("https://example.com/not-a-pr"))
		assert.Nil(t, ParsePRURL(""))
	})
}
