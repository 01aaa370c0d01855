package github

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentops/overseer/internal/config"
	"github.com/agentops/overseer/internal/plugin"
	"github.com/agentops/overseer/internal/session"
)

func TestSummarizeChecks(t *testing.T) {
	tests := []struct {
		name   string
		checks []plugin.CICheck
		want   plugin.CISummary
	}{
		{"no checks", nil, plugin.CINone},
		{
			"all passing",
			[]plugin.CICheck{
				{Name: "test", Status: "completed", Conclusion: "success"},
				{Name: "lint", Status: "completed", Conclusion: "success"},
			},
			plugin.CIPassing,
		},
		{
			"one failure wins",
			[]plugin.CICheck{
				{Name: "test", Status: "completed", Conclusion: "success"},
				{Name: "lint", Status: "completed", Conclusion: "failure"},
			},
			plugin.CIFailing,
		},
		{
			"timed out is a failure",
			[]plugin.CICheck{{Name: "e2e", Status: "completed", Conclusion: "timed_out"}},
			plugin.CIFailing,
		},
		{
			"cancelled is a failure",
			[]plugin.CICheck{{Name: "e2e", Status: "completed", Conclusion: "cancelled"}},
			plugin.CIFailing,
		},
		{
			"action required is a failure",
			[]plugin.CICheck{{Name: "deploy", Status: "completed", Conclusion: "action_required"}},
			plugin.CIFailing,
		},
		{
			"still running means pending",
			[]plugin.CICheck{
				{Name: "test", Status: "completed", Conclusion: "success"},
				{Name: "e2e", Status: "in_progress"},
			},
			plugin.CIPending,
		},
		{
			"failure beats pending",
			[]plugin.CICheck{
				{Name: "test", Status: "completed", Conclusion: "failure"},
				{Name: "e2e", Status: "in_progress"},
			},
			plugin.CIFailing,
		},
		{
			"skipped and neutral pass",
			[]plugin.CICheck{
				{Name: "optional", Status: "completed", Conclusion: "skipped"},
				{Name: "info", Status: "completed", Conclusion: "neutral"},
			},
			plugin.CIPassing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeChecks(tt.checks))
		})
	}
}

func TestRepoSlug(t *testing.T) {
	pr := &session.PRInfo{Owner: "acme", Repo: "my-app"}
	slug, err := repoSlug(pr, nil)
	assert.NoError(t, err)
	assert.Equal(t, "acme/my-app", slug)

	// project config fills in when the PR record has no owner
	slug, err = repoSlug(&session.PRInfo{Number: 7}, &config.Project{Repo: "acme/other"})
	assert.NoError(t, err)
	assert.Equal(t, "acme/other", slug)

	_, err = repoSlug(nil, nil)
	assert.Error(t, err)
}
