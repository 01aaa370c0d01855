package ghissues

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentops/overseer/internal/config"
)

func TestBranchName(t *testing.T) {
	tr := New()
	tests := []struct {
		issueID string
		want    string
	}{
		{"42", "feat/issue-42"},
		{"#42", "feat/issue-42"},
		{"PROJ-123", "feat/issue-PROJ-123"},
		{"weird id!", "feat/issue-weird-id-"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tr.BranchName(tt.issueID, nil), "issue=%q", tt.issueID)
	}
}

func TestIssueURL(t *testing.T) {
	tr := New()
	project := &config.Project{Repo: "acme/my-app"}
	assert.Equal(t, "https://github.com/acme/my-app/issues/42", tr.IssueURL("42", project))
	assert.Equal(t, "https://github.com/acme/my-app/issues/42", tr.IssueURL("#42", project))
	assert.Equal(t, "", tr.IssueURL("42", nil))
	assert.Equal(t, "", tr.IssueURL("42", &config.Project{}))
}

func TestIssueNumber(t *testing.T) {
	assert.Equal(t, "42", issueNumber("#42"))
	assert.Equal(t, "42", issueNumber("42"))
}
