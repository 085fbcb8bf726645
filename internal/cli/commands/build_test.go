package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlantz/metaci-cli/pkg/models"
)

func TestBuildListEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	code := env.run("", "build", "list")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Equal(t, buildTable.Header()+"\n", env.out.String())
	assert.Equal(t, "    # Status   Plan                     Branch                   Commit", buildTable.Header())
}

func TestBuildList(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	repo := env.addRepo("Owner", "Repo")
	env.api.builds = []models.Build{
		{
			ID:     7,
			Status: models.BuildStatusSuccess,
			Repo:   &repo,
			Plan:   &models.Plan{Name: "feature"},
			Branch: &models.Branch{Name: "feature/a-very-long-branch-name-indeed"},
			Commit: "abc123",
		},
		{ID: 8, Status: models.BuildStatusFailed, Commit: "def456"},
	}

	code := env.run("", "build", "list", "--repo", "Owner/Repo", "--status", "success")
	require.Equal(t, ExitOK, code, env.errOut.String())

	out := env.out.String()
	assert.Contains(t, out, "Filtering on repository Owner/Repo")
	assert.Contains(t, out, "    7 success  feature                  feature/a-very-long-bran abc123")
	assert.NotContains(t, out, "def456")
	assert.Equal(t, "success", env.api.filters["ListBuilds"]["status"])
}

func TestBuildListInvalidStatus(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	code := env.run("", "build", "list", "--status", "bogus")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, env.errOut.String(), "invalid --status")
	assert.Empty(t, env.log.calls)
}

func TestBuildListStatuses(t *testing.T) {
	tests := []string{"queued", "waiting", "running", "in_progress", "success", "fail", "failed", "error"}

	for _, status := range tests {
		t.Run(status, func(t *testing.T) {
			env := newTestEnv(t)
			env.connect(t)

			code := env.run("", "build", "list", "--status", status)
			require.Equal(t, ExitOK, code, env.errOut.String())
			assert.Equal(t, status, env.api.filters["ListBuilds"]["status"])
		})
	}
}

func TestBuildInfo(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	env.api.builds = []models.Build{{ID: 42, Status: models.BuildStatusError, Commit: "abc", Log: "Traceback: boom"}}

	code := env.run("", "build", "info", "42")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Contains(t, env.out.String(), "commit: abc")
	assert.Contains(t, env.out.String(), "status: error")
	assert.NotContains(t, env.out.String(), "Traceback")

	code = env.run("", "build", "info", "42", "--log")
	require.Equal(t, ExitOK, code)
	assert.Equal(t, "Traceback: boom\n", env.out.String())
}

func TestBuildInfoNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	code := env.run("", "build", "info", "404")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, env.errOut.String(), "Build 404 not found")
}

func TestBuildInfoBadID(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	assert.Equal(t, ExitUsage, env.run("", "build", "info", "latest"))
	assert.Equal(t, ExitUsage, env.run("", "build", "info"))
}

func TestBuildBrowser(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	env.api.builds = []models.Build{{ID: 5}}

	code := env.run("", "build", "browser", "5")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Equal(t, []string{"https://metaci.example.com/builds/5"}, env.opened)
	assert.Contains(t, env.out.String(), "Opening browser to https://metaci.example.com/builds/5")
}
