package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlantz/metaci-cli/pkg/models"
)

func seedPlan(env *testEnv) (models.Repository, models.Plan) {
	repo := env.addRepo("Owner", "Repo")
	plan := models.Plan{
		ID:    env.api.id(),
		Name:  "feature",
		Org:   "feature_org",
		Flows: "ci_feature",
		Type:  models.TriggerCommit,
		Regex: "feature/.*",
		Repos: []models.Repository{repo},
	}
	env.api.plans = append(env.api.plans, plan)
	return repo, plan
}

func TestPlanRunOrdering(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	repo, _ := seedPlan(env)
	env.api.orgs = append(env.api.orgs, models.Org{ID: env.api.id(), Name: "feature_org", Repo: &repo})

	code := env.run("", "plan", "run", "feature", "--repo", "Owner/Repo", "--branch", "feature/new")
	require.Equal(t, ExitOK, code, env.errOut.String())

	assert.Equal(t, []string{
		"ListRepos",
		"ListPlans",
		"ListOrgs",
		"ListBranches",
		"CreateBranch",
		"HeadCommit",
		"CreateBuild",
	}, env.log.calls)

	assert.Equal(t, "https://github.com/Owner/Repo", env.resolver.repo)
	assert.Equal(t, "feature/new", env.resolver.branch)
	require.Len(t, env.api.builds, 1)
	assert.Equal(t, env.resolver.commit, env.api.builds[0].Commit)
	assert.Contains(t, env.out.String(), "Created branch feature/new in MetaCI")
	assert.Contains(t, env.out.String(), "https://metaci.example.com/builds/")
}

func TestPlanRunExistingBranchAndCommit(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	env.inProject("Owner", "Repo", "feature/local")
	repo, _ := seedPlan(env)
	env.api.orgs = append(env.api.orgs, models.Org{ID: env.api.id(), Name: "other_org", Repo: &repo})
	env.api.branches = append(env.api.branches, models.Branch{ID: env.api.id(), Name: "feature/local", Repo: &repo})

	code := env.run("", "plan", "run", "feature", "--org", "other_org", "--commit", "cafebabe")
	require.Equal(t, ExitOK, code, env.errOut.String())

	assert.False(t, env.log.has("CreateBranch"))
	assert.False(t, env.log.has("HeadCommit"))
	assert.Equal(t, "other_org", env.api.filters["ListOrgs"]["name"])
	require.Len(t, env.api.builds, 1)
	assert.Equal(t, "cafebabe", env.api.builds[0].Commit)
}

func TestPlanRunMissingOrgStopsBeforeBranch(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	seedPlan(env)

	code := env.run("", "plan", "run", "feature", "--repo", "Owner/Repo", "--branch", "main")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, env.errOut.String(), "Org feature_org not found")

	assert.True(t, env.log.has("ListOrgs"))
	for _, call := range []string{"ListBranches", "CreateBranch", "HeadCommit", "CreateBuild"} {
		assert.False(t, env.log.has(call), "%s should not be called", call)
	}
}

func TestPlanRunNeedsBranch(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	repo, _ := seedPlan(env)
	env.api.orgs = append(env.api.orgs, models.Org{ID: env.api.id(), Name: "feature_org", Repo: &repo})

	code := env.run("", "plan", "run", "feature", "--repo", "Owner/Repo")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, env.errOut.String(), "No branch specified")
	assert.False(t, env.log.has("CreateBuild"))
}

func TestPlanListEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	code := env.run("", "plan", "list")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Equal(t, planTable.Header()+"\n", env.out.String())
}

func TestPlanList(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	seedPlan(env)

	code := env.run("", "plan", "list", "--repo", "Owner/Repo")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Contains(t, env.out.String(), "feature                  feature_org  ci_feature               commit  feature/.*")
}

func TestPlanInfoNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	env.addRepo("Owner", "Repo")

	code := env.run("", "plan", "info", "nightly", "--repo", "Owner/Repo")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, env.errOut.String(), "Plan nightly not found")
}

func TestPlanAdd(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	env.inProject("Owner", "Repo", "main")
	repo := env.addRepo("Owner", "Repo")
	env.api.orgs = append(env.api.orgs, models.Org{ID: env.api.id(), Name: "dev", Repo: &repo})

	input := "nightly\n" + // name
		"Nightly build\n" + // description
		"dev\n" + // org
		"bogus_flow\n" + // rejected flow
		"ci_feature, dev_org\n" + // flows
		"tag\n" + // trigger
		"beta/.*\n" + // regex
		"y\n" + // set commit status
		"\n" + // context defaults to name
		"\n" + // active defaults to yes
		"n\n" // public

	code := env.run(input, "plan", "add")
	require.Equal(t, ExitOK, code, env.errOut.String())

	require.Len(t, env.api.plans, 1)
	plan := env.api.plans[0]
	assert.Equal(t, "nightly", plan.Name)
	assert.Equal(t, "dev", plan.Org)
	assert.Equal(t, "ci_feature,dev_org", plan.Flows)
	assert.Equal(t, models.TriggerTag, plan.Type)
	assert.Equal(t, "beta/.*", plan.Regex)
	require.NotNil(t, plan.Context)
	assert.Equal(t, "nightly", *plan.Context)
	assert.True(t, plan.Active)
	assert.False(t, plan.Public)
	require.Len(t, plan.Repos, 1)
	assert.Equal(t, repo.ID, plan.Repos[0].ID)
	assert.Contains(t, env.out.String(), "unknown flows: bogus_flow")
}

func TestPlanAddOutsideProject(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)

	code := env.run("", "plan", "add")
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, env.errOut.String(), "CumulusCI configured git repository")
}

func TestPlanRepoAddAndList(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	seedPlan(env)
	env.addRepo("Owner", "Other")

	code := env.run("", "plan", "repo_add", "feature", "--repo", "Owner/Other")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Contains(t, env.out.String(), "Plan feature is now connected to repository Owner/Other")

	code = env.run("", "plan", "repo_add", "feature", "--repo", "Owner/Other")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, env.errOut.String(), "already connected")

	code = env.run("", "plan", "repo_list", "feature")
	require.Equal(t, ExitOK, code, env.errOut.String())
	assert.Contains(t, env.out.String(), "Owner                Other")
}

func TestPlanBrowser(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t)
	_, plan := seedPlan(env)

	code := env.run("", "plan", "browser", "feature")
	require.Equal(t, ExitOK, code, env.errOut.String())
	require.Len(t, env.opened, 1)
	assert.Equal(t, "https://metaci.example.com/plans/"+itoa(plan.ID), env.opened[0])
}
