package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jlantz/metaci-cli/internal/api"
	"github.com/jlantz/metaci-cli/internal/cli/output"
	"github.com/jlantz/metaci-cli/internal/cli/prompt"
	"github.com/jlantz/metaci-cli/internal/heroku"
	"github.com/jlantz/metaci-cli/internal/keychain"
	"github.com/jlantz/metaci-cli/internal/project"
	"github.com/jlantz/metaci-cli/pkg/config"
	"github.com/jlantz/metaci-cli/pkg/models"
)

// callLog records calls across fakes so tests can assert ordering
type callLog struct {
	calls []string
}

func (l *callLog) record(name string) {
	l.calls = append(l.calls, name)
}

func (l *callLog) has(name string) bool {
	for _, c := range l.calls {
		if c == name {
			return true
		}
	}
	return false
}

// fakeMetaCI is an in-memory MetaCI server
type fakeMetaCI struct {
	log     *callLog
	baseURL string
	nextID  int

	repos     []models.Repository
	branches  []models.Branch
	plans     []models.Plan
	planRepos []models.PlanRepo
	orgs      []models.Org
	builds    []models.Build
	services  []models.Service

	schemaErr error
	filters   map[string]api.Filter
}

func newFakeMetaCI(log *callLog) *fakeMetaCI {
	return &fakeMetaCI{
		log:     log,
		baseURL: "https://metaci.example.com",
		nextID:  100,
		filters: map[string]api.Filter{},
	}
}

func (f *fakeMetaCI) call(name string, filter api.Filter) {
	f.log.record(name)
	if filter != nil {
		f.filters[name] = filter
	}
}

func (f *fakeMetaCI) id() int {
	f.nextID++
	return f.nextID
}

func match(filter api.Filter, key, value string) bool {
	want, ok := filter[key]
	return !ok || want == "" || want == value
}

func repoID(r *models.Repository, id int) string {
	if r != nil {
		return strconv.Itoa(r.ID)
	}
	return strconv.Itoa(id)
}

func page[T any](results []T) *models.Page[T] {
	if results == nil {
		results = []T{}
	}
	return &models.Page[T]{Count: len(results), Results: results}
}

func (f *fakeMetaCI) BaseURL() string { return f.baseURL }

func (f *fakeMetaCI) Schema(ctx context.Context) (map[string]interface{}, error) {
	f.call("Schema", nil)
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	return map[string]interface{}{"_type": "document"}, nil
}

func (f *fakeMetaCI) ListRepos(ctx context.Context, filter api.Filter) (*models.Page[models.Repository], error) {
	f.call("ListRepos", filter)
	var out []models.Repository
	for _, r := range f.repos {
		if match(filter, "owner", r.Owner) && match(filter, "name", r.Name) {
			out = append(out, r)
		}
	}
	return page(out), nil
}

func (f *fakeMetaCI) CreateRepo(ctx context.Context, repo *models.Repository) (*models.Repository, error) {
	f.call("CreateRepo", nil)
	created := *repo
	created.ID = f.id()
	f.repos = append(f.repos, created)
	return &created, nil
}

func (f *fakeMetaCI) ListBranches(ctx context.Context, filter api.Filter) (*models.Page[models.Branch], error) {
	f.call("ListBranches", filter)
	var out []models.Branch
	for _, b := range f.branches {
		if match(filter, "name", b.Name) && match(filter, "repo", repoID(b.Repo, b.RepoID)) {
			out = append(out, b)
		}
	}
	return page(out), nil
}

func (f *fakeMetaCI) CreateBranch(ctx context.Context, branch *models.Branch) (*models.Branch, error) {
	f.call("CreateBranch", nil)
	created := *branch
	created.ID = f.id()
	f.branches = append(f.branches, created)
	return &created, nil
}

func (f *fakeMetaCI) ListPlans(ctx context.Context, filter api.Filter) (*models.Page[models.Plan], error) {
	f.call("ListPlans", filter)
	var out []models.Plan
	for _, p := range f.plans {
		if !match(filter, "name", p.Name) {
			continue
		}
		if want := filter["repo"]; want != "" {
			linked := false
			for _, r := range p.Repos {
				if strconv.Itoa(r.ID) == want {
					linked = true
				}
			}
			if !linked {
				continue
			}
		}
		out = append(out, p)
	}
	return page(out), nil
}

func (f *fakeMetaCI) GetPlan(ctx context.Context, id int) (*models.Plan, error) {
	f.call("GetPlan", nil)
	for _, p := range f.plans {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &api.NotFoundError{Resource: "Plan", Identifier: strconv.Itoa(id)}
}

func (f *fakeMetaCI) CreatePlan(ctx context.Context, plan *models.Plan, repoID int) (*models.Plan, error) {
	f.call("CreatePlan", nil)
	created := *plan
	created.ID = f.id()
	for _, r := range f.repos {
		if r.ID == repoID {
			created.Repos = append(created.Repos, r)
		}
	}
	f.plans = append(f.plans, created)
	return &created, nil
}

func (f *fakeMetaCI) ListPlanRepos(ctx context.Context, filter api.Filter) (*models.Page[models.PlanRepo], error) {
	f.call("ListPlanRepos", filter)
	var out []models.PlanRepo
	for _, pr := range f.planRepos {
		var planID string
		if pr.Plan != nil {
			planID = strconv.Itoa(pr.Plan.ID)
		}
		if match(filter, "plan", planID) && match(filter, "repo", repoID(pr.Repo, pr.RepoID)) {
			out = append(out, pr)
		}
	}
	return page(out), nil
}

func (f *fakeMetaCI) CreatePlanRepo(ctx context.Context, planID, repoID int) (*models.PlanRepo, error) {
	f.call("CreatePlanRepo", nil)
	pr := models.PlanRepo{ID: f.id(), PlanID: planID, RepoID: repoID}
	for _, p := range f.plans {
		if p.ID == planID {
			p := p
			pr.Plan = &p
		}
	}
	for _, r := range f.repos {
		if r.ID == repoID {
			r := r
			pr.Repo = &r
		}
	}
	f.planRepos = append(f.planRepos, pr)
	return &pr, nil
}

func (f *fakeMetaCI) ListOrgs(ctx context.Context, filter api.Filter) (*models.Page[models.Org], error) {
	f.call("ListOrgs", filter)
	var out []models.Org
	for _, o := range f.orgs {
		if match(filter, "name", o.Name) && match(filter, "repo", repoID(o.Repo, o.RepoID)) {
			out = append(out, o)
		}
	}
	return page(out), nil
}

func (f *fakeMetaCI) CreateOrg(ctx context.Context, org *models.Org) (*models.Org, error) {
	f.call("CreateOrg", nil)
	created := *org
	created.ID = f.id()
	f.orgs = append(f.orgs, created)
	return &created, nil
}

func (f *fakeMetaCI) ListBuilds(ctx context.Context, filter api.Filter) (*models.Page[models.Build], error) {
	f.call("ListBuilds", filter)
	var out []models.Build
	for _, b := range f.builds {
		if match(filter, "status", string(b.Status)) && match(filter, "repo", repoID(b.Repo, 0)) {
			out = append(out, b)
		}
	}
	return page(out), nil
}

func (f *fakeMetaCI) GetBuild(ctx context.Context, id int) (*models.Build, error) {
	f.call("GetBuild", nil)
	for _, b := range f.builds {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, &api.NotFoundError{Resource: "Build", Identifier: strconv.Itoa(id)}
}

func (f *fakeMetaCI) CreateBuild(ctx context.Context, req *models.BuildRequest) (*models.Build, error) {
	f.call("CreateBuild", nil)
	b := models.Build{ID: f.id(), Status: models.BuildStatusQueued, Commit: req.Commit}
	f.builds = append(f.builds, b)
	return &b, nil
}

func (f *fakeMetaCI) ListServices(ctx context.Context, filter api.Filter) (*models.Page[models.Service], error) {
	f.call("ListServices", filter)
	var out []models.Service
	for _, s := range f.services {
		if match(filter, "name", s.Name) {
			out = append(out, s)
		}
	}
	return page(out), nil
}

func (f *fakeMetaCI) CreateService(ctx context.Context, service *models.Service) (*models.Service, error) {
	f.call("CreateService", nil)
	created := *service
	created.ID = f.id()
	f.services = append(f.services, created)
	return &created, nil
}

// fakeResolver returns a fixed commit for every branch
type fakeResolver struct {
	log    *callLog
	commit string
	err    error
	repo   string
	branch string
}

func (r *fakeResolver) HeadCommit(ctx context.Context, repoURL, branch string) (string, error) {
	r.log.record("HeadCommit")
	r.repo, r.branch = repoURL, branch
	return r.commit, r.err
}

// fakeHeroku replays a sequence of app setup states
type fakeHeroku struct {
	log      *callLog
	token    string
	setups   []heroku.AppSetup
	polls    int
	request  *heroku.AppSetupRequest
	app      string
	updates  []heroku.FormationUpdate
	streamed []string

	createErr error
	getErr    error
}

func (h *fakeHeroku) CreateAppSetup(ctx context.Context, req *heroku.AppSetupRequest) (*heroku.AppSetup, error) {
	h.log.record("CreateAppSetup")
	h.request = req
	if h.createErr != nil {
		return nil, h.createErr
	}
	return &heroku.AppSetup{ID: "setup-1", Status: heroku.SetupPending, App: heroku.AppRef{Name: req.App.Name}}, nil
}

func (h *fakeHeroku) GetAppSetup(ctx context.Context, id string) (*heroku.AppSetup, error) {
	h.log.record("GetAppSetup")
	if h.getErr != nil {
		return nil, h.getErr
	}
	i := h.polls
	if i >= len(h.setups) {
		i = len(h.setups) - 1
	}
	h.polls++
	s := h.setups[i]
	return &s, nil
}

func (h *fakeHeroku) GetBuild(ctx context.Context, app, buildID string) (*heroku.Build, error) {
	h.log.record("GetBuild")
	return &heroku.Build{ID: buildID, Status: "failed", App: heroku.AppRef{ID: app}}, nil
}

func (h *fakeHeroku) StreamOutput(ctx context.Context, streamURL string, w io.Writer) error {
	h.log.record("StreamOutput")
	h.streamed = append(h.streamed, streamURL)
	_, err := io.WriteString(w, "-----> Building MetaCI\n")
	return err
}

func (h *fakeHeroku) BatchUpdateFormation(ctx context.Context, app string, updates []heroku.FormationUpdate) ([]heroku.Formation, error) {
	h.log.record("BatchUpdateFormation")
	h.app = app
	h.updates = updates
	return nil, nil
}

// testEnv runs commands against fakes and a throwaway keychain
type testEnv struct {
	app      *App
	log      *callLog
	api      *fakeMetaCI
	heroku   *fakeHeroku
	resolver *fakeResolver
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	opened   []string
	kcPath   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := &callLog{}
	env := &testEnv{
		log:      log,
		api:      newFakeMetaCI(log),
		heroku:   &fakeHeroku{log: log},
		resolver: &fakeResolver{log: log, commit: "0123456789abcdef0123456789abcdef01234567"},
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
		kcPath:   filepath.Join(t.TempDir(), "keychain.db"),
	}

	cfg := &config.Config{
		Home:    t.TempDir(),
		Log:     config.LogConfig{Level: "warn"},
		API:     config.APIConfig{Timeout: time.Second},
		Heroku:  config.HerokuConfig{SourceURL: "https://example.com/metaci.tar.gz", PollInterval: time.Millisecond},
		GitHub:  config.GitHubConfig{BaseURL: "https://github.com"},
		Project: config.ProjectConfig{ConfigFile: "cumulusci.yml"},
	}

	app := &App{
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Out:     output.NewPrinter(env.out),
		WorkDir: t.TempDir(),
	}
	app.OpenBrowser = func(url string) error {
		env.opened = append(env.opened, url)
		return nil
	}
	app.NewClient = func(site *keychain.Site) MetaCI {
		env.api.baseURL = site.URL
		return env.api
	}
	app.NewHeroku = func(token string) Heroku {
		env.heroku.token = token
		return env.heroku
	}
	app.NewResolver = func(keychain.ServiceConfig) CommitResolver { return env.resolver }
	app.HerokuToken = func() string { return "heroku-token" }
	app.DevHubUsername = func() string { return "devhub@example.com" }
	app.OpenKeychain = func() (*keychain.Keychain, error) {
		return keychain.Open(env.kcPath, zerolog.Nop())
	}
	app.SetProject(nil)

	env.app = app
	return env
}

// run executes args with input fed to prompts and returns the exit code
func (e *testEnv) run(input string, args ...string) int {
	e.out.Reset()
	e.errOut.Reset()
	e.app.Prompt = prompt.NewTerminal(strings.NewReader(input), e.out)
	return Run(context.Background(), e.app, args, strings.NewReader(input), e.out, e.errOut)
}

func (e *testEnv) keychain(t *testing.T) *keychain.Keychain {
	t.Helper()
	kc, err := keychain.Open(e.kcPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { kc.Close() })
	return kc
}

// connect stores a site in the keychain
func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	kc := e.keychain(t)
	require.NoError(t, kc.SetSite(context.Background(), &keychain.Site{
		URL:     "https://metaci.example.com",
		Token:   "abcdef123456",
		AppName: "metaci-test",
	}))
}

// inProject places the env inside a project for owner/name
func (e *testEnv) inProject(owner, name, branch string) {
	e.app.SetProject(&project.Context{
		Root:          e.app.WorkDir,
		Name:          name,
		RepoOwner:     owner,
		RepoName:      name,
		RepoURL:       fmt.Sprintf("https://github.com/%s/%s", owner, name),
		Branch:        branch,
		DefaultBranch: "main",
		Flows:         []string{"ci_feature", "ci_master", "dev_org"},
	})
}

func (e *testEnv) addRepo(owner, name string) models.Repository {
	r := models.Repository{ID: e.api.id(), Owner: owner, Name: name, URL: fmt.Sprintf("https://github.com/%s/%s", owner, name)}
	e.api.repos = append(e.api.repos, r)
	return r
}
