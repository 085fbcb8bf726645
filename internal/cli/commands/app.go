package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"github.com/jlantz/metaci-cli/internal/api"
	"github.com/jlantz/metaci-cli/internal/cli/output"
	"github.com/jlantz/metaci-cli/internal/cli/prompt"
	"github.com/jlantz/metaci-cli/internal/deploy"
	"github.com/jlantz/metaci-cli/internal/heroku"
	"github.com/jlantz/metaci-cli/internal/keychain"
	"github.com/jlantz/metaci-cli/internal/project"
	"github.com/jlantz/metaci-cli/internal/source"
	"github.com/jlantz/metaci-cli/pkg/config"
	"github.com/jlantz/metaci-cli/pkg/models"
)

// MetaCI is the subset of the API client the commands use
type MetaCI interface {
	BaseURL() string
	Schema(ctx context.Context) (map[string]interface{}, error)

	ListRepos(ctx context.Context, filter api.Filter) (*models.Page[models.Repository], error)
	CreateRepo(ctx context.Context, repo *models.Repository) (*models.Repository, error)

	ListBranches(ctx context.Context, filter api.Filter) (*models.Page[models.Branch], error)
	CreateBranch(ctx context.Context, branch *models.Branch) (*models.Branch, error)

	ListPlans(ctx context.Context, filter api.Filter) (*models.Page[models.Plan], error)
	GetPlan(ctx context.Context, id int) (*models.Plan, error)
	CreatePlan(ctx context.Context, plan *models.Plan, repoID int) (*models.Plan, error)

	ListPlanRepos(ctx context.Context, filter api.Filter) (*models.Page[models.PlanRepo], error)
	CreatePlanRepo(ctx context.Context, planID, repoID int) (*models.PlanRepo, error)

	ListOrgs(ctx context.Context, filter api.Filter) (*models.Page[models.Org], error)
	CreateOrg(ctx context.Context, org *models.Org) (*models.Org, error)

	ListBuilds(ctx context.Context, filter api.Filter) (*models.Page[models.Build], error)
	GetBuild(ctx context.Context, id int) (*models.Build, error)
	CreateBuild(ctx context.Context, req *models.BuildRequest) (*models.Build, error)

	ListServices(ctx context.Context, filter api.Filter) (*models.Page[models.Service], error)
	CreateService(ctx context.Context, service *models.Service) (*models.Service, error)
}

// Heroku is the subset of the Heroku Platform API client site commands use
type Heroku interface {
	deploy.SetupGetter
	deploy.FormationUpdater
	CreateAppSetup(ctx context.Context, req *heroku.AppSetupRequest) (*heroku.AppSetup, error)
	GetBuild(ctx context.Context, app, buildID string) (*heroku.Build, error)
	StreamOutput(ctx context.Context, streamURL string, w io.Writer) error
}

// CommitResolver finds the head commit of a branch on the source host
type CommitResolver interface {
	HeadCommit(ctx context.Context, repoURL, branch string) (string, error)
}

// App carries everything a command needs. Collaborators are created
// lazily so commands that never touch the keychain or the network do not
// pay for them.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Out     *output.Printer
	Prompt  prompt.Prompter
	WorkDir string

	// OpenBrowser opens url in the user's browser
	OpenBrowser func(url string) error
	// NewClient builds an API client for the connected site
	NewClient func(site *keychain.Site) MetaCI
	// NewHeroku builds a Heroku client for token
	NewHeroku func(token string) Heroku
	// NewResolver builds a commit resolver from the github service credentials
	NewResolver func(github keychain.ServiceConfig) CommitResolver
	// HerokuToken looks up a token from the environment or the Heroku CLI
	HerokuToken func() string
	// DevHubUsername reads the default Salesforce DX devhub, "" when unknown
	DevHubUsername func() string
	// OpenKeychain opens the local credential store
	OpenKeychain func() (*keychain.Keychain, error)

	keychain      *keychain.Keychain
	project       *project.Context
	projectLoaded bool
}

// NewApp wires the production collaborators
func NewApp(cfg *config.Config, logger zerolog.Logger, in io.Reader, out io.Writer) *App {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Out:     output.NewPrinter(out),
		Prompt:  prompt.NewTerminal(in, out),
		WorkDir: wd,
	}

	app.OpenBrowser = browser.OpenURL
	app.NewClient = func(site *keychain.Site) MetaCI {
		return api.NewClient(site.URL, site.Token, cfg.API.Timeout, logger)
	}
	app.NewHeroku = func(token string) Heroku {
		return heroku.NewClient(cfg.Heroku.APIURL, token, logger)
	}
	app.NewResolver = func(github keychain.ServiceConfig) CommitResolver {
		return source.NewResolver(github.Get("username"), github.Get("password"), logger)
	}
	app.HerokuToken = func() string {
		if cfg.Heroku.APIKey != "" {
			return cfg.Heroku.APIKey
		}
		token, err := exec.Command("heroku", "auth:token").Output()
		if err != nil {
			logger.Debug().Err(err).Msg("heroku auth:token unavailable")
			return ""
		}
		return strings.TrimSpace(string(token))
	}
	app.DevHubUsername = func() string {
		out, err := exec.Command("sfdx", "force:config:get", "defaultdevhubusername", "--json").Output()
		if err != nil {
			logger.Debug().Err(err).Msg("sfdx devhub lookup unavailable")
			return ""
		}
		var res struct {
			Result []struct {
				Value string `json:"value"`
			} `json:"result"`
		}
		if err := json.Unmarshal(out, &res); err != nil || len(res.Result) == 0 {
			return ""
		}
		return res.Result[0].Value
	}
	app.OpenKeychain = func() (*keychain.Keychain, error) {
		return keychain.Open(cfg.KeychainPath(), logger)
	}

	return app
}

// Keychain opens the local credential store on first use
func (a *App) Keychain() (*keychain.Keychain, error) {
	if a.keychain != nil {
		return a.keychain, nil
	}
	kc, err := a.OpenKeychain()
	if err != nil {
		return nil, fmt.Errorf("failed to open keychain: %w", err)
	}
	a.keychain = kc
	return kc, nil
}

// Close releases the keychain if it was opened
func (a *App) Close() error {
	if a.keychain == nil {
		return nil
	}
	err := a.keychain.Close()
	a.keychain = nil
	return err
}

// Project returns the local project context, or nil outside a project
func (a *App) Project() (*project.Context, error) {
	if a.projectLoaded {
		return a.project, nil
	}
	ctx, err := project.Detect(a.WorkDir, a.Config.Project.ConfigFile)
	if err != nil {
		return nil, err
	}
	a.project = ctx
	a.projectLoaded = true
	if ctx != nil {
		a.Logger.Debug().
			Str("root", ctx.Root).
			Str("repo", ctx.Qualifier()).
			Str("branch", ctx.Branch).
			Msg("Detected project")
	}
	return ctx, nil
}

// SetProject overrides project detection
func (a *App) SetProject(ctx *project.Context) {
	a.project = ctx
	a.projectLoaded = true
}

// RequireProject fails with a usage error outside a project
func (a *App) RequireProject() (*project.Context, error) {
	ctx, err := a.Project()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		return nil, usageErrorf("You must be in a CumulusCI configured git repository.  No CumulusCI project configuration could be detected")
	}
	return ctx, nil
}

// Site returns the connected MetaCI site
func (a *App) Site(ctx context.Context) (*keychain.Site, error) {
	kc, err := a.Keychain()
	if err != nil {
		return nil, err
	}
	site, err := kc.GetSite(ctx)
	var notConfigured keychain.ServiceNotConfiguredError
	if errors.As(err, &notConfigured) {
		return nil, api.ErrSiteNotConfigured
	}
	if err != nil {
		return nil, err
	}
	if site.URL == "" {
		return nil, api.ErrSiteNotConfigured
	}
	return site, nil
}

// Client returns an API client for the connected site
func (a *App) Client(ctx context.Context) (MetaCI, error) {
	site, err := a.Site(ctx)
	if err != nil {
		return nil, err
	}
	return a.NewClient(site), nil
}

// Browse prints and opens url
func (a *App) Browse(url string) error {
	a.Out.Printf("Opening browser to %s\n", url)
	if err := a.OpenBrowser(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// siteURL joins a path onto the connected site
func (a *App) siteURL(ctx context.Context, format string, args ...interface{}) (string, error) {
	site, err := a.Site(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(site.URL, "/") + fmt.Sprintf(format, args...), nil
}
