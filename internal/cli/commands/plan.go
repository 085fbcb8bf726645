package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jlantz/metaci-cli/internal/api"
	"github.com/jlantz/metaci-cli/internal/cli/output"
	"github.com/jlantz/metaci-cli/internal/keychain"
	"github.com/jlantz/metaci-cli/pkg/models"
)

var planTable = output.NewTable(
	output.Column{Header: "#", Width: 5, Right: true},
	output.Column{Header: "Name", Width: 24, Truncate: true},
	output.Column{Header: "Org", Width: 12, Truncate: true},
	output.Column{Header: "Flows", Width: 24, Truncate: true},
	output.Column{Header: "Trigger", Width: 7, Truncate: true},
	output.Column{Header: "Regex"},
)

var planRepoTable = output.NewTable(
	output.Column{Header: "#", Width: 5},
	output.Column{Header: "Owner", Width: 20, Truncate: true},
	output.Column{Header: "Name"},
)

var triggerTypes = []string{string(models.TriggerCommit), string(models.TriggerTag), string(models.TriggerManual)}

func newPlanCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage plans and run builds",
	}
	cmd.AddCommand(newPlanAddCommand(app))
	cmd.AddCommand(newPlanInfoCommand(app))
	cmd.AddCommand(newPlanListCommand(app))
	cmd.AddCommand(newPlanRunCommand(app))
	cmd.AddCommand(newPlanBrowserCommand(app))
	cmd.AddCommand(newPlanRepoAddCommand(app))
	cmd.AddCommand(newPlanRepoListCommand(app))
	return cmd
}

func planRow(p models.Plan) []string {
	return []string{itoa(p.ID), p.Name, p.Org, p.Flows, string(p.Type), p.Regex}
}

// findPlan looks a plan up by name, within repo when given
func findPlan(ctx context.Context, client MetaCI, name string, repo *models.Repository) (*models.Plan, error) {
	filter := repoFilter(repo)
	filter["name"] = name
	res, err := client.ListPlans(ctx, filter)
	if err != nil {
		return nil, err
	}
	return singleOrNotFound(res, "Plan", name, "Use metaci plan list to see a list of available plans")
}

func newPlanAddCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new Plan to run builds on MetaCI",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			proj, err := app.RequireProject()
			if err != nil {
				return err
			}
			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			r, err := app.resolveRepo(ctx, client, repo, repoLookup{Required: true})
			if err != nil {
				return err
			}

			plan := &models.Plan{}
			if plan.Name, err = app.Prompt.Prompt("Name", ""); err != nil {
				return err
			}
			if plan.Description, err = app.Prompt.Prompt("Description", ""); err != nil {
				return err
			}
			if plan.Org, err = promptRemoteOrg(ctx, app, client, r); err != nil {
				return err
			}
			if plan.Flows, err = promptFlows(app, proj.Flows); err != nil {
				return err
			}

			trigger, err := app.Prompt.Choice("Trigger Type", triggerTypes, string(models.TriggerCommit))
			if err != nil {
				return err
			}
			plan.Type = models.TriggerType(trigger)

			if plan.Regex, err = app.Prompt.Prompt("Branch/Tag Match RegEx (ex feature/.*)", ""); err != nil {
				return err
			}

			setStatus, err := app.Prompt.Confirm("Set commit status in Github for Plan?", false)
			if err != nil {
				return err
			}
			if setStatus {
				statusContext, err := app.Prompt.Prompt("Github Commit Status Context", plan.Name)
				if err != nil {
					return err
				}
				plan.Context = &statusContext
			}

			if plan.Active, err = app.Prompt.Confirm("Active?", true); err != nil {
				return err
			}
			if plan.Public, err = app.Prompt.Confirm("Public?", false); err != nil {
				return err
			}

			created, err := client.CreatePlan(ctx, plan, r.ID)
			if err != nil {
				return err
			}

			app.Out.Println()
			app.Out.Printf("Plan %s was successfully created with the following config\n", created.Name)
			return app.Out.Recursive(created)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func promptRemoteOrg(ctx context.Context, app *App, client MetaCI, repo *models.Repository) (string, error) {
	res, err := client.ListOrgs(ctx, repoFilter(repo))
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(res.Results))
	for _, o := range res.Results {
		names = append(names, o.Name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "", fmt.Errorf("No orgs found for repository %s.  Use metaci org add to create one", repo.FullName())
	}
	return app.Prompt.Choice("Org", names, "")
}

// promptFlows asks for a comma separated flow list until every entry is
// a known flow
func promptFlows(app *App, available []string) (string, error) {
	known := make(map[string]bool, len(available))
	for _, f := range available {
		known[f] = true
	}

	app.Out.Println("Available Flows: " + strings.Join(available, ", "))
	for {
		answer, err := app.Prompt.Prompt("Flows (separate multiple with commas)", "")
		if err != nil {
			return "", err
		}

		var flows, unknown []string
		for _, f := range strings.Split(answer, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if !known[f] {
				unknown = append(unknown, f)
			}
			flows = append(flows, f)
		}
		if len(unknown) == 0 && len(flows) > 0 {
			return strings.Join(flows, ","), nil
		}
		app.Out.Printf("Error: unknown flows: %s\n", strings.Join(unknown, ", "))
	}
}

func newPlanInfoCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "info NAME",
		Short: "Show info on a single plan",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			r, err := app.resolveRepo(ctx, client, repo, repoLookup{Required: true})
			if err != nil {
				return err
			}
			plan, err := findPlan(ctx, client, args[0], r)
			if err != nil {
				return err
			}
			return app.Out.Recursive(plan)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func newPlanListCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists plans",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			r, err := app.resolveRepo(ctx, client, repo, repoLookup{})
			if err != nil {
				return err
			}

			res, err := client.ListPlans(ctx, repoFilter(r))
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Results))
			for _, p := range res.Results {
				rows = append(rows, planRow(p))
			}
			app.Out.Print(planTable, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

type runOptions struct {
	repo   string
	branch string
	commit string
	org    string
}

func newPlanRunCommand(app *App) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Runs a plan on a branch",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), app, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.repo, "repo", "", repoFlagHelp)
	cmd.Flags().StringVar(&opts.branch, "branch", "", "Branch to build (defaults to the current local branch)")
	cmd.Flags().StringVar(&opts.commit, "commit", "", "Commit SHA to build (defaults to the head of the branch)")
	cmd.Flags().StringVar(&opts.org, "org", "", "Org to build against (defaults to the plan's org)")
	return cmd
}

// runPlan resolves plan, org, branch and commit in that order and queues
// a build. Any failed step aborts the run; nothing is rolled back.
func runPlan(ctx context.Context, app *App, name string, opts runOptions) error {
	client, err := app.Client(ctx)
	if err != nil {
		return err
	}
	repo, err := app.resolveRepo(ctx, client, opts.repo, repoLookup{Required: true})
	if err != nil {
		return err
	}

	plan, err := findPlan(ctx, client, name, repo)
	if err != nil {
		return err
	}

	orgName := opts.org
	if orgName == "" {
		orgName = plan.Org
	}
	orgs, err := client.ListOrgs(ctx, api.Filter{"name": orgName, "repo": itoa(repo.ID)})
	if err != nil {
		return err
	}
	org, err := singleOrNotFound(orgs, "Org", orgName, "Use metaci org list to see a list of available org names")
	if err != nil {
		return err
	}

	branchName, err := app.runBranch(opts.branch)
	if err != nil {
		return err
	}
	branch, err := ensureBranch(ctx, app, client, repo, branchName)
	if err != nil {
		return err
	}

	commit := opts.commit
	if commit == "" {
		if commit, err = app.headCommit(ctx, repo, branchName); err != nil {
			return err
		}
	}

	build, err := client.CreateBuild(ctx, &models.BuildRequest{
		RepoID:   repo.ID,
		PlanID:   plan.ID,
		BranchID: branch.ID,
		OrgID:    org.ID,
		Commit:   commit,
	})
	if err != nil {
		return err
	}

	app.Logger.Debug().
		Int("build_id", build.ID).
		Str("plan", plan.Name).
		Str("branch", branchName).
		Str("commit", commit).
		Msg("Build created")

	app.Out.Printf("Build #%d queued: plan %s on %s at commit %s with org %s\n", build.ID, plan.Name, branchName, commit, org.Name)
	if url, err := app.siteURL(ctx, "/builds/%d", build.ID); err == nil {
		app.Out.Printf("View the build at %s\n", url)
	}
	return nil
}

// runBranch picks the branch to build: the flag, then the current local
// branch
func (a *App) runBranch(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	proj, err := a.Project()
	if err != nil {
		return "", err
	}
	if proj != nil && proj.Branch != "" {
		return proj.Branch, nil
	}
	return "", usageErrorf("No branch specified.  Use --branch or run from a local git repository with a branch checked out.")
}

func ensureBranch(ctx context.Context, app *App, client MetaCI, repo *models.Repository, name string) (*models.Branch, error) {
	res, err := client.ListBranches(ctx, api.Filter{"name": name, "repo": itoa(repo.ID)})
	if err != nil {
		return nil, err
	}
	if len(res.Results) > 0 {
		return &res.Results[0], nil
	}

	branch, err := client.CreateBranch(ctx, &models.Branch{Name: name, RepoID: repo.ID})
	if err != nil {
		return nil, err
	}
	app.Out.Printf("Created branch %s in MetaCI\n", name)
	return branch, nil
}

// headCommit resolves the head of branch on the repository's source host
func (a *App) headCommit(ctx context.Context, repo *models.Repository, branch string) (string, error) {
	kc, err := a.Keychain()
	if err != nil {
		return "", err
	}
	github, err := kc.GetService(ctx, "github")
	var notConfigured keychain.ServiceNotConfiguredError
	if errors.As(err, &notConfigured) {
		github = keychain.ServiceConfig{}
	} else if err != nil {
		return "", err
	}

	repoURL := repo.URL
	if repoURL == "" {
		repoURL = fmt.Sprintf("%s/%s/%s", a.Config.GitHub.BaseURL, repo.Owner, repo.Name)
	}
	return a.NewResolver(github).HeadCommit(ctx, repoURL, branch)
}

func newPlanBrowserCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "browser NAME",
		Short: "Opens the plan on the MetaCI site in a browser tab",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			plan, err := findPlan(ctx, client, args[0], nil)
			if err != nil {
				return err
			}
			url, err := app.siteURL(ctx, "/plans/%d", plan.ID)
			if err != nil {
				return err
			}
			return app.Browse(url)
		},
	}
}

func newPlanRepoAddCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "repo_add NAME",
		Short: "Connects a plan to a repository",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			plan, err := findPlan(ctx, client, args[0], nil)
			if err != nil {
				return err
			}
			r, err := app.resolveRepo(ctx, client, repo, repoLookup{Required: true})
			if err != nil {
				return err
			}

			existing, err := client.ListPlanRepos(ctx, api.Filter{"plan": itoa(plan.ID), "repo": itoa(r.ID)})
			if err != nil {
				return err
			}
			if len(existing.Results) > 0 {
				return fmt.Errorf("Plan %s is already connected to repository %s", plan.Name, r.FullName())
			}

			if _, err := client.CreatePlanRepo(ctx, plan.ID, r.ID); err != nil {
				return err
			}
			app.Out.Printf("Plan %s is now connected to repository %s\n", plan.Name, r.FullName())
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func newPlanRepoListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "repo_list NAME",
		Short: "Lists repositories connected to a plan",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			plan, err := findPlan(ctx, client, args[0], nil)
			if err != nil {
				return err
			}

			res, err := client.ListPlanRepos(ctx, api.Filter{"plan": itoa(plan.ID)})
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Results))
			for _, pr := range res.Results {
				var owner, name string
				if pr.Repo != nil {
					owner, name = pr.Repo.Owner, pr.Repo.Name
				}
				rows = append(rows, []string{itoa(pr.ID), owner, name})
			}
			app.Out.Print(planRepoTable, rows)
			return nil
		},
	}
}
