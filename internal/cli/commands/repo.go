package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jlantz/metaci-cli/internal/api"
	"github.com/jlantz/metaci-cli/internal/cli/output"
	"github.com/jlantz/metaci-cli/pkg/models"
)

var repoTable = output.NewTable(
	output.Column{Header: "#", Width: 3},
	output.Column{Header: "Owner", Width: 20, Truncate: true},
	output.Column{Header: "Name", Width: 20, Truncate: true},
	output.Column{Header: "Public?", Width: 7},
	output.Column{Header: "Repo URL"},
)

func newRepoCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage repositories",
	}
	cmd.AddCommand(newRepoAddCommand(app))
	cmd.AddCommand(newRepoInfoCommand(app))
	cmd.AddCommand(newRepoListCommand(app))
	cmd.AddCommand(newRepoBrowserCommand(app))
	cmd.AddCommand(newRepoPlansCommand(app))
	return cmd
}

func newRepoAddCommand(app *App) *cobra.Command {
	var repo, url string
	var public bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a MetaCI repository from a local git repository",
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

			var owner, name string
			if repo != "" {
				if owner, name, err = ParseRepoQualifier(repo); err != nil {
					return err
				}
			} else {
				owner, name = proj.RepoOwner, proj.RepoName
			}

			if owner == "" || name == "" {
				app.Out.Println()
				app.Out.Println("Enter a Github repository owner and name.  Example: for the repository https://github.com/OwnerName/RepoName, the owner is OwnerName and the repo name is RepoName.  Repository owner can be either a Github username or a Github organization")
				if owner, err = app.Prompt.Prompt("Owner", ""); err != nil {
					return err
				}
				if name, err = app.Prompt.Prompt("Name", ""); err != nil {
					return err
				}
			}

			if err := checkExistingRepo(ctx, client, owner, name); err != nil {
				return err
			}

			if url == "" {
				if url, err = app.Prompt.Prompt("Repo URL", fmt.Sprintf("%s/%s/%s", app.Config.GitHub.BaseURL, owner, name)); err != nil {
					return err
				}
			}

			if !cmd.Flags().Changed("public") {
				app.Out.Heading("Public or Private?")
				app.Out.Println("On a repository set to public, all public plans and builds of those plans are visible to anonymous users.  Private repository plans and builds are only visible to logged in users with the is_staff role granted by an admin.")
				if public, err = app.Prompt.Confirm("Public?", false); err != nil {
					return err
				}
			}

			created, err := client.CreateRepo(ctx, &models.Repository{
				Owner:  owner,
				Name:   name,
				URL:    url,
				Public: public,
			})
			if err != nil {
				return err
			}

			app.Out.Println()
			app.Out.Printf("Repository %s/%s was successfully created with the following config\n", owner, name)
			return app.Out.Recursive(created)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	cmd.Flags().StringVar(&url, "url", "", "Specify the repo base url instead of prompting")
	cmd.Flags().BoolVar(&public, "public", false, "Should this repository's builds and plans be visible to anonymous users?")
	return cmd
}

func checkExistingRepo(ctx context.Context, client MetaCI, owner, name string) error {
	existing, err := findRepo(ctx, client, owner, name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("A MetaCI repository named %s/%s already exists", owner, name)
	}
	return nil
}

func newRepoInfoCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show info on a single repo",
		Args:  noArgs,
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
			return app.Out.Recursive(r)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func newRepoListCommand(app *App) *cobra.Command {
	var owner, repo string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists repositories",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}

			filter := api.Filter{"owner": owner}
			if repo != "" {
				o, n, err := ParseRepoQualifier(repo)
				if err != nil {
					return err
				}
				filter["owner"], filter["name"] = o, n
			}

			res, err := client.ListRepos(ctx, filter)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Results))
			for _, r := range res.Results {
				rows = append(rows, []string{itoa(r.ID), r.Owner, r.Name, boolString(r.Public), r.URL})
			}
			app.Out.Print(repoTable, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "List all repositories with a given owner organization or username")
	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func newRepoBrowserCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "browser",
		Short: "Opens the repo on the MetaCI site in a browser tab",
		Args:  noArgs,
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
			url, err := app.siteURL(ctx, "/repos/%s/%s", r.Owner, r.Name)
			if err != nil {
				return err
			}
			return app.Browse(url)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func newRepoPlansCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Lists plans connected to this repository",
		Args:  noArgs,
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

			res, err := client.ListPlanRepos(ctx, api.Filter{"repo": itoa(r.ID)})
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Results))
			for _, pr := range res.Results {
				if pr.Plan == nil {
					continue
				}
				plan, err := client.GetPlan(ctx, pr.Plan.ID)
				if err != nil {
					return err
				}
				rows = append(rows, planRow(*plan))
			}
			app.Out.Print(planTable, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}
