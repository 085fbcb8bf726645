package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jlantz/metaci-cli/internal/api"
	"github.com/jlantz/metaci-cli/internal/cli/output"
	"github.com/jlantz/metaci-cli/internal/keychain"
	"github.com/jlantz/metaci-cli/pkg/models"
)

var orgTable = output.NewTable(
	output.Column{Header: "#", Width: 5},
	output.Column{Header: "Name", Width: 24, Truncate: true},
	output.Column{Header: "Scratch", Width: 7},
	output.Column{Header: "Repo"},
)

// scratchConfigKeys are the parts of a scratch org config that make sense
// on the server; the rest is local state
var scratchConfigKeys = []string{"config_file", "config_name", "namespaced", "scratch"}

func newOrgCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage orgs builds run against",
	}
	cmd.AddCommand(newOrgAddCommand(app))
	cmd.AddCommand(newOrgInfoCommand(app))
	cmd.AddCommand(newOrgListCommand(app))
	cmd.AddCommand(newOrgBrowserCommand(app))
	return cmd
}

func newOrgAddCommand(app *App) *cobra.Command {
	var name, orgName, repo string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a MetaCI org from a local keychain org",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if _, err := app.RequireProject(); err != nil {
				return err
			}
			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			kc, err := app.Keychain()
			if err != nil {
				return err
			}

			if orgName == "" {
				if orgName, err = promptLocalOrg(ctx, app, kc); err != nil {
					return err
				}
			}

			orgConfig, err := kc.GetOrg(ctx, orgName)
			if err != nil {
				return err
			}
			if name == "" {
				name = orgName
			}

			r, err := app.resolveRepo(ctx, client, repo, repoLookup{Required: true})
			if err != nil {
				return err
			}

			name, err = checkOrgName(ctx, app, client, r.ID, name, true)
			if err != nil {
				return err
			}

			encoded, err := json.Marshal(serverOrgConfig(orgConfig))
			if err != nil {
				return fmt.Errorf("failed to encode org config: %w", err)
			}

			if _, err := client.CreateOrg(ctx, &models.Org{
				Name:    name,
				RepoID:  r.ID,
				Scratch: orgConfig.Scratch,
				JSON:    string(encoded),
			}); err != nil {
				return err
			}

			app.Out.Println()
			app.Out.Printf("Org %s was successfully created.  Use metaci org info %s to see the org details.\n", name, name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Override the org name (defaults to the keychain org name)")
	cmd.Flags().StringVar(&orgName, "org", "", "Specify the org name from your local keychain to create in MetaCI")
	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func promptLocalOrg(ctx context.Context, app *App, kc *keychain.Keychain) (string, error) {
	app.Out.Println("To create a MetaCI org, select one of your existing local orgs.  The org information from your local keychain will be transferred to the MetaCI site.  You can use metaci keychain org-import to add new orgs if needed.")
	app.Out.Println()

	names, err := kc.ListOrgs(ctx)
	if err != nil {
		return "", err
	}
	var def string
	defaultOrg, err := kc.DefaultOrg(ctx)
	if err != nil {
		return "", err
	}
	if defaultOrg != nil {
		def = defaultOrg.Name
	}

	app.Out.Println("Available Orgs: " + strings.Join(names, ", "))
	return app.Prompt.Prompt("Org", def)
}

// checkOrgName makes sure no org named name exists for the repository,
// asking for another name once before giving up
func checkOrgName(ctx context.Context, app *App, client MetaCI, repoID int, name string, retry bool) (string, error) {
	res, err := client.ListOrgs(ctx, api.Filter{"name": name, "repo": itoa(repoID)})
	if err != nil {
		return "", err
	}
	if len(res.Results) == 0 {
		return name, nil
	}
	if !retry {
		return "", fmt.Errorf("A MetaCI org named %s already exists for this repository", name)
	}

	app.Out.Printf("A MetaCI org named %s already exists for this repository.  Please select a different name\n", name)
	name, err = app.Prompt.Prompt("Org Name", "")
	if err != nil {
		return "", err
	}
	return checkOrgName(ctx, app, client, repoID, name, false)
}

func serverOrgConfig(org *keychain.OrgConfig) map[string]interface{} {
	if !org.Scratch {
		return org.Config
	}
	clean := make(map[string]interface{}, len(scratchConfigKeys))
	for _, k := range scratchConfigKeys {
		if v, ok := org.Config[k]; ok {
			clean[k] = v
		}
	}
	clean["scratch"] = true
	return clean
}

func newOrgInfoCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "info NAME",
		Short: "Show info on a single org",
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

			res, err := client.ListOrgs(ctx, api.Filter{"name": args[0], "repo": itoa(r.ID)})
			if err != nil {
				return err
			}
			org, err := singleOrNotFound(res, "Org", args[0], "")
			if err != nil {
				return err
			}
			return app.Out.Recursive(org)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func newOrgListCommand(app *App) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists orgs",
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

			res, err := client.ListOrgs(ctx, repoFilter(r))
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Results))
			for _, o := range res.Results {
				var repoName string
				if o.Repo != nil {
					repoName = o.Repo.FullName()
				}
				rows = append(rows, []string{itoa(o.ID), o.Name, boolString(o.Scratch), repoName})
			}
			app.Out.Print(orgTable, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	return cmd
}

func newOrgBrowserCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "browser NAME",
		Short: "Opens the org on the MetaCI site in a browser tab",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			res, err := client.ListOrgs(ctx, api.Filter{"name": args[0]})
			if err != nil {
				return err
			}
			org, err := singleOrNotFound(res, "Org", args[0], "Use metaci org list to see a list of available org names")
			if err != nil {
				return err
			}

			url, err := app.siteURL(ctx, "/orgs/%d", org.ID)
			if err != nil {
				return err
			}
			return app.Browse(url)
		},
	}
}
