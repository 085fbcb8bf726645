package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jlantz/metaci-cli/internal/api"
	"github.com/jlantz/metaci-cli/internal/cli/output"
	"github.com/jlantz/metaci-cli/pkg/models"
)

var buildTable = output.NewTable(
	output.Column{Header: "#", Width: 5, Right: true},
	output.Column{Header: "Status", Width: 8, Truncate: true},
	output.Column{Header: "Plan", Width: 24, Truncate: true},
	output.Column{Header: "Branch", Width: 24, Truncate: true},
	output.Column{Header: "Commit"},
)

func newBuildCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Inspect builds",
	}
	cmd.AddCommand(newBuildListCommand(app))
	cmd.AddCommand(newBuildInfoCommand(app))
	cmd.AddCommand(newBuildBrowserCommand(app))
	return cmd
}

func newBuildListCommand(app *App) *cobra.Command {
	var repo, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists builds",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if status != "" && !validStatus(status) {
				return usageErrorf("invalid --status %q, options: %s", status, statusOptions())
			}

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}

			r, err := app.resolveRepo(ctx, client, repo, repoLookup{})
			if err != nil {
				return err
			}
			filter := repoFilter(r)
			filter["status"] = status

			res, err := client.ListBuilds(ctx, filter)
			if err != nil {
				return err
			}

			app.Out.Println(buildTable.Header())
			for _, b := range res.Results {
				app.Out.Println(app.Out.ColorStatus(string(b.Status), buildRow(b)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", repoFlagHelp)
	cmd.Flags().StringVar(&status, "status", "", "Filter by build status, options: "+statusOptions())
	return cmd
}

func buildRow(b models.Build) string {
	var plan, branch string
	if b.Plan != nil {
		plan = b.Plan.Name
	}
	if b.Branch != nil {
		branch = b.Branch.Name
	}
	return buildTable.Row(itoa(b.ID), string(b.Status), plan, branch, b.Commit)
}

func validStatus(s string) bool {
	for _, st := range models.BuildStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

func statusOptions() string {
	names := make([]string, len(models.BuildStatuses))
	for i, st := range models.BuildStatuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

func newBuildInfoCommand(app *App) *cobra.Command {
	var showLog bool

	cmd := &cobra.Command{
		Use:   "info BUILD_ID",
		Short: "Show info on a single build",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID("BUILD_ID", args[0])
			if err != nil {
				return err
			}
			client, err := app.Client(ctx)
			if err != nil {
				return err
			}

			build, err := client.GetBuild(ctx, id)
			if err != nil {
				return err
			}

			if showLog {
				app.Out.Println(build.Log)
				return nil
			}

			// The log is only shown on request
			build.Log = ""
			return app.Out.Recursive(build)
		},
	}

	cmd.Flags().BoolVar(&showLog, "log", false, "Print the build log instead of the build details")
	return cmd
}

func newBuildBrowserCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "browser BUILD_ID",
		Short: "Opens the build on the MetaCI site in a browser tab",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID("BUILD_ID", args[0])
			if err != nil {
				return err
			}
			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			if _, err := client.GetBuild(ctx, id); err != nil {
				return err
			}

			url, err := app.siteURL(ctx, "/builds/%d", id)
			if err != nil {
				return err
			}
			return app.Browse(url)
		},
	}
}

// singleOrNotFound returns the first result or a not-found error naming id
func singleOrNotFound[T any](page *models.Page[T], resource, id, hint string) (*T, error) {
	if page == nil || len(page.Results) == 0 {
		return nil, &api.NotFoundError{Resource: resource, Identifier: id, Hint: hint}
	}
	return &page.Results[0], nil
}
