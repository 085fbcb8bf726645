package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jlantz/metaci-cli/internal/api"
	"github.com/jlantz/metaci-cli/internal/cli/output"
	"github.com/jlantz/metaci-cli/internal/keychain"
	"github.com/jlantz/metaci-cli/pkg/models"
)

var serviceTable = output.NewTable(
	output.Column{Header: "#", Width: 3},
	output.Column{Header: "Name"},
)

func newServiceCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage services shared with the MetaCI site",
	}
	cmd.AddCommand(newServiceAddCommand(app))
	cmd.AddCommand(newServiceInfoCommand(app))
	cmd.AddCommand(newServiceListCommand(app))
	cmd.AddCommand(newServiceBrowserCommand(app))
	return cmd
}

func newServiceAddCommand(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a MetaCI service from a local keychain service",
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

			local, err := kc.ListServices(ctx)
			if err != nil {
				return err
			}
			remote, err := client.ListServices(ctx, nil)
			if err != nil {
				return err
			}
			existing := make(map[string]bool, len(remote.Results))
			for _, s := range remote.Results {
				existing[s.Name] = true
			}

			var available []string
			for _, s := range local {
				// the site credential never leaves this machine
				if s == keychain.SiteService || existing[s] {
					continue
				}
				available = append(available, s)
			}

			if name == "" {
				app.Out.Println("To create a MetaCI service, select one of your existing local services.  The service information from your local keychain will be transferred to the MetaCI site.  You can use metaci keychain service-import to add services to the local keychain.")
				app.Out.Println()
				app.Out.Println("Available Services: " + strings.Join(available, ", "))
				if name, err = app.Prompt.Prompt("Service", ""); err != nil {
					return err
				}
			}

			if !contains(available, name) {
				if existing[name] {
					return fmt.Errorf("Service %s already exists.  Available services are: %s", name, strings.Join(available, ", "))
				}
				return fmt.Errorf("Service %s is invalid.  Available services are: %s", name, strings.Join(available, ", "))
			}

			cfg, err := kc.GetService(ctx, name)
			if err != nil {
				return err
			}
			encoded, err := json.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode service config: %w", err)
			}

			if _, err := client.CreateService(ctx, &models.Service{Name: name, JSON: string(encoded)}); err != nil {
				return err
			}

			app.Out.Println()
			app.Out.Printf("Service %s was successfully created.  Use metaci service info %s to see the service details.\n", name, name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Specify the service name from your local keychain to create in MetaCI")
	return cmd
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func newServiceInfoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME",
		Short: "Show info on a service",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			res, err := client.ListServices(ctx, api.Filter{"name": args[0]})
			if err != nil {
				return err
			}
			service, err := singleOrNotFound(res, "Service", args[0], "")
			if err != nil {
				return err
			}
			return app.Out.Recursive(service)
		},
	}
}

func newServiceListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists services",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			res, err := client.ListServices(ctx, nil)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Results))
			for _, s := range res.Results {
				rows = append(rows, []string{itoa(s.ID), s.Name})
			}
			app.Out.Print(serviceTable, rows)
			return nil
		},
	}
}

func newServiceBrowserCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "browser NAME",
		Short: "Opens the service on the MetaCI site in a browser tab",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client(ctx)
			if err != nil {
				return err
			}
			res, err := client.ListServices(ctx, api.Filter{"name": args[0]})
			if err != nil {
				return err
			}
			service, err := singleOrNotFound(res, "Service", args[0], "Use metaci service list to see a list of available service names")
			if err != nil {
				return err
			}

			url, err := app.siteURL(ctx, "/admin/cumulusci/service/%d", service.ID)
			if err != nil {
				return err
			}
			return app.Browse(url)
		},
	}
}
