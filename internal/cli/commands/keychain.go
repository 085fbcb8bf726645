package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jlantz/metaci-cli/internal/cli/output"
	"github.com/jlantz/metaci-cli/internal/keychain"
)

var keychainTable = output.NewTable(
	output.Column{Header: "Kind", Width: 8},
	output.Column{Header: "Name"},
)

func newKeychainCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keychain",
		Short: "Manage the local keychain of orgs and services",
	}
	cmd.AddCommand(newKeychainListCommand(app))
	cmd.AddCommand(newKeychainOrgImportCommand(app))
	cmd.AddCommand(newKeychainServiceImportCommand(app))
	cmd.AddCommand(newKeychainOrgRemoveCommand(app))
	cmd.AddCommand(newKeychainServiceRemoveCommand(app))
	return cmd
}

func newKeychainListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists orgs and services in the local keychain",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kc, err := app.Keychain()
			if err != nil {
				return err
			}
			orgs, err := kc.ListOrgs(ctx)
			if err != nil {
				return err
			}
			services, err := kc.ListServices(ctx)
			if err != nil {
				return err
			}
			def, err := kc.DefaultOrg(ctx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(orgs)+len(services))
			for _, o := range orgs {
				if def != nil && def.Name == o {
					o += " (default)"
				}
				rows = append(rows, []string{"org", o})
			}
			for _, s := range services {
				rows = append(rows, []string{"service", s})
			}
			app.Out.Print(keychainTable, rows)
			return nil
		},
	}
}

// readConfigFile decodes a JSON object from path
func readConfigFile(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, usageErrorf("--file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg := map[string]interface{}{}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s must contain a JSON object: %w", path, err)
	}
	return cfg, nil
}

func newKeychainOrgImportCommand(app *App) *cobra.Command {
	var file string
	var scratch, isDefault bool

	cmd := &cobra.Command{
		Use:   "org-import NAME",
		Short: "Stores an org config read from a JSON file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfigFile(file)
			if err != nil {
				return err
			}
			kc, err := app.Keychain()
			if err != nil {
				return err
			}
			if err := kc.SetOrg(cmd.Context(), &keychain.OrgConfig{
				Name:    args[0],
				Scratch: scratch,
				Default: isDefault,
				Config:  cfg,
			}); err != nil {
				return err
			}
			app.Out.Printf("Org %s saved to the local keychain\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON file holding the org config")
	cmd.Flags().BoolVar(&scratch, "scratch", false, "The org is a scratch org")
	cmd.Flags().BoolVar(&isDefault, "default", false, "Make this the default org")
	return cmd
}

func newKeychainServiceImportCommand(app *App) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "service-import NAME",
		Short: "Stores a service config read from a JSON file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == keychain.SiteService {
				return usageErrorf("use metaci site connect to configure the %s service", keychain.SiteService)
			}
			cfg, err := readConfigFile(file)
			if err != nil {
				return err
			}
			kc, err := app.Keychain()
			if err != nil {
				return err
			}
			if err := kc.SetService(cmd.Context(), args[0], keychain.ServiceConfig(cfg)); err != nil {
				return err
			}
			app.Out.Printf("Service %s saved to the local keychain\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON file holding the service config")
	return cmd
}

func newKeychainOrgRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "org-remove NAME",
		Short: "Removes an org config from the local keychain",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kc, err := app.Keychain()
			if err != nil {
				return err
			}
			if err := kc.DeleteOrg(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Out.Printf("Org %s removed from the local keychain\n", args[0])
			return nil
		},
	}
}

func newKeychainServiceRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "service-remove NAME",
		Short: "Removes a service config from the local keychain",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kc, err := app.Keychain()
			if err != nil {
				return err
			}
			if err := kc.DeleteService(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.Out.Printf("Service %s removed from the local keychain\n", args[0])
			return nil
		},
	}
}
