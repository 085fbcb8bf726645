package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jlantz/metaci-cli/internal/deploy"
	"github.com/jlantz/metaci-cli/internal/heroku"
	"github.com/jlantz/metaci-cli/internal/keychain"
)

var errAborted = errors.New("Aborted!")

const hiddenInputNote = "NOTE: For security purposes, your input will be hidden.  Paste your %s and hit Enter to continue."

func newSiteCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage the connected MetaCI site",
	}
	cmd.AddCommand(newSiteAddCommand(app))
	cmd.AddCommand(newSiteConnectCommand(app))
	cmd.AddCommand(newSiteInfoCommand(app))
	cmd.AddCommand(newSiteShapeCommand(app))
	cmd.AddCommand(newSiteBrowserCommand(app))
	return cmd
}

// verifyOverwrite asks before replacing an already connected site
func verifyOverwrite(ctx context.Context, app *App) error {
	kc, err := app.Keychain()
	if err != nil {
		return err
	}
	site, err := kc.GetSite(ctx)
	var notConfigured keychain.ServiceNotConfiguredError
	if errors.As(err, &notConfigured) {
		return nil
	}
	if err != nil {
		return err
	}

	app.Out.Printf("Site %s is currently configured.  Connecting to a new site will delete the local configuration for the current site.  You can always use metaci site connect to reconnect to an existing site.\n", site.URL)
	ok, err := app.Prompt.Confirm("Are you sure you want to connect to a new site?", false)
	if err != nil {
		return err
	}
	if !ok {
		return errAborted
	}
	return nil
}

// herokuClient builds a Heroku client from the configured token, the
// Heroku CLI, or a prompt, in that order
func herokuClient(app *App) (Heroku, error) {
	token := app.HerokuToken()
	if token == "" {
		app.Out.Heading("Heroku API Token")
		app.Out.Println("Enter your Heroku API Token.  If you do not have a token, go to the Account page in Heroku and use the API Token section: https://dashboard.heroku.com/account")
		app.Out.Warn(fmt.Sprintf(hiddenInputNote, "API Token"))
		var err error
		if token, err = app.Prompt.Hidden("API Token"); err != nil {
			return nil, err
		}
	}
	return app.NewHeroku(token), nil
}

// promptShape resolves the shape and worker count from flags or prompts
func promptShape(app *App, shapeFlag string, workers int) (deploy.Shape, int, error) {
	var shape deploy.Shape
	if shapeFlag != "" {
		s, err := deploy.ParseShape(shapeFlag)
		if err != nil {
			return "", 0, &UsageError{Message: err.Error()}
		}
		shape = s
	} else {
		app.Out.Heading("Heroku App Shape")
		app.Out.Println("Select the Heroku app shape you want to deploy.  Available options:")
		for _, s := range deploy.Shapes {
			app.Out.Printf("  - %s: %s\n", s, deploy.ShapeDescriptions[s])
		}
		answer, err := app.Prompt.Choice("App Shape", deploy.ShapeNames(), string(deploy.ShapeDev))
		if err != nil {
			return "", 0, err
		}
		shape = deploy.Shape(answer)
	}

	if shape == deploy.ShapeStaging && workers <= 0 {
		app.Out.Heading("Number of Build Workers")
		app.Out.Println("Enter the number of build worker dynos that should always be running.  This is your build concurrency.")
		app.Out.Warn("NOTE: The staging app shape uses standard-1x dynos which are paid dynos.  Increasing this number will increase the number of paid dynos that are run.")
		n, err := app.Prompt.Int("Number of Workers", 1)
		if err != nil {
			return "", 0, err
		}
		workers = n
	}
	return shape, workers, nil
}

func applyShape(ctx context.Context, app *App, client Heroku, appName string, shape deploy.Shape, workers int) error {
	plan, err := deploy.PlanFor(shape, workers)
	if err != nil {
		return err
	}
	app.Out.Warn(fmt.Sprintf("Setting up %s app shape with %s Heroku dynos", shape, plan.Size))
	app.Out.Warn("- Set scale to " + plan.Summary())

	if _, err := deploy.ApplyShape(ctx, client, appName, shape, workers); err != nil {
		return err
	}
	return nil
}

type siteAddOptions struct {
	name  string
	shape string
}

func newSiteAddCommand(app *App) *cobra.Command {
	var opts siteAddOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Deploy a new Heroku app running MetaCI",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addSite(cmd.Context(), app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Specify an app name instead of prompting for it")
	cmd.Flags().StringVar(&opts.shape, "shape", "", "Specify an app shape instead of prompting for it ("+strings.Join(deploy.ShapeNames(), ", ")+")")
	return cmd
}

func addSite(ctx context.Context, app *App, opts siteAddOptions) error {
	if _, err := app.RequireProject(); err != nil {
		return err
	}
	if err := verifyOverwrite(ctx, app); err != nil {
		return err
	}

	client, err := herokuClient(app)
	if err != nil {
		return err
	}

	name := opts.name
	if name == "" {
		app.Out.Heading("Heroku App Name")
		app.Out.Println("Specify the name of the Heroku app you want to create.")
		if name, err = app.Prompt.Prompt("App Name", ""); err != nil {
			return err
		}
	}

	shape, workers, err := promptShape(app, opts.shape, 0)
	if err != nil {
		return err
	}

	env, err := collectSiteEnv(ctx, app, name, shape)
	if err != nil {
		return err
	}

	setup, err := client.CreateAppSetup(ctx, &heroku.AppSetupRequest{
		App:        heroku.AppRef{Name: name},
		SourceBlob: heroku.SourceBlob{URL: app.Config.Heroku.SourceURL},
		Overrides:  heroku.SetupOverrides{Env: env},
	})
	if err != nil {
		return err
	}

	app.Out.Println()
	app.Out.Printf("Status: %s\n", setup.Status)
	app.Out.Warn("Creating app:")

	poller := deploy.NewPoller(client, app.Config.Heroku.PollInterval, app.Logger)
	poller.OnBuildStarted = func(ctx context.Context, build *heroku.BuildRef) {
		app.Out.Println()
		app.Out.Warn(fmt.Sprintf("Build %s Started:", build.ID))
		if build.OutputStreamURL == "" {
			return
		}
		if err := client.StreamOutput(ctx, build.OutputStreamURL, app.Out.Writer()); err != nil {
			app.Logger.Warn().Err(err).Str("build_id", build.ID).Msg("Build output stream ended early")
		}
	}
	poller.OnTick = func(int) {
		app.Out.Printf(".")
	}

	final, err := poller.Wait(ctx, setup.ID)
	if err != nil {
		return err
	}
	app.Out.Println()

	switch final.Status {
	case heroku.SetupSucceeded:
		app.Out.Success("Heroku app creation succeeded!")
		if err := app.Out.Recursive(final); err != nil {
			return err
		}
	case heroku.SetupFailed:
		app.Out.Failure("Heroku app creation failed")
		if err := app.Out.Recursive(final); err != nil {
			return err
		}
		if final.Build != nil {
			app.Out.Println()
			app.Out.Println("Build Info:")
			build, err := client.GetBuild(ctx, final.App.ID, final.Build.ID)
			if err != nil {
				return err
			}
			if err := app.Out.Recursive(build); err != nil {
				return err
			}
		}
		return fmt.Errorf("Heroku app creation failed: %s", final.FailureMessage)
	default:
		return fmt.Errorf("received an unknown status %q from the Heroku app-setups API", final.Status)
	}

	appName := final.App.Name
	if appName == "" {
		appName = name
	}

	app.Out.Heading("Applying App Shape")
	if err := applyShape(ctx, app, client, appName, shape, workers); err != nil {
		return err
	}

	siteURL := env["SITE_URL"]
	app.Out.Heading("Admin API Token")
	app.Out.Println("Create an admin user and an API token for it on the new site, then paste the token here:")
	app.Out.Printf("  heroku run -a %s python manage.py autoadminuser %s\n", appName, env["FROM_EMAIL"])
	app.Out.Printf("  heroku run -a %s python manage.py usertoken admin\n", appName)
	app.Out.Printf("  heroku run -a %s python manage.py metaci_scheduled_jobs\n", appName)
	app.Out.Warn(fmt.Sprintf(hiddenInputNote, "API Token"))
	token, err := app.Prompt.Hidden("API Token")
	if err != nil {
		return err
	}

	kc, err := app.Keychain()
	if err != nil {
		return err
	}
	if err := kc.SetSite(ctx, &keychain.Site{URL: siteURL, Token: token, AppName: appName}); err != nil {
		return err
	}
	app.Out.Success(fmt.Sprintf("Successfully connected metaci to the new site at %s", siteURL))
	return nil
}

// collectSiteEnv gathers the config vars the new app is created with
func collectSiteEnv(ctx context.Context, app *App, name string, shape deploy.Shape) (map[string]string, error) {
	env := map[string]string{}
	var err error

	if shape == deploy.ShapeProd {
		app.Out.Heading("Hirefire Token")
		app.Out.Println("The prod app shape requires the use of Hirefire.io to scale the build worker dynos.  You will need to have an account on Hirefire.io and get the API token from your account.")
		if env["HIREFIRE_TOKEN"], err = app.Prompt.Prompt("Hirefire API Token", ""); err != nil {
			return nil, err
		}
	}

	app.Out.Heading("Salesforce DX Configuration")
	app.Out.Println("The following prompts collect information from your local Salesforce DX configuration to use to configure MetaCI to use sfdx")
	app.Out.Println()
	app.Out.Println("MetaCI uses JWT to connect to your Salesforce DX devhub.  Please enter the path to your local private key file.")

	defaultKey := ""
	if home, err := os.UserHomeDir(); err == nil {
		defaultKey = filepath.Join(home, ".ssh", "sfdx_server.key")
	}
	keyPath, err := app.Prompt.Prompt("Path to private key", defaultKey)
	if err != nil {
		return nil, err
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	env["SFDX_HUB_KEY"] = string(key)

	app.Out.Println()
	app.Out.Println("Enter the Connected App Client ID you used for the JWT authentication flow to the Salesforce DX devhub.")
	app.Out.Warn(fmt.Sprintf(hiddenInputNote, "Client ID"))
	if env["SFDX_CLIENT_ID"], err = app.Prompt.Hidden("Client ID"); err != nil {
		return nil, err
	}

	if devhub := app.DevHubUsername(); devhub != "" {
		env["SFDX_HUB_USERNAME"] = devhub
	} else {
		app.Out.Println()
		app.Out.Println("Enter the username MetaCI should use for JWT authentication to the Salesforce DX devhub.")
		if env["SFDX_HUB_USERNAME"], err = app.Prompt.Prompt("Username", ""); err != nil {
			return nil, err
		}
	}

	kc, err := app.Keychain()
	if err != nil {
		return nil, err
	}
	connectedApp, err := optionalService(ctx, kc, "connected_app")
	if err != nil {
		return nil, err
	}
	setIfPresent(env, "CONNECTED_APP_CALLBACK_URL", connectedApp.Get("callback_url"))
	setIfPresent(env, "CONNECTED_APP_CLIENT_ID", connectedApp.Get("client_id"))
	setIfPresent(env, "CONNECTED_APP_CLIENT_SECRET", connectedApp.Get("client_secret"))

	env["SITE_URL"] = fmt.Sprintf("https://%s.herokuapp.com", name)

	github, err := optionalService(ctx, kc, "github")
	if err != nil {
		return nil, err
	}
	setIfPresent(env, "GITHUB_USERNAME", github.Get("username"))
	setIfPresent(env, "GITHUB_PASSWORD", github.Get("password"))
	setIfPresent(env, "FROM_EMAIL", github.Get("email"))
	env["GITHUB_WEBHOOK_BASE_URL"] = env["SITE_URL"] + "/webhook/github"

	return env, nil
}

func optionalService(ctx context.Context, kc *keychain.Keychain, name string) (keychain.ServiceConfig, error) {
	cfg, err := kc.GetService(ctx, name)
	var notConfigured keychain.ServiceNotConfiguredError
	if errors.As(err, &notConfigured) {
		return keychain.ServiceConfig{}, nil
	}
	return cfg, err
}

func setIfPresent(env map[string]string, key, value string) {
	if value != "" {
		env[key] = value
	}
}

type siteConnectOptions struct {
	appName string
	url     string
	token   string
}

func newSiteConnectCommand(app *App) *cobra.Command {
	var opts siteConnectOptions

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connects to an existing MetaCI instance",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return connectSite(cmd.Context(), app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.appName, "app-name", "", "Provide the Heroku app name to connect to instead of prompting")
	cmd.Flags().StringVar(&opts.url, "url", "", "Provide the site base URL instead of prompting")
	cmd.Flags().StringVar(&opts.token, "token", "", "Provide the API token instead of prompting")
	return cmd
}

func connectSite(ctx context.Context, app *App, opts siteConnectOptions) error {
	if err := verifyOverwrite(ctx, app); err != nil {
		return err
	}

	var err error
	appName, url, token := opts.appName, opts.url, opts.token

	if appName == "" && url == "" {
		app.Out.Heading("Heroku App?")
		app.Out.Println("Are you connecting to an instance of MetaCI running on Heroku?")
		onHeroku, err := app.Prompt.Confirm("Heroku App?", true)
		if err != nil {
			return err
		}
		if onHeroku {
			if appName, err = app.Prompt.Prompt("Heroku App Name", ""); err != nil {
				return err
			}
		}
	}

	if url == "" {
		var def string
		if appName != "" {
			def = fmt.Sprintf("https://%s.herokuapp.com", appName)
		}
		if url, err = app.Prompt.Prompt("Site Base URL", def); err != nil {
			return err
		}
	}
	url = strings.TrimRight(url, "/")

	if token == "" {
		app.Out.Println("Contact your MetaCI administrator to get an API Token.  Tokens can be created by administrators in the admin panel under Auth Tokens -> Tokens.")
		app.Out.Warn(fmt.Sprintf(hiddenInputNote, "API Token"))
		if token, err = app.Prompt.Hidden("API Token"); err != nil {
			return err
		}
	}

	site := &keychain.Site{URL: url, Token: token, AppName: appName}
	if _, err := app.NewClient(site).Schema(ctx); err != nil {
		return err
	}

	kc, err := app.Keychain()
	if err != nil {
		return err
	}
	if err := kc.SetSite(ctx, site); err != nil {
		return err
	}
	app.Out.Success(fmt.Sprintf("Connected to MetaCI site at %s", url))
	return nil
}

func newSiteInfoCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Displays info about the current MetaCI site",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := app.Site(cmd.Context())
			if err != nil {
				return err
			}
			masked := *site
			masked.Token = maskToken(site.Token)
			return app.Out.Recursive(masked.Config())
		},
	}
}

// maskToken keeps only the last four characters visible
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

func newSiteShapeCommand(app *App) *cobra.Command {
	var shapeFlag string
	var workers int

	cmd := &cobra.Command{
		Use:   "shape",
		Short: "Applies an app shape to the current Heroku app",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			site, err := app.Site(ctx)
			if err != nil {
				return err
			}
			if site.AppName == "" {
				return errors.New("The current site is not configured as a Heroku App.  You can only run metaci site shape against MetaCI running on Heroku.  If your MetaCI site is running on Heroku, use metaci site connect to re-connect to the site.")
			}

			client, err := herokuClient(app)
			if err != nil {
				return err
			}
			shape, n, err := promptShape(app, shapeFlag, workers)
			if err != nil {
				return err
			}
			return applyShape(ctx, app, client, site.AppName, shape, n)
		},
	}

	cmd.Flags().StringVar(&shapeFlag, "shape", "", "Specify an app shape instead of prompting for it ("+strings.Join(deploy.ShapeNames(), ", ")+")")
	cmd.Flags().IntVar(&workers, "num-workers", 0, "Specify the number of workers for the staging app shape instead of prompting")
	return cmd
}

func newSiteBrowserCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "browser",
		Short: "Opens the MetaCI site in a browser tab",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := app.Site(cmd.Context())
			if err != nil {
				return err
			}
			return app.Browse(site.URL)
		},
	}
}
