package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jlantz/metaci-cli/pkg/config"
)

// Version is the CLI version, overridable at link time
var Version = "0.1.3"

type rootOptions struct {
	configFile string
	debug      bool
}

// NewRootCommand builds the command tree. When app has no Config yet it is
// wired from the --config file and environment before any command runs.
func NewRootCommand(app *App) *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:   "metaci",
		Short: "metaci - command line interface to MetaCI",
		Long: `metaci is the command line interface to a MetaCI site.
It manages the repositories, plans, orgs and services a site builds with,
runs plans and inspects their builds, and deploys new MetaCI sites to Heroku.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.ErrOrStderr(), "MetaCI CLI v%s\n\n", Version)

			if app.Config == nil {
				cfg, err := config.Load(opts.configFile)
				if err != nil {
					return err
				}
				logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, opts.debug)
				*app = *NewApp(cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
			} else if opts.debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.metaci/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Message: err.Error()}
	})

	rootCmd.AddCommand(newBuildCommand(app))
	rootCmd.AddCommand(newOrgCommand(app))
	rootCmd.AddCommand(newPlanCommand(app))
	rootCmd.AddCommand(newRepoCommand(app))
	rootCmd.AddCommand(newServiceCommand(app))
	rootCmd.AddCommand(newSiteCommand(app))
	rootCmd.AddCommand(newKeychainCommand(app))

	return rootCmd
}

func newLogger(w io.Writer, level string, debug bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Run executes args against app and returns the process exit code
func Run(ctx context.Context, app *App, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if closeErr := app.Close(); closeErr != nil {
		app.Logger.Warn().Err(closeErr).Msg("Failed to close keychain")
	}
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(stderr, "Error: %s\n", err)
	code := ExitCode(err)
	if code == ExitUsage {
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.CommandPath())
	}
	return code
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := Run(ctx, &App{}, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
