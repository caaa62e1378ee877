package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/middleware"
	"gitlab.com/timkado/api/daisi-feed-client/internal/bootstrap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var shown reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// reportedError marks a failure the notifier already printed.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

type globalOptions struct {
	configFile string
	jsonOutput bool
	quiet      bool
}

// commandFunc runs one command against a fully wired client.
type commandFunc func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "feedctl",
		Short:         "Command-line client for the social feed API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default ./feedctl.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress success messages")

	cmd.AddCommand(newRegisterCommand(opts))
	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newMeCommand(opts))
	cmd.AddCommand(newUserCommand(opts))
	cmd.AddCommand(newFeedCommand(opts))
	cmd.AddCommand(newPostsCommand(opts))
	cmd.AddCommand(newCommentsCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	return cmd
}

func (g *globalOptions) settings(cmd *cobra.Command, daemon bool) bootstrap.Settings {
	return bootstrap.Settings{
		ConfigFile: g.configFile,
		Daemon:     daemon,
		Out:        cmd.OutOrStdout(),
		Err:        cmd.ErrOrStderr(),
		Quiet:      g.quiet || g.jsonOutput,
	}
}

func (g *globalOptions) renderer(app *bootstrap.App, out io.Writer) *renderer {
	return &renderer{out: out, json: g.jsonOutput, userID: app.Sessions().UserID()}
}

// run wires the client, restores the stored session and calls fn with a
// context tagged for the operation.
func (g *globalOptions) run(operation string, fn commandFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app, cleanup, err := bootstrap.InitializeApp(ctx, g.settings(cmd, false))
		if err != nil {
			return fmt.Errorf("failed to initialize client: %w", err)
		}
		defer cleanup()

		if _, err := app.Auth().Restore(ctx); err != nil {
			app.Logger().Warn(ctx, "Failed to restore stored session", "error", err.Error())
		}
		ctx = middleware.CommandContext(ctx, operation, app.Sessions().UserID())

		failuresBefore := app.Notifier().Failures()
		if err := fn(ctx, app, cmd.OutOrStdout(), args); err != nil {
			if app.Notifier().Failures() > failuresBefore {
				return reportedError{err: err}
			}
			return err
		}
		return nil
	}
}
