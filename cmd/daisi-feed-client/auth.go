package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/daisi-feed-client/internal/bootstrap"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

const passwordEnv = "FEEDCTL_PASSWORD"

// passwordSource resolves a password from, in order, --password-stdin,
// the FEEDCTL_PASSWORD variable and --password.
type passwordSource struct {
	flag      string
	fromStdin bool
}

func (p *passwordSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.flag, "password", "", "Password (prefer --password-stdin or "+passwordEnv+")")
	cmd.Flags().BoolVar(&p.fromStdin, "password-stdin", false, "Read the password from the first line of stdin")
}

func (p *passwordSource) read(in io.Reader) (string, error) {
	if p.fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if v, ok := os.LookupEnv(passwordEnv); ok {
		return v, nil
	}
	return p.flag, nil
}

func newRegisterCommand(g *globalOptions) *cobra.Command {
	var (
		in       domain.RegisterInput
		password passwordSource
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = g.run("auth.register", func(ctx context.Context, app *bootstrap.App, out io.Writer, _ []string) error {
		pw, err := password.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		in.Password = pw
		user, err := app.Auth().Register(ctx, in)
		if err != nil {
			return err
		}
		return g.renderer(app, out).user(user)
	})
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	password.bind(cmd)
	return cmd
}

func newLoginCommand(g *globalOptions) *cobra.Command {
	var (
		in       domain.LoginInput
		password passwordSource
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential pair",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = g.run("auth.login", func(ctx context.Context, app *bootstrap.App, out io.Writer, _ []string) error {
		pw, err := password.read(cmd.InOrStdin())
		if err != nil {
			return err
		}
		in.Password = pw
		user, err := app.Auth().Login(ctx, in)
		if err != nil {
			return err
		}
		return g.renderer(app, out).user(user)
	})
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	password.bind(cmd)
	return cmd
}

func newLogoutCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credentials",
		Args:  cobra.NoArgs,
		RunE: g.run("auth.logout", func(ctx context.Context, app *bootstrap.App, _ io.Writer, _ []string) error {
			return app.Auth().Logout(ctx)
		}),
	}
}

func newMeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: g.run("auth.me", func(ctx context.Context, app *bootstrap.App, out io.Writer, _ []string) error {
			user, err := app.Auth().CurrentUser(ctx)
			if errors.Is(err, domain.ErrNotAuthenticated) {
				return errors.New("not logged in; run `feedctl login` first")
			}
			if err != nil {
				return err
			}
			return g.renderer(app, out).user(user)
		}),
	}
}

func newUserCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "user <id>",
		Short: "Show a user's public profile",
		Args:  cobra.ExactArgs(1),
		RunE: g.run("auth.user", func(ctx context.Context, app *bootstrap.App, out io.Writer, args []string) error {
			user, err := app.Auth().User(ctx, args[0])
			if err != nil {
				return err
			}
			return g.renderer(app, out).user(user)
		}),
	}
}
