package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/daisi-feed-client/internal/bootstrap"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/contextkeys"
)

func newServeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the long-lived client: health, readiness, metrics and cache invalidation listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "app-main")

			app, cleanup, err := bootstrap.InitializeApp(ctx, g.settings(cmd, true))
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer cleanup()

			if err := app.Run(ctx); err != nil {
				return fmt.Errorf("application run failed: %w", err)
			}
			return nil
		},
	}
}
