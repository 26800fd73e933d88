package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/config"
	"github.com/iliyamo/sales-tenancy/internal/database"
	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/migration"
	"github.com/iliyamo/sales-tenancy/internal/repository"
)

type backfiller interface {
	Run(ctx context.Context, opts migration.Options) (migration.Summary, error)
}

// connectFunc opens the store a run works on and returns a release func.
type connectFunc func(ctx context.Context) (backfiller, func(), error)

func connectDB(ctx context.Context) (backfiller, func(), error) {
	config.LoadDotEnv()
	db, err := database.Open(ctx, config.LoadDB())
	if err != nil {
		return nil, nil, err
	}
	return migration.New(repository.NewBackfillStore(db)), func() { _ = db.Close() }, nil
}

func newRootCmd(connect connectFunc, out io.Writer) *cobra.Command {
	var (
		opts     migration.Options
		asJSON   bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:           "backfill",
		Short:         "Assign tenants to users and their records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			zl, err := logger.New(logger.Config{Level: logLevel, Environment: "cli", ServiceName: "backfill"})
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()
			runID := uuid.NewString()
			zl = zl.With(zap.String("run_id", runID))
			ctx := logger.WithContext(cmd.Context(), zl)

			b, release, err := connect(ctx)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer release()

			sum, runErr := b.Run(ctx, opts)
			if asJSON {
				if err := writeJSON(out, runID, sum, runErr); err != nil {
					return err
				}
			} else {
				writeTable(out, sum)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Compute every change and roll it back")
	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "Log every record")
	cmd.Flags().StringVar(&opts.Email, "email", "", "Only backfill the user with this email and their records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}
