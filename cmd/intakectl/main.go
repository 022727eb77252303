package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pg "intake/internal/adapters/postgres"
	"intake/internal/config"
	approvalsvc "intake/internal/services/approvals"
	archivesvc "intake/internal/services/archive"
	"intake/internal/workers/importrunner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "intakectl",
		Short:        "Administer the intake database",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newApprovalsCmd(), newArchiveCmd())
	return root
}

// connect opens the configured database. DATABASE_URL is mandatory here.
func connect(ctx context.Context) (*pg.DB, error) {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoDatabase) {
		return nil, err
	}
	return pg.Connect(ctx, cfg.DatabaseURL)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage schema migrations"}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Migrate(cmd.Context())
		},
	}, &cobra.Command{
		Use:   "status",
		Short: "Print migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return db.MigrationStatus(cmd.Context())
		},
	})
	return cmd
}

func newApprovalsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "approvals", Short: "Manage the type-approval table"}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load a type-approval CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return err
			}

			svc := approvalsvc.New(db.TypeApprovals(), db, zap.NewNop())
			id, err := svc.EnqueueImport(ctx, filepath.Base(args[0]), payload)
			if err != nil {
				return err
			}
			rows, err := importrunner.ProcessInline(ctx, db, svc, id)
			if err != nil {
				return fmt.Errorf("import %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows (job %s)\n", rows, id)
			return nil
		},
	})
	return cmd
}

func newArchiveCmd() *cobra.Command {
	var query string
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			entries, err := archivesvc.New(db).Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tBRANCH\tCHASSIS\tBRAND\tCOMMITTED")
			for _, e := range entries {
				v := e.Record.Vehicle
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Key, e.Branch, v.ChassisNumber, v.Brand, e.CommittedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVarP(&query, "query", "q", "", "case-insensitive filter on key, branch, chassis, brand, owner or trade name")

	cmd := &cobra.Command{Use: "archive", Short: "Inspect the archive"}
	cmd.AddCommand(list)
	return cmd
}
