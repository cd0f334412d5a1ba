package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/analytics"
	"github.com/clinicdesk/clinicdesk/internal/domain/export"
	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *db.Migrator) error {
				count, err := m.Up(cmd.Context())
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *db.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(*db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreBackend != "postgres" {
		return fmt.Errorf("migrations apply to the postgres backend only (STORE_BACKEND=%s)", cfg.StoreBackend)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(db.NewMigrator(pool, migrations.FS))
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}

// loadApp builds the app for one-shot commands and performs the full
// registry load they all start from.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, newLogger(cfg.Env).Level(zerolog.WarnLevel))
	if err != nil {
		return nil, err
	}
	if err := a.registry.Refresh(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return a, nil
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print analytics reports",
	}

	var cur, prev analytics.Range
	flow := &cobra.Command{
		Use:   "flow",
		Short: "Print the patient-flow bundle for a date range as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return writeFlow(cmd.OutOrStdout(), a.registry.Patients(), cur, prev)
		},
	}
	flow.Flags().StringVar(&cur.From, "from", "", "first day (YYYY-MM-DD)")
	flow.Flags().StringVar(&cur.To, "to", "", "last day (YYYY-MM-DD)")
	flow.Flags().StringVar(&prev.From, "compare-from", "", "first day of the comparison period")
	flow.Flags().StringVar(&prev.To, "compare-to", "", "last day of the comparison period")
	cmd.AddCommand(flow)

	return cmd
}

// writeFlow prints a Summary, or a Comparison when a comparison period is set.
func writeFlow(w io.Writer, patients []registry.Patient, cur, prev analytics.Range) error {
	if err := cur.Validate(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if prev.From == "" && prev.To == "" {
		return enc.Encode(analytics.Summarize(patients, cur))
	}
	if err := prev.Validate(); err != nil {
		return err
	}
	return enc.Encode(analytics.Compare(patients, cur, prev))
}

func exportCmd() *cobra.Command {
	var (
		role, format, out string
		r                 analytics.Range
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a role report as CSV or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := writeExport(a.registry.Patients(), role, format, out, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "front-office, doctor, counseling or analytics")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: generated filename)")
	cmd.Flags().StringVar(&r.From, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&r.To, "to", "", "last day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func writeExport(patients []registry.Patient, roleName, formatName, out string, r analytics.Range) (string, error) {
	role, err := export.ParseRole(roleName)
	if err != nil {
		return "", err
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return "", err
	}
	if err := r.Validate(); err != nil {
		return "", err
	}
	rep, err := export.Build(role, patients, r)
	if err != nil {
		return "", err
	}
	if out == "" {
		out = export.Filename(role, r, format)
	}

	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", out, err)
	}
	if err := export.Write(f, rep, format); err != nil {
		f.Close()
		return "", err
	}
	return out, f.Close()
}
