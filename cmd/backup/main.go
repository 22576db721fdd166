// Command backup creates a database backup from the command line,
// suitable for cron. Exit code is 0 on success, 1 on failure.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"contactops/internal/backup"
	"contactops/internal/config"
	dbpkg "contactops/internal/db"
)

func newRootCmd() *cobra.Command {
	var (
		incremental bool
		sqlOnly     bool
		jsonOnly    bool
		noCleanup   bool
	)

	cmd := &cobra.Command{
		Use:           "backup",
		Short:         "Create a contactops database backup",
		Long:          "Exports the CRM tables as SQL and/or JSON artifacts with a checksum manifest, then prunes backups past the retention window.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg := config.Load()

			if sqlOnly && jsonOnly {
				return fmt.Errorf("--sql-only and --json-only are mutually exclusive")
			}

			gdb, err := dbpkg.Connect(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := gdb.DB(); err == nil {
					sqlDB.Close()
				}
			}()

			catalog := dbpkg.NewCatalog(gdb)
			engine := backup.New(catalog, backup.Config{
				Dir:           cfg.BackupDir,
				Environment:   cfg.Environment,
				Database:      backup.Product,
				Compress:      cfg.BackupCompress,
				RetentionDays: cfg.BackupRetentionDays,
			})

			opts := backup.Options{Type: backup.TypeFull, SkipCleanup: noCleanup}
			if incremental {
				opts.Type = backup.TypeIncremental
			}
			if sqlOnly {
				opts.Formats = []string{backup.FormatSQL}
			}
			if jsonOnly {
				opts.Formats = []string{backup.FormatJSON}
			}

			summary, err := engine.CreateBackup(context.Background(), opts)
			if err != nil {
				return err
			}

			fmt.Printf("backup %s (%s) complete\n", summary.ID, summary.Type)
			for _, f := range summary.Files {
				fmt.Printf("  %s  %d bytes  sha256:%s\n", f.Name, f.Size, f.Checksum)
			}
			for _, failure := range summary.Failed {
				fmt.Printf("  failed: %s\n", failure)
			}
			fmt.Printf("  manifest: %s\n", summary.ManifestPath)
			if summary.PrunedFiles > 0 {
				fmt.Printf("  pruned %d old file(s)\n", summary.PrunedFiles)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "tag this run as an incremental backup")
	cmd.Flags().BoolVar(&sqlOnly, "sql-only", false, "export only the SQL artifact")
	cmd.Flags().BoolVar(&jsonOnly, "json-only", false, "export only the JSON artifact")
	cmd.Flags().BoolVar(&noCleanup, "no-cleanup", false, "skip retention pruning after the run")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "backup failed:", err)
		os.Exit(1)
	}
}
