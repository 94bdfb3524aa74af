package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema migration commands",
	}

	cmd.AddCommand(newMigrateCheckCmd())
	cmd.AddCommand(newMigratePreflightCmd())
	cmd.AddCommand(newMigrateListCmd())
	return cmd
}

func newMigrateCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether any stored record is behind the current schema",
		Long:  "Exits 0 when every record is at the current schema version, nonzero otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, _, err := loadEngine(configPath)
			if err != nil {
				return err
			}
			needed, lowest, current, err := engine.CheckNeeded()
			if err != nil {
				return err
			}
			if needed {
				return fmt.Errorf("migration needed: v%d -> v%d", lowest, current)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is current: v%d\n", current)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vinyard.yaml", "path to vinyard config file")
	return cmd
}

func newMigratePreflightCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Run the bulk schema migration over the whole store",
		Long: `Scans every stored record and the VIN index. When any file is behind the
current schema version, a timestamped backup of the data directory is
created first, then the index and every listing file are migrated in
sequence. Safe to re-run: a current store is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, _, err := loadEngine(configPath)
			if err != nil {
				return err
			}
			if err := engine.Preflight(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preflight migration completed successfully (v%d)\n", engine.Current())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vinyard.yaml", "path to vinyard config file")
	return cmd
}

func newMigrateListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, _, err := loadEngine(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			migrations := engine.Migrations()
			if len(migrations) == 0 {
				fmt.Fprintln(out, "No migrations registered")
				return nil
			}
			fmt.Fprintln(out, "Registered migrations:")
			for _, m := range migrations {
				fmt.Fprintf(out, "  v%03d  %s\n", m.Version, m.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vinyard.yaml", "path to vinyard config file")
	return cmd
}
