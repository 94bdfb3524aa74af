package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup management commands",
	}

	cmd.AddCommand(newBackupCreateCmd())
	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupPruneCmd())
	return cmd
}

func newBackupCreateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a tar.gz backup of the data directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "manual"
			if len(args) > 0 {
				name = args[0]
			}
			_, engine, _, err := loadEngine(configPath)
			if err != nil {
				return err
			}
			path, err := engine.CreateBackup(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vinyard.yaml", "path to vinyard config file")
	return cmd
}

func newBackupListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backup archives, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, engine, _, err := loadEngine(configPath)
			if err != nil {
				return err
			}
			backups, err := engine.ListBackups()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintln(out, "No backups found")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintln(out, filepath.Base(b))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vinyard.yaml", "path to vinyard config file")
	return cmd
}

func newBackupPruneCmd() *cobra.Command {
	var configPath string
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest backup archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, _, err := loadEngine(configPath)
			if err != nil {
				return err
			}
			if keep == 0 {
				keep = cfg.Backup.Retain
			}
			removed, err := engine.PruneBackups(keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d backup(s), kept at most %d\n", removed, keep)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vinyard.yaml", "path to vinyard config file")
	cmd.Flags().IntVarP(&keep, "keep", "k", 0, "number of backups to keep (defaults to config)")
	return cmd
}
