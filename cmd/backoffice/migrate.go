package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/backoffice/internal/infrastructure/migration"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, inspect and author SQL schema migrations",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default database.migrations_path)")

	dir := func() string {
		if path != "" {
			return resolveMigrationsPath(path)
		}
		return resolveMigrationsPath(opts.cfg.Database.MigrationsPath)
	}

	withMigrator := func(run func(*cobra.Command, *migration.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			_, log := opts.commandContext(cmd, uuid.Nil)
			m, err := openMigrator(opts, dir(), log)
			if err != nil {
				return err
			}
			defer func() {
				if err := m.Close(); err != nil {
					log.Warn("Failed to close migrator", zap.Error(err))
				}
			}()
			return run(cmd, m)
		}
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(_ *cobra.Command, m *migration.Migrator) error {
			return m.Up()
		}),
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert every applied migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(_ *cobra.Command, m *migration.Migrator) error {
			return m.Down()
		}),
	}

	var steps int
	stepsCmd := &cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or revert them when N is negative",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("steps must be a non-zero integer, got %q", args[0])
			}
			steps = n
			return nil
		},
		RunE: withMigrator(func(_ *cobra.Command, m *migration.Migrator) error {
			return m.Steps(steps)
		}),
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m *migration.Migrator) error {
			st, err := m.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %d\ndirty: %t\n", st.Version, st.Dirty)
			return nil
		}),
	}

	var forceVersion int
	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Record VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version must be an integer, got %q", args[0])
			}
			forceVersion = v
			return nil
		},
		RunE: withMigrator(func(_ *cobra.Command, m *migration.Migrator) error {
			return m.Force(forceVersion)
		}),
	}

	create := &cobra.Command{
		Use:   "create NAME [DESCRIPTION]",
		Short: "Write a new pair of empty up and down migration files",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(dir(), args[0], description)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, mf.UpPath)
			fmt.Fprintln(out, mf.DownPath)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the migrations found on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := migration.ListMigrations(dir())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No migrations found")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		},
	}

	cmd.AddCommand(up, down, stepsCmd, status, force, create, list)
	return cmd
}

func openMigrator(opts *rootOptions, dir string, log *zap.Logger) (*migration.Migrator, error) {
	db, err := sql.Open("postgres", opts.cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("Migrator ready", zap.String("migrations_path", dir))
	return m, nil
}

// resolveMigrationsPath keeps existing or absolute paths and otherwise searches
// the working directory and its parents for a directory of that name
func resolveMigrationsPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	if filepath.Base(path) != path {
		return path
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if found, ok := migration.FindDir(wd, path); ok {
		return found
	}
	return path
}
