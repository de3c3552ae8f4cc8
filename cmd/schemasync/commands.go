package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemasync"
	"github.com/tordrt/schemasync/internal/formatter"
)

func (a *app) initCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Apply the schema, diff, and repair what is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out, err := a.formatter(cmd)
			if err != nil {
				return err
			}

			conn, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer a.closeConn(ctx, conn)

			result, err := conn.Engine().Initialize(ctx, a.spec())
			if err != nil {
				return fmt.Errorf("initialize failed: %w", err)
			}
			if err := out.FormatResult(result); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}

			if strict && result.Status == schemasync.PartiallyRepaired {
				return fmt.Errorf("%d discrepancies need a migration", len(result.Residual))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when discrepancies remain after repair")
	return cmd
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Report differences between the declared schema and the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out, err := a.formatter(cmd)
			if err != nil {
				return err
			}

			conn, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer a.closeConn(ctx, conn)

			issues, err := conn.Engine().Diff(ctx, a.spec())
			if err != nil {
				return fmt.Errorf("diff failed: %w", err)
			}
			return out.FormatDiscrepancies(issues)
		},
	}
}

func (a *app) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Create missing tables, columns and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out, err := a.formatter(cmd)
			if err != nil {
				return err
			}

			conn, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer a.closeConn(ctx, conn)

			actions, err := conn.Engine().Repair(ctx, a.spec())
			if ferr := out.FormatRepairs(actions); ferr != nil {
				return fmt.Errorf("failed to format output: %w", ferr)
			}
			if err != nil {
				return fmt.Errorf("repair failed: %w", err)
			}
			return nil
		},
	}
}

func (a *app) ddlCmd() *cobra.Command {
	var dialectName string

	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the compiled create statements and schema fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.formatter(cmd)
			if err != nil {
				return err
			}
			d, err := a.dialectFor(dialectName)
			if err != nil {
				return err
			}

			spec := a.spec()
			title := fmt.Sprintf("%s v%d %s fingerprint %s", spec.Name, spec.Version, d.Name(), spec.Fingerprint(d))
			return out.FormatStatements(title, spec.CompileDDL(d))
		},
	}
	cmd.Flags().StringVar(&dialectName, "dialect", "", "Target dialect: sqlite or postgres (default: from the database URL, else sqlite)")
	return cmd
}

func (a *app) describeCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the live state of every declared table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			conn, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer a.closeConn(ctx, conn)

			tables, err := conn.Engine().Describe(ctx, a.spec())
			if err != nil {
				return fmt.Errorf("describe failed: %w", err)
			}
			if extra, err := conn.Engine().UndeclaredTables(ctx, a.spec()); err != nil {
				a.logger.Warn("failed to list undeclared tables", "error", err)
			} else if len(extra) > 0 {
				a.logger.Info("tables present but not declared", "tables", extra)
			}

			if outputDir != "" {
				return formatter.NewMultiFileFormatter(outputDir, a.opts.format).FormatTables(tables)
			}

			out, err := a.formatter(cmd)
			if err != nil {
				return err
			}
			return out.FormatTables(tables)
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Write an overview plus one file per table to this directory")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	var (
		from, to    int
		apply       bool
		dialectName string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Print or apply the migration path between two versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out, err := a.formatter(cmd)
			if err != nil {
				return err
			}

			path, ok := a.catalog.MigrationPath(from, to)
			if !ok {
				return fmt.Errorf("no migration path from version %d to %d", from, to)
			}

			if !apply {
				d, err := a.dialectFor(dialectName)
				if err != nil {
					return err
				}
				for _, m := range path {
					stmts, err := m.CompileDDL(d)
					if err != nil {
						return fmt.Errorf("migration %d->%d: %w", m.From, m.To, err)
					}
					if err := out.FormatStatements(migrationTitle(m), stmts); err != nil {
						return err
					}
				}
				return nil
			}

			conn, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer a.closeConn(ctx, conn)

			for _, m := range path {
				stmts, err := conn.Engine().ApplyMigration(ctx, m)
				if ferr := out.FormatStatements(migrationTitle(m), stmts); ferr != nil {
					return ferr
				}
				if err != nil {
					return fmt.Errorf("migrate failed: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "Current schema version")
	cmd.Flags().IntVar(&to, "to", catalogVersion, "Target schema version")
	cmd.Flags().BoolVar(&apply, "apply", false, "Execute the statements instead of printing them")
	cmd.Flags().StringVar(&dialectName, "dialect", "", "Dialect for printed statements: sqlite or postgres")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func migrationTitle(m *schemasync.Migration) string {
	title := fmt.Sprintf("migration %d -> %d", m.From, m.To)
	if m.IsDestructive() {
		title += " (destructive)"
	}
	return title
}
