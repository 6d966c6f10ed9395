package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/galette-community/plugin-oauth2/migrations"
)

// newMigrateCmd applies the local member schema. Production bridges read the
// database owned by Galette and never need it.
func newMigrateCmd() *cobra.Command {
	var (
		databaseURL string
		direction   string
		version     int64
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the local member schema (development and tests)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return errors.New("database url is required (--database-url or DATABASE_URL)")
			}

			db, err := sql.Open("postgres", databaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}

			ctx := cmd.Context()
			switch direction {
			case "up":
				if version > 0 {
					err = goose.UpToContext(ctx, db, migrations.Dir, version)
				} else {
					err = goose.UpContext(ctx, db, migrations.Dir)
				}
			case "down":
				if version > 0 {
					err = goose.DownToContext(ctx, db, migrations.Dir, version)
				} else {
					err = goose.DownContext(ctx, db, migrations.Dir)
				}
			case "status":
				err = goose.StatusContext(ctx, db, migrations.Dir)
			default:
				return fmt.Errorf("unsupported direction %q (expected up, down or status)", direction)
			}
			if err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}

			current, err := goose.GetDBVersionContext(ctx, db)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", current)
			return err
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string, defaults to DATABASE_URL")
	cmd.Flags().StringVar(&direction, "direction", "up", "Migration direction (up|down|status)")
	cmd.Flags().Int64Var(&version, "version", 0, "Optional target version")
	return cmd
}
