package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) setupConfigPath() string {
	if r.configPath != "" {
		return r.configPath
	}
	return defaultConfigPath
}

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.setupConfigPath()
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Configuration written to %s\n\n", path)
	r.writePlain("Next steps:\n")
	r.writePlain("1. Fill in credentials.spotify client_id and client_secret\n")
	r.writePlain("2. Set plex.base_url, plex.token and plex.library\n")
	r.writePlain("3. Run 'spx spotify auth' to read private playlists\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, err := shared.MigrationVersion(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database %s at version %d (%d migrations applied)\n", r.config.Database.Path, version, applied)
	return nil
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	before, ok, err := shared.MigrationVersion(db)
	if err != nil {
		return err
	}
	if !ok {
		r.writePlain("Nothing to roll back.\n")
		return nil
	}

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}

	r.logger.Warn("rolled back migration", "version", before, "path", r.config.Database.Path)
	r.writePlain("✓ Rolled back migration %d\n", before)
	return nil
}
