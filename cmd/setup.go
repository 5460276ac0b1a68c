package main

import (
	"context"
	"fmt"

	"github.com/corsac-s/immich-tools/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes a config file from the embedded template at the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [immich] url and api_key, or set IMMICH_URL and IMMICH_API_KEY\n")
	r.writePlain("2. Fill in [nextcloud] url, login and password, or set NEXTCLOUD_URL, NEXTCLOUD_LOGIN and NEXTCLOUD_PASSWORD\n")
	r.writePlain("3. Run 'immich-tools sync --dry-run' to preview\n")
	return nil
}

// SetupDatabase initializes the history database and runs migrations. With --rollback it undoes the latest migration.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.cfg()
	if config.Database.Path == "" {
		return fmt.Errorf("%w: set [database] path in %s", shared.ErrNotConfigured, r.configPath)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenHistory(config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		version, err := shared.CurrentVersion(db)
		if err != nil {
			return err
		}
		r.logger.Warn("migration rolled back", "path", config.Database.Path, "version", version)
		r.writePlain("✓ Rolled back %s to schema version %d\n", config.Database.Path, version)
		return nil
	}

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Database ready at %s (schema version %d)\n", config.Database.Path, version)
	return nil
}
