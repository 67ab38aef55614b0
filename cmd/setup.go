package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/reelx/internal/shared"
	"github.com/urfave/cli/v3"
)

// LoadConfig reads --config before any command runs. A missing file keeps the current
// configuration, which is the embedded default unless one was injected.
func (r *Runner) LoadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.httpClient.Timeout = config.API.Timeout()
	} else if !errors.Is(err, os.ErrNotExist) {
		return ctx, fmt.Errorf("failed to stat config file: %w", err)
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	level := shared.ParseLogLevel(r.config.Logging.Level)
	if cmd.Bool("verbose") {
		level = shared.ParseLogLevel("debug")
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// Setup writes a config file if none exists, then creates the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
		config, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		r.config = config
		r.writePlain("✓ Config written to %s\n", path)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (schema version %d)\n", r.config.Database.Path, version)
	return nil
}

// CacheStats reports how many detail records are cached.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}
	if c.cache == nil {
		return fmt.Errorf("%w: detail cache is disabled", shared.ErrMissingConfig)
	}

	n, err := c.cache.Count()
	if err != nil {
		return err
	}
	r.writePlain("Cached details: %d (fresh for %s)\n", n, r.config.Catalog.CacheTTL())
	return nil
}

// CachePrune removes cached details older than --older-than, defaulting to the cache TTL.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}
	if c.cache == nil {
		return fmt.Errorf("%w: detail cache is disabled", shared.ErrMissingConfig)
	}

	maxAge := cmd.Duration("older-than")
	if maxAge <= 0 {
		maxAge = r.config.Catalog.CacheTTL()
	}

	removed, err := c.cache.Prune(maxAge)
	if err != nil {
		return err
	}
	r.logger.Info("pruned detail cache", "removed", removed, "max_age", maxAge.Round(time.Second))
	r.writePlain("✓ Removed %d cached details\n", removed)
	return nil
}
