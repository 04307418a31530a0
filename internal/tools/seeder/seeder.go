// Package seeder provisions a directory database file with the default
// fixtures, for environments where the database is prepared ahead of the
// service starting.
package seeder

import (
	"context"
	"flag"
	"fmt"
	"io"

	entrypoint "github.com/campfirehq/campfire/internal/platform/cmd"
	"github.com/campfirehq/campfire/internal/services/directory/seed"
	"github.com/campfirehq/campfire/internal/services/directory/storage/sqlite"
)

// Config holds seeder command configuration.
type Config struct {
	DBPath string `env:"CAMPFIRE_DIRECTORY_DB_PATH" envDefault:"directory.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "directory database file path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the directory database and applies the default fixture when the
// store is empty.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open directory storage: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	seeded, err := seed.Apply(ctx, store, seed.Default())
	if err != nil {
		return fmt.Errorf("seed directory storage: %w", err)
	}
	if seeded {
		fmt.Fprintf(out, "seeded directory storage at %s\n", cfg.DBPath)
	} else {
		fmt.Fprintf(out, "directory storage at %s already populated, nothing to do\n", cfg.DBPath)
	}
	return nil
}
