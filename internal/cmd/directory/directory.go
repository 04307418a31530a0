// Package directory parses directory command flags and composes the
// lookup service entrypoint.
package directory

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/campfirehq/campfire/internal/platform/cmd"
	server "github.com/campfirehq/campfire/internal/services/directory/app"
)

// Config holds directory command configuration.
type Config struct {
	HTTPAddr    string `env:"CAMPFIRE_DIRECTORY_HTTP_ADDR" envDefault:":8081"`
	StoragePath string `env:"CAMPFIRE_DIRECTORY_DB_PATH"   envDefault:"directory.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "directory HTTP listen address")
	fs.StringVar(&cfg.StoragePath, "db-path", cfg.StoragePath, "directory SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the directory app and serves lookups until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDirectory, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:    cfg.HTTPAddr,
			StoragePath: cfg.StoragePath,
		}); err != nil {
			return fmt.Errorf("serve directory: %w", err)
		}
		return nil
	})
}
