// Package main seeds a directory database file with the default fixtures.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/campfirehq/campfire/internal/platform/config"
	"github.com/campfirehq/campfire/internal/tools/seeder"
)

func main() {
	cfg, err := seeder.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	if err := seeder.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
