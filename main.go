package main

import (
	"fmt"
	"os"

	"github.com/tmarcon/nestcard-go/cmd"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}
	conf.SetSettings(settings)
	logging.SetFileRotation(
		settings.Main.Log.MaxSizeMB,
		settings.Main.Log.MaxBackups,
		settings.Main.Log.MaxAgeDays,
	)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
