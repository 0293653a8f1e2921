package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tmarcon/nestcard-go/cmd/extract"
	"github.com/tmarcon/nestcard-go/cmd/finalize"
	"github.com/tmarcon/nestcard-go/cmd/geocode"
	"github.com/tmarcon/nestcard-go/cmd/ingest"
	"github.com/tmarcon/nestcard-go/cmd/prepare"
	"github.com/tmarcon/nestcard-go/cmd/reset"
	"github.com/tmarcon/nestcard-go/cmd/transcribe"
	"github.com/tmarcon/nestcard-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nestcard",
		Short: "Nest-record card transcription import CLI",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	subcommands := []*cobra.Command{
		transcribe.Command(settings),
		ingest.Command(settings),
		extract.Command(settings),
		prepare.Command(settings),
		finalize.Command(settings),
		reset.Command(settings),
		geocode.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64VarP(&settings.Reconcile.SimilarityThreshold, "threshold", "t",
		viper.GetFloat64("reconcile.similaritythreshold"),
		"Minimum accepted species match ratio, value between 0.0 and 1.0")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
