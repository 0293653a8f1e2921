// Package extract implements the candidate extraction command.
package extract

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/reconcile"
)

// Command creates the extract cobra command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Build species, observer and commune candidates from unprocessed transcriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.ExtractCandidates(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%d species candidates added, %d observers created, %d communes resolved, %d errors\n",
				result.SpeciesAdded, result.ObserversCreated, result.CommunesGeocoded, len(result.Errors))
			for _, e := range result.Errors {
				fmt.Println("  " + e)
			}
			return nil
		},
	}
	return cmd
}
