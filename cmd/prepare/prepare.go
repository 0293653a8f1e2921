// Package prepare implements the import preparation command.
package prepare

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/reconcile"
)

// Command creates the prepare cobra command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Create pending imports for unprocessed transcriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.PrepareImports()
			if err != nil {
				return err
			}
			fmt.Printf("%d pending imports created, %d errors\n", result.Created, len(result.Errors))
			for _, e := range result.Errors {
				fmt.Println("  " + e)
			}
			return nil
		},
	}
	return cmd
}
