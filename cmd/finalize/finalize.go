// Package finalize implements the import finalization command.
package finalize

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/reconcile"
)

// Command creates the finalize cobra command. Without arguments every
// pending import is finalized; with an ID only that one.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finalize [import-id]",
		Short: "Materialize pending imports into observation cards",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 {
				id, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid import id %q: %w", args[0], err)
				}
				if err := svc.Finalize(cmd.Context(), uint(id)); err != nil {
					return err
				}
				fmt.Printf("import %d finalized\n", id)
				return nil
			}

			result, err := svc.FinalizeAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%d imports finalized, %d failed\n", result.Completed, result.Failed)
			for _, e := range result.Errors {
				fmt.Println("  " + e)
			}
			return nil
		},
	}
	return cmd
}
