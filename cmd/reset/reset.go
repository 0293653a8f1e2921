// Package reset implements the import reset command.
package reset

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/datastore"
	"github.com/tmarcon/nestcard-go/internal/reconcile"
)

// Command creates the reset cobra command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		sourceFile string
		byStatus   string
	)

	cmd := &cobra.Command{
		Use:   "reset [import-id]",
		Short: "Rewind imports so the pipeline can run again",
		Long:  "Deletes the materialized card (if any), removes the pending import and clears the transcription's processed flag. Select by import ID, source file or status.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			switch {
			case len(args) == 1:
				id, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid import id %q: %w", args[0], err)
				}
				if err := svc.Reset(uint(id)); err != nil {
					return err
				}
				fmt.Printf("import %d reset\n", id)

			case sourceFile != "":
				if err := svc.ResetBySource(sourceFile); err != nil {
					return err
				}
				fmt.Printf("import for %s reset\n", sourceFile)

			case byStatus != "":
				result, err := svc.ResetByStatus(byStatus)
				if err != nil {
					return err
				}
				fmt.Printf("%d imports reset, %d errors\n", result.Reset, len(result.Errors))
				for _, e := range result.Errors {
					fmt.Println("  " + e)
				}

			default:
				return fmt.Errorf("give an import ID, --source or --status (e.g. --status %s)", datastore.StatusError)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceFile, "source", "", "Reset the import attached to this source file")
	cmd.Flags().StringVar(&byStatus, "status", "", "Reset every import in this status (pending, error, complete)")
	return cmd
}
