// Package ingest implements the command importing OCR result files into the
// raw-transcription store.
package ingest

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/reconcile"
)

// Command creates the ingest cobra command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [directory]",
		Short: "Import OCR result files into the transcription store",
		Long:  "Reads every result file from the given directory (or the configured one) and stores new transcriptions. Already-ingested files are skipped.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				settings.Ingest.Directory = args[0]
			}

			svc, cleanup, err := reconcile.Bootstrap(settings)
			if err != nil {
				return err
			}
			defer cleanup()

			result := svc.IngestDirectory(settings.Ingest.Directory)
			fmt.Printf("%d files seen, %d imported, %d already known, %d errors\n",
				result.Total, result.Imported, result.Skipped, len(result.Errors))
			for _, e := range result.Errors {
				fmt.Println("  " + e)
			}
			return nil
		},
	}
	return cmd
}
