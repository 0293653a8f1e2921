// Package transcribe implements the command running the transcription
// engine over a directory of scanned card images.
package transcribe

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/ocr"
)

// Command creates the transcribe cobra command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe [images-directory]",
		Short: "Run the transcription engine over scanned card images",
		Long:  "Invokes the configured ocr.command for every jpg in the directory (or the configured one) and writes the repaired result files where ingest picks them up.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				settings.OCR.ImagesDir = args[0]
			}

			engine, err := ocr.NewExecEngine(settings.OCR.Command)
			if err != nil {
				return err
			}
			defer ocr.Close()

			runner := ocr.NewRunner(engine)
			job, err := runner.ProcessDirectory(cmd.Context(),
				settings.OCR.ImagesDir, settings.Ingest.Directory, settings.OCR.Prompt)
			if err != nil {
				return err
			}

			processed, total, percent := job.Progress()
			fmt.Printf("job %s: %d/%d images processed (%d%%), %d succeeded\n",
				job.ID, processed, total, percent, job.SuccessCount())
			for _, r := range job.Results() {
				if r.Err != nil {
					fmt.Printf("  %s: %v\n", r.Filename, r.Err)
				}
			}
			return nil
		},
	}
	return cmd
}
