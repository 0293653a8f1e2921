// Package ocr runs transcription jobs over directories of scanned card
// images. The vision model itself sits behind the Engine interface; this
// package owns the surrounding plumbing: directory walking, fence stripping,
// payload repair and result-file layout.
package ocr

import (
	"context"
	"log/slog"

	"github.com/tmarcon/nestcard-go/internal/logging"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	serviceLevelVar.Set(slog.LevelDebug)
	logger, closeLogger = logging.ForService("ocr", serviceLevelVar)
}

// Engine transcribes one card image to the JSON payload text. Implementations
// wrap a vision model; the returned text may still carry a markdown fence.
type Engine interface {
	Transcribe(ctx context.Context, imagePath, prompt string) (string, error)
}

// Close flushes the package log.
func Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}
