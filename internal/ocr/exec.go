package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/tmarcon/nestcard-go/internal/errors"
)

// ExecEngine runs an external transcription command per image. The command
// receives the prompt and the image path as its last two arguments and
// prints the raw model output on stdout. Keeps the vision model itself out
// of process.
type ExecEngine struct {
	path string
	args []string
}

// NewExecEngine parses the configured command line. The first field is the
// executable, the rest are fixed leading arguments.
func NewExecEngine(command string) (*ExecEngine, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.Newf("ocr.command is not configured").
			Category(errors.CategoryConfiguration).
			Component("ocr").
			Build()
	}
	return &ExecEngine{path: fields[0], args: fields[1:]}, nil
}

func (e *ExecEngine) Transcribe(ctx context.Context, imagePath, prompt string) (string, error) {
	args := append(append([]string{}, e.args...), prompt, imagePath)
	cmd := exec.CommandContext(ctx, e.path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Newf("transcription command failed: %v", err).
			Category(errors.CategoryGeneric).
			Component("ocr").
			Context("command", e.path).
			Context("stderr", strings.TrimSpace(stderr.String())).
			Build()
	}
	return stdout.String(), nil
}
