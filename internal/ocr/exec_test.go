package ocr

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops an executable shell script into a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engine test")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExecEngineTranscribe(t *testing.T) {
	// The script echoes its last argument (the image path) inside a JSON
	// shell, proving argument order and stdout capture.
	script := writeScript(t, `shift $(($# - 1)); printf '{"image": "%s"}' "$1"`)

	engine, err := NewExecEngine(script)
	require.NoError(t, err)

	out, err := engine.Transcribe(context.Background(), "/scans/Fiche_1.jpg", "prompt text")
	require.NoError(t, err)
	assert.Equal(t, `{"image": "/scans/Fiche_1.jpg"}`, out)
}

func TestExecEngineFailure(t *testing.T) {
	script := writeScript(t, `echo "model unavailable" >&2; exit 3`)

	engine, err := NewExecEngine(script)
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), "/scans/Fiche_1.jpg", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription command failed")
}

func TestNewExecEngineUnconfigured(t *testing.T) {
	_, err := NewExecEngine("  ")
	require.Error(t, err)
}
