package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSaveAsRoundTrip(t *testing.T) {
	settings := DefaultSettings()
	settings.Main.Name = "nestcard-test"
	settings.Reconcile.SimilarityThreshold = 0.9

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveAs(settings, path))

	// The temp file must not survive the rename.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "nestcard-test", loaded.Main.Name)
	assert.InDelta(t, 0.9, loaded.Reconcile.SimilarityThreshold, 0.0001)
}

func TestSaveAsBadPath(t *testing.T) {
	settings := DefaultSettings()
	err := SaveAs(settings, filepath.Join(t.TempDir(), "missing", "config.yaml"))
	require.Error(t, err)
}
