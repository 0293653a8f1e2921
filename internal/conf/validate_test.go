package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, ValidateSettings(DefaultSettings()))
	})

	t.Run("no output", func(t *testing.T) {
		settings := DefaultSettings()
		settings.Output.SQLite.Enabled = false
		err := ValidateSettings(settings)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no database output")
	})

	t.Run("both outputs", func(t *testing.T) {
		settings := DefaultSettings()
		settings.Output.MySQL.Enabled = true
		require.Error(t, ValidateSettings(settings))
	})

	t.Run("empty sqlite path", func(t *testing.T) {
		settings := DefaultSettings()
		settings.Output.SQLite.Path = ""
		require.Error(t, ValidateSettings(settings))
	})

	t.Run("threshold out of range", func(t *testing.T) {
		settings := DefaultSettings()
		settings.Reconcile.SimilarityThreshold = 1.5
		require.Error(t, ValidateSettings(settings))
	})

	t.Run("external tier without url", func(t *testing.T) {
		settings := DefaultSettings()
		settings.Geocoder.BaseURL = ""
		require.Error(t, ValidateSettings(settings))

		settings.Geocoder.ExternalEnabled = false
		require.NoError(t, ValidateSettings(settings))
	})
}
