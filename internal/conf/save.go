package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SaveAs writes the settings to the given path as YAML. Used by the operator
// surface to persist edited settings back to disk.
func SaveAs(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings to yaml: %w", err)
	}

	// Write via a temp file so a crash never leaves a truncated config.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing settings to %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
