package conf

import (
	"github.com/tmarcon/nestcard-go/internal/errors"
)

// ValidateSettings checks the loaded configuration for inconsistencies that
// would break startup later.
func ValidateSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.Newf("no database output enabled, enable output.sqlite or output.mysql").
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return errors.Newf("both sqlite and mysql outputs enabled, pick one").
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return errors.Newf("output.sqlite.path must not be empty").
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	if t := settings.Reconcile.SimilarityThreshold; t < 0 || t > 1 {
		return errors.Newf("reconcile.similaritythreshold %.2f outside [0,1]", t).
			Category(errors.CategoryConfiguration).
			Component("conf").
			Build()
	}
	if settings.Geocoder.ExternalEnabled {
		if settings.Geocoder.BaseURL == "" {
			return errors.Newf("geocoder.baseurl required when the external tier is enabled").
				Category(errors.CategoryConfiguration).
				Component("conf").
				Build()
		}
		if settings.Geocoder.RateLimit <= 0 {
			return errors.Newf("geocoder.ratelimit must be positive").
				Category(errors.CategoryConfiguration).
				Component("conf").
				Build()
		}
	}
	return nil
}
