package conf

import (
	"time"

	"github.com/spf13/viper"
)

// defaultOCRPrompt is the extraction prompt handed to the transcription
// engine for every card image.
const defaultOCRPrompt = "Transcris cette fiche de nid manuscrite en un document JSON structuré, sans commentaire."

// setDefaults registers the default configuration values with viper.
func setDefaults() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "nestcard")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "nestcard.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "nestcard")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "nestcard")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("ocr.command", "")
	viper.SetDefault("ocr.imagesdir", "card_images")
	viper.SetDefault("ocr.prompt", defaultOCRPrompt)

	viper.SetDefault("ingest.directory", "transcription_results")
	viper.SetDefault("ingest.filesuffix", "_result.json")

	viper.SetDefault("reconcile.similaritythreshold", 0.80)

	viper.SetDefault("geocoder.externalenabled", true)
	viper.SetDefault("geocoder.baseurl", "https://nominatim.openstreetmap.org/search")
	viper.SetDefault("geocoder.countrycodes", "fr")
	viper.SetDefault("geocoder.useragent", "nestcard-go/1.0")
	viper.SetDefault("geocoder.ratelimit", time.Second)
	viper.SetDefault("geocoder.cachettl", time.Hour)
	viper.SetDefault("geocoder.timeout", 10*time.Second)
}

// DefaultSettings returns a Settings populated with the default values,
// without touching the shared viper state. Intended for tests.
func DefaultSettings() *Settings {
	return &Settings{
		Main: MainSettings{
			Name: "nestcard",
			Log:  LogSettings{MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28},
		},
		Output: OutputSettings{
			SQLite: SQLiteSettings{Enabled: true, Path: "nestcard.db"},
			MySQL:  MySQLSettings{Host: "localhost", Port: "3306", Username: "nestcard", Database: "nestcard"},
		},
		OCR: OCRSettings{
			ImagesDir: "card_images",
			Prompt:    defaultOCRPrompt,
		},
		Ingest: IngestSettings{
			Directory:  "transcription_results",
			FileSuffix: "_result.json",
		},
		Reconcile: ReconcileSettings{SimilarityThreshold: 0.80},
		Geocoder: GeocoderSettings{
			ExternalEnabled: true,
			BaseURL:         "https://nominatim.openstreetmap.org/search",
			CountryCodes:    "fr",
			UserAgent:       "nestcard-go/1.0",
			RateLimit:       time.Second,
			CacheTTL:        time.Hour,
			Timeout:         10 * time.Second,
		},
	}
}
