// Package conf loads and exposes the application settings. Settings are read
// from config.yaml via viper, with an embedded default config written on
// first run.
package conf

import (
	"embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains application-wide settings.
type MainSettings struct {
	Name string      // instance name, used in log identifiers
	Log  LogSettings // log rotation settings
}

// LogSettings controls file log rotation.
type LogSettings struct {
	MaxSizeMB  int `mapstructure:"maxsizemb"`
	MaxBackups int `mapstructure:"maxbackups"`
	MaxAgeDays int `mapstructure:"maxagedays"`
}

// OutputSettings selects and configures the backing database.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// SQLiteSettings contains SQLite database settings.
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to the sqlite database file
}

// MySQLSettings contains MySQL database settings.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// IngestSettings configures transcription file ingestion.
type IngestSettings struct {
	Directory  string // directory holding per-form OCR result files
	FileSuffix string `mapstructure:"filesuffix"` // suffix identifying result files
}

// OCRSettings configures the transcription runner.
type OCRSettings struct {
	Command   string // external engine command; gets the prompt and image path appended
	ImagesDir string `mapstructure:"imagesdir"` // directory of scanned card images
	Prompt    string // extraction prompt passed to the engine
}

// ReconcileSettings configures candidate reconciliation.
type ReconcileSettings struct {
	SimilarityThreshold float64 `mapstructure:"similaritythreshold"` // minimum accepted species match ratio
}

// GeocoderSettings configures the tiered commune geocoder.
type GeocoderSettings struct {
	ExternalEnabled bool          `mapstructure:"externalenabled"` // allow the external lookup tier
	BaseURL         string        `mapstructure:"baseurl"`         // external geocoding service URL
	CountryCodes    string        `mapstructure:"countrycodes"`    // restrict external results to these countries
	UserAgent       string        `mapstructure:"useragent"`       // identifies this client to the external service
	RateLimit       time.Duration `mapstructure:"ratelimit"`       // minimum delay between external requests
	CacheTTL        time.Duration `mapstructure:"cachettl"`        // external result cache lifetime
	Timeout         time.Duration `mapstructure:"timeout"`         // external request timeout
}

// Settings is the root of the configuration tree.
type Settings struct {
	Debug     bool
	Main      MainSettings
	Output    OutputSettings
	OCR       OCRSettings
	Ingest    IngestSettings
	Reconcile ReconcileSettings
	Geocoder  GeocoderSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a fresh Settings instance.
func Load() (*Settings, error) {
	settings := &Settings{}

	initViper()

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

func initViper() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths := configSearchPaths()
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("nestcard")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// First run, write the embedded default config for the operator
			// to edit.
			if err := createDefaultConfig(configPaths[0]); err != nil {
				log.Printf("error creating default config: %v", err)
			}
		} else {
			log.Printf("error reading config file: %v", err)
		}
	}
}

func configSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(home, "nestcard"))
	}
	return paths
}

func createDefaultConfig(dir string) error {
	data, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return fmt.Errorf("reading embedded config: %w", err)
	}
	target := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(target); err == nil {
		return nil
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("writing default config to %s: %w", target, err)
	}
	log.Printf("created default configuration at %s", target)
	return nil
}

// Setting returns the shared Settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		settings, err := Load()
		if err != nil {
			log.Fatalf("error loading settings: %v", err)
		}
		settingsMutex.Lock()
		settingsInstance = settings
		settingsMutex.Unlock()
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetSettings returns the shared settings without triggering a load. May be
// nil early in startup.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the shared settings instance. Intended for tests.
func SetSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}
