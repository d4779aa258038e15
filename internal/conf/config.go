// Package conf loads analysis settings from config.yaml, LPC_* environment
// variables and command line flags.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AnalysisSettings holds the short-term analysis parameters
type AnalysisSettings struct {
	Method       string  `mapstructure:"method" yaml:"method"`             // autocorrelation, covariance, burg, marple or robust
	Order        int     `mapstructure:"order" yaml:"order"`               // prediction order
	WindowLength float64 `mapstructure:"windowlength" yaml:"windowlength"` // effective analysis width in seconds
	TimeStep     float64 `mapstructure:"timestep" yaml:"timestep"`         // frame hop in seconds
	SubtractMean bool    `mapstructure:"subtractmean" yaml:"subtractmean"`
	Window       string  `mapstructure:"window" yaml:"window"` // window shape name, see window.Parse
}

// MarpleSettings holds the Marple termination tolerances
type MarpleSettings struct {
	Tol1 float64 `mapstructure:"tol1" yaml:"tol1"` // error floor relative to frame energy
	Tol2 float64 `mapstructure:"tol2" yaml:"tol2"` // relative improvement floor
}

// RobustSettings holds the IRLS refinement parameters
type RobustSettings struct {
	K            float64 `mapstructure:"k" yaml:"k"`             // Huber cutoff in units of scale
	IterMax      int     `mapstructure:"itermax" yaml:"itermax"` // maximum IRLS iterations
	Tol          float64 `mapstructure:"tol" yaml:"tol"`         // relative scale convergence tolerance
	WantLocation bool    `mapstructure:"wantlocation" yaml:"wantlocation"`
}

// FormantSettings holds LPC to formant conversion parameters
type FormantSettings struct {
	Margin float64 `mapstructure:"margin" yaml:"margin"` // Hz kept clear of 0 and Nyquist
}

// LSFSettings holds LPC to LSF conversion parameters
type LSFSettings struct {
	GridSize float64 `mapstructure:"gridsize" yaml:"gridsize"` // initial root search grid in the cosine domain
}

// ThreadSettings controls the parallel scheduler
type ThreadSettings struct {
	Enabled   bool `mapstructure:"enabled" yaml:"enabled"`     // false forces a single thread
	Max       int  `mapstructure:"max" yaml:"max"`             // 0 uses the detected core count
	MinFrames int  `mapstructure:"minframes" yaml:"minframes"` // 0 uses each operation's own threshold
}

// OutputSettings controls result export
type OutputSettings struct {
	Format string `mapstructure:"format" yaml:"format"` // yaml or json
}

// TelemetrySettings controls error reporting
type TelemetrySettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// LogSettings controls logging
type LogSettings struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"` // empty disables file output
}

// MetricsSettings controls the prometheus registry
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Settings contains all configuration options
type Settings struct {
	Debug     bool              `mapstructure:"debug" yaml:"debug"`
	Analysis  AnalysisSettings  `mapstructure:"analysis" yaml:"analysis"`
	Marple    MarpleSettings    `mapstructure:"marple" yaml:"marple"`
	Robust    RobustSettings    `mapstructure:"robust" yaml:"robust"`
	Formant   FormantSettings   `mapstructure:"formant" yaml:"formant"`
	LSF       LSFSettings       `mapstructure:"lsf" yaml:"lsf"`
	Threads   ThreadSettings    `mapstructure:"threads" yaml:"threads"`
	Output    OutputSettings    `mapstructure:"output" yaml:"output"`
	Telemetry TelemetrySettings `mapstructure:"telemetry" yaml:"telemetry"`
	Log       LogSettings       `mapstructure:"log" yaml:"log"`
	Metrics   MetricsSettings   `mapstructure:"metrics" yaml:"metrics"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the configuration file and environment variables
// into a validated Settings value. An empty configFile searches the default
// config paths; a missing file there is not an error.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, environment bindings and reads the config file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "go-lpc"))
	}
	return paths
}

// GetSettings returns the most recently loaded settings, or nil
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temporary file
// and a rename.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
