// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"analysis.method", "LPC_ANALYSIS_METHOD", validateEnvMethod},
		{"analysis.order", "LPC_ANALYSIS_ORDER", validateEnvOrder},
		{"analysis.windowlength", "LPC_ANALYSIS_WINDOWLENGTH", validateEnvPositiveFloat},
		{"analysis.timestep", "LPC_ANALYSIS_TIMESTEP", validateEnvPositiveFloat},
		{"analysis.subtractmean", "LPC_ANALYSIS_SUBTRACTMEAN", validateEnvBool},
		{"analysis.window", "LPC_ANALYSIS_WINDOW", nil},

		{"robust.k", "LPC_ROBUST_K", validateEnvPositiveFloat},
		{"robust.itermax", "LPC_ROBUST_ITERMAX", validateEnvNonNegativeInt},

		{"formant.margin", "LPC_FORMANT_MARGIN", validateEnvNonNegativeFloat},
		{"lsf.gridsize", "LPC_LSF_GRIDSIZE", validateEnvPositiveFloat},

		{"threads.enabled", "LPC_THREADS_ENABLED", validateEnvBool},
		{"threads.max", "LPC_THREADS_MAX", validateEnvNonNegativeInt},
		{"threads.minframes", "LPC_THREADS_MINFRAMES", validateEnvNonNegativeInt},

		{"output.format", "LPC_OUTPUT_FORMAT", validateEnvFormat},
		{"telemetry.enabled", "LPC_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.dsn", "LPC_TELEMETRY_DSN", nil},
		{"log.level", "LPC_LOG_LEVEL", validateEnvLogLevel},
		{"log.file", "LPC_LOG_FILE", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvMethod(value string) error {
	if !slices.Contains(validMethods, strings.ToLower(value)) {
		return fmt.Errorf("must be one of %s", strings.Join(validMethods, ", "))
	}
	return nil
}

func validateEnvOrder(value string) error {
	order, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if order < 1 || order >= MaxOrder {
		return fmt.Errorf("must be between 1 and %d", MaxOrder-1)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if f <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if f < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvFormat(value string) error {
	if !slices.Contains(validFormats, strings.ToLower(value)) {
		return fmt.Errorf("must be one of %s", strings.Join(validFormats, ", "))
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	if !slices.Contains(validLogLevels, strings.ToLower(value)) {
		return fmt.Errorf("must be one of %s", strings.Join(validLogLevels, ", "))
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}
