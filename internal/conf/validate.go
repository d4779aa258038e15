// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strings"
)

// MaxOrder is the exclusive upper bound on the prediction order. Root
// finding on longer polynomials is not supported.
const MaxOrder = 100

var (
	validMethods   = []string{"autocorrelation", "covariance", "burg", "marple", "robust"}
	validFormats   = []string{"yaml", "json"}
	validLogLevels = []string{"trace", "debug", "info", "warn", "error"}
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	collect := func(err error) {
		if err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	collect(validateAnalysisSettings(&settings.Analysis))
	collect(validateMarpleSettings(&settings.Marple))
	collect(validateRobustSettings(&settings.Robust))
	collect(validateConverterSettings(settings))
	collect(validateThreadSettings(&settings.Threads))
	collect(validateOutputSettings(settings))

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAnalysisSettings(settings *AnalysisSettings) error {
	var errs []string

	settings.Method = strings.ToLower(settings.Method)
	if !slices.Contains(validMethods, settings.Method) {
		errs = append(errs, fmt.Sprintf("analysis.method %q must be one of %s", settings.Method, strings.Join(validMethods, ", ")))
	}
	if settings.Order < 1 || settings.Order >= MaxOrder {
		errs = append(errs, fmt.Sprintf("analysis.order must be between 1 and %d", MaxOrder-1))
	}
	if settings.WindowLength <= 0 {
		errs = append(errs, "analysis.windowlength must be positive")
	}
	if settings.TimeStep <= 0 {
		errs = append(errs, "analysis.timestep must be positive")
	}
	if settings.Window == "" {
		errs = append(errs, "analysis.window must be set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("analysis settings: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMarpleSettings(settings *MarpleSettings) error {
	if settings.Tol1 < 0 || settings.Tol2 < 0 {
		return fmt.Errorf("marple tolerances must not be negative")
	}
	return nil
}

func validateRobustSettings(settings *RobustSettings) error {
	var errs []string
	if settings.K <= 0 {
		errs = append(errs, "robust.k must be positive")
	}
	if settings.IterMax < 1 {
		errs = append(errs, "robust.itermax must be at least 1")
	}
	if settings.Tol < 0 {
		errs = append(errs, "robust.tol must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("robust settings: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateConverterSettings(settings *Settings) error {
	if settings.Formant.Margin < 0 {
		return fmt.Errorf("formant.margin must not be negative")
	}
	if settings.LSF.GridSize <= 0 || settings.LSF.GridSize > 1 {
		return fmt.Errorf("lsf.gridsize must be in (0, 1]")
	}
	return nil
}

func validateThreadSettings(settings *ThreadSettings) error {
	if settings.Max < 0 {
		return fmt.Errorf("threads.max must not be negative")
	}
	if settings.MinFrames < 0 {
		return fmt.Errorf("threads.minframes must not be negative")
	}
	return nil
}

func validateOutputSettings(settings *Settings) error {
	settings.Output.Format = strings.ToLower(settings.Output.Format)
	if !slices.Contains(validFormats, settings.Output.Format) {
		return fmt.Errorf("output.format %q must be one of %s", settings.Output.Format, strings.Join(validFormats, ", "))
	}
	settings.Log.Level = strings.ToLower(settings.Log.Level)
	if !slices.Contains(validLogLevels, settings.Log.Level) {
		return fmt.Errorf("log.level %q must be one of %s", settings.Log.Level, strings.Join(validLogLevels, ", "))
	}
	if settings.Telemetry.Enabled && settings.Telemetry.DSN == "" {
		return fmt.Errorf("telemetry.dsn is required when telemetry is enabled")
	}
	return nil
}
