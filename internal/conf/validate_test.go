package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Analysis: AnalysisSettings{
			Method:       "burg",
			Order:        16,
			WindowLength: 0.025,
			TimeStep:     0.005,
			SubtractMean: true,
			Window:       "gaussian2",
		},
		Marple:  MarpleSettings{Tol1: 1e-6, Tol2: 1e-6},
		Robust:  RobustSettings{K: 1.5, IterMax: 5, Tol: 1e-6},
		Formant: FormantSettings{Margin: 50},
		LSF:     LSFSettings{GridSize: 0.02},
		Threads: ThreadSettings{Enabled: true},
		Output:  OutputSettings{Format: "yaml"},
		Log:     LogSettings{Level: "info"},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"unknown method", func(s *Settings) { s.Analysis.Method = "yule" }, "analysis.method"},
		{"order too high", func(s *Settings) { s.Analysis.Order = MaxOrder }, "analysis.order"},
		{"order zero", func(s *Settings) { s.Analysis.Order = 0 }, "analysis.order"},
		{"zero window", func(s *Settings) { s.Analysis.WindowLength = 0 }, "windowlength"},
		{"negative tol", func(s *Settings) { s.Marple.Tol1 = -1 }, "marple"},
		{"robust k", func(s *Settings) { s.Robust.K = 0 }, "robust.k"},
		{"negative margin", func(s *Settings) { s.Formant.Margin = -5 }, "formant.margin"},
		{"grid too big", func(s *Settings) { s.LSF.GridSize = 2 }, "lsf.gridsize"},
		{"negative threads", func(s *Settings) { s.Threads.Max = -1 }, "threads.max"},
		{"bad format", func(s *Settings) { s.Output.Format = "csv" }, "output.format"},
		{"telemetry without dsn", func(s *Settings) { s.Telemetry.Enabled = true }, "telemetry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateNormalizesCase(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Analysis.Method = "AutoCorrelation"
	s.Output.Format = "JSON"
	require.NoError(t, ValidateSettings(s))
	assert.Equal(t, "autocorrelation", s.Analysis.Method)
	assert.Equal(t, "json", s.Output.Format)
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateEnvBool("true"))
	require.Error(t, validateEnvBool("maybe"))
	require.NoError(t, validateEnvMethod("Burg"))
	require.Error(t, validateEnvMethod("lattice"))
	require.NoError(t, validateEnvOrder("99"))
	require.Error(t, validateEnvOrder("100"))
	require.Error(t, validateEnvPositiveFloat("0"))
	require.NoError(t, validateEnvNonNegativeFloat("0"))
	require.Error(t, validateEnvNonNegativeInt("-2"))
	require.NoError(t, validateEnvFormat("yaml"))
	require.Error(t, validateEnvLogLevel("verbose"))
}
