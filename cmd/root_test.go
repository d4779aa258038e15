package cmd

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-lpc/internal/buildinfo"
	"github.com/tphakala/go-lpc/internal/conf"
	"github.com/tphakala/go-lpc/internal/logger"
	"github.com/tphakala/go-lpc/internal/signal"
)

func writeChirp(t *testing.T, dir string) string {
	t.Helper()
	const fs = 8000.0
	x := make([]float64, 2400)
	for i := range x {
		tm := float64(i) / fs
		x[i] = 0.4 * math.Sin(2*math.Pi*(200+400*tm)*tm)
	}
	s, err := signal.NewMono(x, fs)
	require.NoError(t, err)
	path := filepath.Join(dir, "chirp.wav")
	require.NoError(t, s.WriteWAV(path))
	return path
}

// The root command loads settings into viper's global instance, so this
// test must not run in parallel.
func TestRootCommandAnalyze(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	prev := logger.Global()
	t.Cleanup(func() { logger.SetGlobal(prev) })

	dir := t.TempDir()
	input := writeChirp(t, dir)
	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`
analysis:
  method: autocorrelation
  order: 4
  windowlength: 0.02
  timestep: 0.01
output:
  format: json
log:
  level: warn
metrics:
  enabled: true
`), 0o600))
	output := filepath.Join(dir, "out.json")
	metricsFile := filepath.Join(dir, "lpc.prom")

	ctx := conf.NewContext(buildinfo.NewContext("1.0.0", ""))
	root := RootCommand(ctx)
	root.SetArgs([]string{"analyze", input,
		"--config", config,
		"--order", "6",
		"-o", output,
		"--metrics-file", metricsFile,
	})
	require.NoError(t, root.Execute())

	// the flag overrides the file, the file overrides the defaults
	assert.Equal(t, 6, ctx.Settings.Analysis.Order)
	assert.Equal(t, "autocorrelation", ctx.Settings.Analysis.Method)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var doc struct {
		MaxOrder int `json:"max_order"`
		Frames   []struct {
			Order int  `json:"order"`
			Valid bool `json:"valid"`
		} `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 6, doc.MaxOrder)
	require.NotEmpty(t, doc.Frames)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `lpc_runs_total{operation="sound_to_lpc",status="success"} 1`)
}

func TestRootCommandVersion(t *testing.T) {
	t.Parallel()

	root := RootCommand(conf.NewContext(buildinfo.NewContext("2.0.1", "")))
	assert.Equal(t, "2.0.1", root.Version)
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"analyze", "filter"})
}
