package conf

import (
	"github.com/tphakala/go-lpc/internal/buildinfo"
	"github.com/tphakala/go-lpc/internal/observability/metrics"
)

// Context holds the state shared by the CLI commands: the loaded settings
// and the process-wide services set up from them.
type Context struct {
	Settings    *Settings
	ConfigFile  string // explicit config file, empty searches the default paths
	MetricsFile string // node exporter textfile written after a run, empty disables
	Build       *buildinfo.Context
	Recorder    metrics.AnalysisRecorder
}

// NewContext creates a Context for the given build.
func NewContext(build *buildinfo.Context) *Context {
	return &Context{
		Settings: &Settings{},
		Build:    build,
		Recorder: metrics.NoOpRecorder{},
	}
}
