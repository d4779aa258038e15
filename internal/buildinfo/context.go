// Package buildinfo contains build-time metadata kept separate from user configuration
package buildinfo

import "github.com/google/uuid"

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	Version() string
	BuildDate() string
	RunID() string
}

// Context contains build-time metadata that is not user-configurable,
// plus an identifier of the current process run for telemetry.
type Context struct {
	version   string
	buildDate string
	runID     string
}

// NewContext creates a Context for one process run.
func NewContext(version, buildDate string) *Context {
	return &Context{
		version:   version,
		buildDate: buildDate,
		runID:     uuid.New().String(),
	}
}

func valueOrUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// Version returns the build version string
func (c *Context) Version() string {
	if c == nil {
		return UnknownValue
	}
	return valueOrUnknown(c.version)
}

// BuildDate returns the build date string
func (c *Context) BuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return valueOrUnknown(c.buildDate)
}

// RunID returns the identifier of this process run
func (c *Context) RunID() string {
	if c == nil {
		return UnknownValue
	}
	return valueOrUnknown(c.runID)
}

// Release returns the telemetry release name, e.g. "go-lpc@1.2.0".
func (c *Context) Release() string {
	return "go-lpc@" + c.Version()
}
