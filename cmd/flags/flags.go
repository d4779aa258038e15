// Package flags declares command line flags that map onto configuration
// keys. Several commands share the same keys, so a flag only records its key
// here and is bound to viper when its command actually runs.
package flags

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const annotationKey = "viper_key"

// setKey records the configuration key of flag name.
func setKey(fs *pflag.FlagSet, name, key string) {
	// the flag was just defined, SetAnnotation cannot fail
	_ = fs.SetAnnotation(name, annotationKey, []string{key})
}

// String defines a string flag for configuration key key.
func String(fs *pflag.FlagSet, name, shorthand, key, usage string) {
	fs.StringP(name, shorthand, "", usage)
	setKey(fs, name, key)
}

// Int defines an int flag for configuration key key.
func Int(fs *pflag.FlagSet, name, shorthand, key, usage string) {
	fs.IntP(name, shorthand, 0, usage)
	setKey(fs, name, key)
}

// Float64 defines a float64 flag for configuration key key.
func Float64(fs *pflag.FlagSet, name, shorthand, key, usage string) {
	fs.Float64P(name, shorthand, 0, usage)
	setKey(fs, name, key)
}

// Bool defines a bool flag for configuration key key.
func Bool(fs *pflag.FlagSet, name, shorthand, key, usage string, value bool) {
	fs.BoolP(name, shorthand, value, usage)
	setKey(fs, name, key)
}

// Analysis defines the short-term analysis flags shared by the analyze and
// filter commands.
func Analysis(cmd *cobra.Command) {
	fs := cmd.Flags()
	String(fs, "method", "m", "analysis.method", "LPC method: autocorrelation, covariance, burg, marple or robust")
	Int(fs, "order", "p", "analysis.order", "Prediction order")
	Float64(fs, "window-length", "w", "analysis.windowlength", "Effective window length in seconds")
	Float64(fs, "time-step", "", "analysis.timestep", "Time step between frames in seconds")
	String(fs, "window", "", "analysis.window", "Window shape, e.g. gaussian2, hanning, kaiser2")
	Bool(fs, "subtract-mean", "", "analysis.subtractmean", "Subtract the frame mean before windowing", true)
}

// Bind binds every annotated flag of cmd, including inherited persistent
// flags, to its configuration key. Flags left at their default do not
// override the configuration file.
func Bind(cmd *cobra.Command) error {
	var bindErr error
	bind := func(f *pflag.Flag) {
		keys := f.Annotations[annotationKey]
		if bindErr != nil || len(keys) == 0 || !f.Changed {
			return
		}
		if err := viper.BindPFlag(keys[0], f); err != nil {
			bindErr = fmt.Errorf("error binding flag %s: %w", f.Name, err)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return bindErr
}
