// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("analysis.method", "burg")
	viper.SetDefault("analysis.order", 16)
	viper.SetDefault("analysis.windowlength", 0.025)
	viper.SetDefault("analysis.timestep", 0.005)
	viper.SetDefault("analysis.subtractmean", true)
	viper.SetDefault("analysis.window", "gaussian2")

	viper.SetDefault("marple.tol1", 1e-6)
	viper.SetDefault("marple.tol2", 1e-6)

	viper.SetDefault("robust.k", 1.5)
	viper.SetDefault("robust.itermax", 5)
	viper.SetDefault("robust.tol", 1e-6)
	viper.SetDefault("robust.wantlocation", false)

	viper.SetDefault("formant.margin", 50.0)

	viper.SetDefault("lsf.gridsize", 0.02)

	viper.SetDefault("threads.enabled", true)
	viper.SetDefault("threads.max", 0)
	viper.SetDefault("threads.minframes", 0)

	viper.SetDefault("output.format", "yaml")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")

	viper.SetDefault("metrics.enabled", true)
}
