package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults for every configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("source.path", "sightings.csv")
	viper.SetDefault("storage.path", "storage")

	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.path", "logs/web.log")
}
