package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vogelring/vogelring-go/cmd/datasets"
	"github.com/vogelring/vogelring-go/cmd/serve"
	"github.com/vogelring/vogelring-go/cmd/validate"
	"github.com/vogelring/vogelring-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vogelring",
		Short: "Vogelring CLI",
		Long:  "Backend for browsing, filtering and analyzing ringed-bird sightings.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		validate.Command(settings),
		datasets.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Source.Path, "source", viper.GetString("source.path"), "Path to the semicolon-separated sightings file")
	rootCmd.PersistentFlags().StringVar(&settings.Storage.Path, "storage", viper.GetString("storage.path"), "Directory for persisted dataset and profile documents")
	rootCmd.PersistentFlags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Listen address of the API server")

	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}
