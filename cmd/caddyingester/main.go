package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/logtools/caddyingester/internal/common"
	"github.com/logtools/caddyingester/internal/ingester"
	"github.com/logtools/caddyingester/internal/ingester/configuration"
)

const CustomConfigLocation = "config"

func init() {
	pflag.StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)",
	)
	pflag.Parse()
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] [input-file] [connection-string]\n", os.Args[0])
	pflag.PrintDefaults()
}

func main() {
	common.ConfigureLogging()
	common.BindCommandlineArguments()

	var config configuration.IngesterConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	common.LoadConfig(&config, "./config/caddyingester", userSpecifiedConfigs)

	// Positional arguments override the corresponding config fields
	args := pflag.Args()
	if len(args) > 2 {
		usage()
		os.Exit(-1)
	}
	if len(args) > 0 {
		config.InputFile = args[0]
	}
	if len(args) > 1 {
		config.Postgres.Connection = args[1]
	}

	if err := config.Validate(); err != nil {
		log.Error(err)
		usage()
		os.Exit(-1)
	}

	ingester.Run(&config)
}
