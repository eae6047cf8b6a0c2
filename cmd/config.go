package cmd

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/laptime/pkg/engine"
	"github.com/ethpandaops/laptime/pkg/store"
)

// loadConfig loads the config file and applies the log level. An explicit
// --log-level wins over the file.
func loadConfig(cmd *cobra.Command) (*engine.Config, error) {
	config, err := engine.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	logLevel := config.Logging
	if cmd.Flags().Changed("log-level") {
		if flagLevel, flagErr := cmd.Flags().GetString("log-level"); flagErr == nil {
			logLevel = flagLevel
		}
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return config, nil
}

// openStore creates the configured model store. The returned func releases
// its Redis connection, if any.
func openStore(config *engine.Config) (store.Store, func(), error) {
	if config.Store.Backend != store.BackendRedis {
		st, err := engine.NewStore(logger, config, nil)
		return st, func() {}, err
	}

	opt, err := config.Redis.Options()
	if err != nil {
		return nil, nil, err
	}

	client := redis.NewClient(opt)

	st, err := engine.NewStore(logger, config, client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return st, func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close Redis client")
		}
	}, nil
}
