package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemascout",
		Short: "Discovers product structured data on e-commerce sites",
		Long: `schemascout drives a headless browser across an e-commerce site,
prioritizing likely product pages, extracting and classifying the JSON-LD
structured data it finds, and reporting the deduplicated product schemas.`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ., /etc/schemascout, $HOME/.schemascout)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newDetectCmd())
	return cmd
}

func initConfig() {
	config.InitDefaults()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// setup loads the merged configuration and builds the process logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Development)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
