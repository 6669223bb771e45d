package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nooikko/nightreign-query/internal/config"
	logpkg "github.com/nooikko/nightreign-query/internal/logger"
	"github.com/nooikko/nightreign-query/internal/metrics"
	"github.com/nooikko/nightreign-query/internal/version"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:   "nightreign",
		Short: "Crawl the Nightreign wiki and search it",
		Long: `nightreign crawls the Elden Ring Nightreign wiki into a local content cache,
indexes the cached pages into Redis and answers hybrid (BM25 + vector) queries.`,
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.init(configPath)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config (default: config/$ENV.yaml)")

	root.AddCommand(
		newCrawlCmd(a),
		newCrawlCacheCmd(a),
		newIngestCmd(a),
		newSearchCmd(a),
		newServeCmd(a),
		newCacheCmd(a),
	)
	return root
}

func (a *app) init(configPath string) error {
	a.env = config.GetEnv()

	var err error
	if configPath != "" {
		a.cfg, err = config.LoadFile(configPath)
	} else {
		a.cfg, err = config.Load(a.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a.logger, err = logpkg.NewLogger(a.env, a.cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	metrics.Register()

	a.logger.Debug("Configuration loaded",
		zap.String("version", version.Version),
		zap.String("env", a.env),
		zap.String("cache_driver", a.cfg.Cache.Driver),
		zap.Strings("db_addrs", a.cfg.Database.Addrs),
	)
	return nil
}
