package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/query"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/logger"
)

type globalOptions struct {
	configPath string
	root       string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Query a directory of Markdown and text notes",
		Long: `corpus loads every note under a root directory, indexes it, and
answers lookups by id, keyword searches and category listings.

A document's id is its path relative to the root without the extension;
its category is the first directory of that path.

Examples:
  corpus --root ~/notes search singleton
  corpus --root ~/notes get-document design-patterns/singleton
  corpus --root ~/notes list --category spring
  corpus --config corpus.yaml serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CORPUS_CONFIG"), "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.root, "root", "", "corpus root directory (overrides corpus.root)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default: config, or warn for one-shot commands)")

	cmd.AddCommand(newServeCmd(&opts))
	cmd.AddCommand(newGetDocumentCmd(&opts))
	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newListCategoriesCmd(&opts))
	cmd.AddCommand(newListCmd(&opts))
	return cmd
}

// setup loads the configuration, applies the global flags and installs the
// default logger on stderr. fallbackLevel applies when neither the flag nor
// the environment chose a level.
func (o *globalOptions) setup(cmd *cobra.Command, fallbackLevel string) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.root != "" {
		cfg.Corpus.Root = o.root
	}
	level := cfg.Logging.Level
	switch {
	case o.logLevel != "":
		level = o.logLevel
	case fallbackLevel != "" && os.Getenv("CORPUS_LOGGING_LEVEL") == "":
		level = fallbackLevel
	}
	logger.Setup(cmd.ErrOrStderr(), level, cfg.Logging.Format)
	return cfg, nil
}

// loadService builds a Ready query service for one-shot commands.
func loadService(ctx context.Context, cfg *config.Config) (*query.Service, error) {
	svc := query.New(query.Options{
		Load:      store.OptionsFromConfig(cfg.Corpus),
		TraceLoad: cfg.Tracing.Enabled,
	})
	if err := svc.Load(ctx, cfg.Corpus.Root); err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	return svc, nil
}
