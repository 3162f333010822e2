package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxhq/psitree/index"
	"github.com/oxhq/psitree/internal/config"
	"github.com/oxhq/psitree/providers"
	"github.com/oxhq/psitree/providers/java"
)

var version = "0.3.0"

// app carries what every subcommand shares once flags and config are read
type app struct {
	out     io.Writer
	cfgFile string
	dbURL   string
	verbose bool

	cfg      config.Config
	logger   *zap.Logger
	registry *providers.Registry
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "psi",
		Short:         "Java syntax trees, reference resolution and switch pattern analysis",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "Configuration file (default .psi.yaml)")
	root.PersistentFlags().StringVar(&a.dbURL, "db", "", "Index database path or libsql URL (overrides database_url)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable development logging")

	root.AddCommand(
		a.initCmd(),
		a.parseCmd(),
		a.indexCmd(),
		a.resolveCmd(),
		a.patternsCmd(),
		a.renameCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.dbURL != "" {
		cfg.DatabaseURL = a.dbURL
	}
	a.cfg = cfg

	logger, err := newLogger(a.verbose || cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.logger = logger

	a.registry = providers.NewRegistry()
	a.registry.Register(java.NewWithCache(java.NewParseCache(cfg.CacheMaxAge)))
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// openIndex opens the configured index database
func (a *app) openIndex() (*index.Store, error) {
	return index.Open(a.cfg.DatabaseURL, a.cfg.Debug)
}
