// Package cmd implements the semantica CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/semantica-dev/semantica/internal/config"
	"github.com/semantica-dev/semantica/internal/embed"
	"github.com/semantica-dev/semantica/internal/index"
	"github.com/semantica-dev/semantica/internal/logging"
	"github.com/semantica-dev/semantica/internal/preflight"
	"github.com/semantica-dev/semantica/internal/search"
	"github.com/semantica-dev/semantica/internal/store"
	"github.com/semantica-dev/semantica/pkg/version"
)

var (
	flagProject string
	flagDebug   bool
)

// NewRootCmd builds the root command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "semantica",
		Short:        "Semantic code search MCP server",
		Long:         "Semantica indexes a codebase into a vector store and serves\nsemantic search to MCP clients and the command line.",
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("semantica version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "project root (default: current directory)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newResetCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// app bundles the wired collaborators every command needs.
type app struct {
	cfg       *config.Config
	store     store.VectorStore
	pipeline  *index.Pipeline
	engine    *search.Engine
	estimator *preflight.Estimator
	provider  embed.Provider
	logger    *slog.Logger
	cleanup   func()
}

// newApp loads configuration and wires the store, provider, pipeline,
// engine, and estimator for one project.
func newApp(toStderr bool) (*app, error) {
	root := flagProject
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig(root)
	logCfg.Level = cfg.Logging.Level
	if flagDebug {
		logCfg.Level = "debug"
	}
	logCfg.WriteToStderr = toStderr
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	st := store.NewQdrantStore(cfg.Store, logger)
	provider, err := embed.NewProvider(cfg.Embedding, logger)
	if err != nil {
		logCleanup()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		store:     st,
		pipeline:  index.New(cfg, st, logger),
		engine:    search.NewEngine(cfg, st, provider, logger),
		estimator: preflight.New(cfg, st, provider, logger),
		provider:  provider,
		logger:    logger,
		cleanup: func() {
			_ = provider.Close()
			_ = st.Close()
			logCleanup()
		},
	}
	return a, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
