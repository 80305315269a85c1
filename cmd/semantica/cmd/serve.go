package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semantica-dev/semantica/internal/index"
	"github.com/semantica-dev/semantica/internal/mcp"
	"github.com/semantica-dev/semantica/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP tools over stdio",
		Long:  "Starts the MCP server on stdin/stdout and watches the project\nstate directory for reindex triggers dropped by git hooks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Stdout belongs to the MCP transport; logs stay in the file.
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.cleanup()

			server, err := mcp.NewServer(a.cfg, mcp.Deps{
				Indexer:   a.pipeline,
				Searcher:  a.engine,
				Preflight: a.estimator,
				Store:     a.store,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Release a lock this process may hold when terminated
			// mid-pipeline.
			defer func() { _ = a.pipeline.Lock().Release() }()

			if !noWatch {
				w := watcher.New(a.cfg.DataDir(), watcher.DefaultPollInterval,
					func(ctx context.Context, t watcher.Trigger) {
						result, err := a.pipeline.ReindexChangedFiles(ctx, index.ReindexOptions{
							SpecificFiles: t.Files,
						}, nil)
						if err != nil {
							a.logger.Warn("triggered reindex failed",
								slog.String("error", err.Error()))
							return
						}
						a.logger.Info("triggered reindex finished",
							slog.Bool("success", result.Success),
							slog.Int("chunks", result.TotalChunks))
					}, a.logger)
				go func() { _ = w.Run(ctx) }()
			}

			err = server.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "disable the reindex trigger watcher")
	return cmd
}
