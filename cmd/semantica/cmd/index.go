package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semantica-dev/semantica/internal/index"
)

func newIndexCmd() *cobra.Command {
	var (
		incremental bool
		force       bool
		skipChecks  bool
		files       []string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the project into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			defer func() { _ = a.pipeline.Lock().Release() }()

			if !skipChecks && !incremental {
				est, err := a.estimator.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("files: %d, estimated chunks: %d, estimated time: %s\n",
					est.FilesCount, est.EstimatedChunks, est.EstimatedTime.Round(time.Second))
				if est.EstimatedCost > 0 {
					fmt.Printf("estimated cost: $%.4f\n", est.EstimatedCost)
				}
				for _, w := range est.Warnings {
					fmt.Printf("warning: %s\n", w)
				}
			}

			onProgress := func(p index.Progress) {
				fmt.Printf("\r%-10s %d/%d", p.Phase, p.Current, p.Total)
			}

			if incremental || len(files) > 0 {
				result, err := a.pipeline.ReindexChangedFiles(ctx, index.ReindexOptions{
					SpecificFiles: files,
					Force:         force,
				}, onProgress)
				if err != nil {
					return err
				}
				fmt.Println()
				return printJSON(result)
			}

			result, err := a.pipeline.IndexCodebase(ctx, onProgress)
			if err != nil {
				return err
			}
			fmt.Println()
			return printJSON(result)
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "reindex only files the ledger reports changed")
	cmd.Flags().BoolVar(&force, "force", false, "evict a stale lock holder")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "skip the pre-flight estimate")
	cmd.Flags().StringSliceVar(&files, "file", nil, "specific files to reindex (implies incremental)")
	return cmd
}
