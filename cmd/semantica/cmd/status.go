package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/semantica-dev/semantica/internal/store"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status and collection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.cleanup()

			ctx := cmd.Context()

			type status struct {
				ProjectRoot     string       `json:"projectRoot"`
				Collection      string       `json:"collection"`
				CollectionReady bool         `json:"collectionReady"`
				Stats           *store.Stats `json:"stats,omitempty"`
				LedgerPresent   bool         `json:"ledgerPresent"`
				VectorDBHealthy bool         `json:"vectorDBHealthy"`
				ProviderHealthy bool         `json:"providerHealthy"`
				Locked          bool         `json:"locked"`
			}

			st := status{
				ProjectRoot:     a.cfg.ProjectRoot,
				Collection:      a.cfg.Store.Collection,
				VectorDBHealthy: a.store.HealthCheck(ctx),
				ProviderHealthy: a.provider.HealthCheck(ctx),
			}

			if _, err := os.Stat(a.pipeline.Ledger().Path()); err == nil {
				st.LedgerPresent = true
			}
			if locked, err := a.pipeline.Lock().IsLocked(); err == nil {
				st.Locked = locked
			}

			if st.VectorDBHealthy {
				exists, err := a.store.CollectionExists(ctx, st.Collection)
				if err == nil && exists {
					st.CollectionReady = true
					if stats, err := a.store.GetStats(ctx, st.Collection); err == nil {
						st.Stats = &stats
					}
				}
			}

			if asJSON {
				return printJSON(st)
			}

			fmt.Printf("project:     %s\n", st.ProjectRoot)
			fmt.Printf("collection:  %s (ready: %v)\n", st.Collection, st.CollectionReady)
			if st.Stats != nil {
				fmt.Printf("points:      %d (dim %d, %s)\n", st.Stats.PointsCount, st.Stats.VectorDim, st.Stats.Status)
			}
			fmt.Printf("ledger:      %v\n", st.LedgerPresent)
			fmt.Printf("vector db:   healthy=%v\n", st.VectorDBHealthy)
			fmt.Printf("provider:    healthy=%v\n", st.ProviderHealthy)
			fmt.Printf("locked:      %v\n", st.Locked)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")
	return cmd
}
