package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/semantica-dev/semantica/internal/ledger"
	"github.com/semantica-dev/semantica/internal/lock"
	"github.com/semantica-dev/semantica/internal/watcher"
)

func newResetCmd() *cobra.Command {
	var clearCollection bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove local indexing state",
		Long:  "Removes the change ledger, lock file, and pending triggers.\nWith --collection the vector collection is deleted too.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.cleanup()

			dataDir := a.cfg.DataDir()
			for _, name := range []string{
				ledger.FileName,
				ledger.FileName + ".lock",
				lock.FileName,
				watcher.TriggerFileName,
			} {
				if err := os.Remove(filepath.Join(dataDir, name)); err == nil {
					fmt.Printf("removed %s\n", name)
				}
			}

			if clearCollection {
				ctx := cmd.Context()
				collection := a.cfg.Store.Collection
				exists, err := a.store.CollectionExists(ctx, collection)
				if err != nil {
					return err
				}
				if exists {
					if err := a.store.DeleteCollection(ctx, collection); err != nil {
						return err
					}
					fmt.Printf("deleted collection %s\n", collection)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearCollection, "collection", false, "also delete the vector collection")
	return cmd
}
