package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semantica-dev/semantica/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		maxResults  int
		minScore    float64
		language    string
		pathPattern string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.cleanup()

			query := args[0]
			for _, arg := range args[1:] {
				query += " " + arg
			}

			results, err := a.engine.Search(cmd.Context(), query, search.Options{
				MaxResults:  maxResults,
				MinScore:    minScore,
				Language:    language,
				PathPattern: pathPattern,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%2d. %s:%d-%d  (%.3f)", r.Rank, r.FilePath, r.StartLine, r.EndLine, r.Score)
				if r.SymbolName != "" {
					fmt.Printf("  %s %s", r.ChunkType, r.SymbolName)
				}
				fmt.Println()
				fmt.Println(indent(r.Snippet, "    "))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "maximum results (default from config)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum similarity in [0,1] (default from config)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "restrict to one language")
	cmd.Flags().StringVar(&pathPattern, "path-pattern", "", "case-insensitive regex on file paths")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
