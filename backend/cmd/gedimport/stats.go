package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/app"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/graph"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node and relationship counts of the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return app.WithStore(ctx, cfg, func(store graph.Store) error {
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the lookup indexes used by imports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := *cfg
		c.EnsureSchema = false
		return app.WithStore(ctx, &c, func(store graph.Store) error {
			if err := app.Migrate(ctx, store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(migrateCmd)
}

func printStats(w io.Writer, s *graph.Stats) {
	fmt.Fprintf(w, "Store: %d nodes, %d relationships\n", s.NodeCount, s.EdgeCount)
	for _, label := range sortedKeys(s.NodesByLabel) {
		fmt.Fprintf(w, "  (:%s) %d\n", label, s.NodesByLabel[label])
	}
	for _, relType := range sortedKeys(s.EdgesByType) {
		fmt.Fprintf(w, "  [:%s] %d\n", relType, s.EdgesByType[relType])
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
