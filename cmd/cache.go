package cmd

import (
	"fmt"
	"time"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/store"

	"github.com/spf13/cobra"
)

var flagPruneAge time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached responses per dataset",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached response",
	RunE:  runCacheClear,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached responses older than a given age",
	RunE:  runCachePrune,
}

func init() {
	cachePruneCmd.Flags().DurationVar(&flagPruneAge, "older-than", 24*time.Hour, "Maximum age to keep")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*store.Cache, error) {
	c, err := store.Open(pipeline.CachePath())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

func runCacheStats(_ *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.Stats()
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}

	fmt.Printf("  Cache file: %s\n", pipeline.CachePath())
	fmt.Printf("  Entries:    %s (%s)\n", cli.FormatNumber(int64(st.Entries)), cli.FormatBytes(st.Bytes))
	if st.Entries > 0 {
		fmt.Printf("  Oldest:     %s\n", st.Oldest.Format(time.DateTime))
		fmt.Printf("  Newest:     %s\n", st.Newest.Format(time.DateTime))
	}
	fmt.Println()

	if len(st.Datasets) > 0 {
		rows := make([][]string, 0, len(st.Datasets))
		for _, ds := range st.Datasets {
			rows = append(rows, []string{ds.Dataset, cli.FormatNumber(int64(ds.Entries)), cli.FormatBytes(ds.Bytes)})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "By Dataset",
			Headers: []string{"Dataset", "Entries", "Size"},
			Rows:    rows,
			Align:   []cli.Align{cli.AlignLeft, cli.AlignRight, cli.AlignRight},
		}))
	}
	return nil
}

func runCacheClear(_ *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Println("  Cache cleared.")
	return nil
}

func runCachePrune(_ *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Prune(flagPruneAge)
	if err != nil {
		return fmt.Errorf("pruning cache: %w", err)
	}
	fmt.Printf("  Removed %s entries older than %s.\n", cli.FormatNumber(n), flagPruneAge)
	return nil
}
