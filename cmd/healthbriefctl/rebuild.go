package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"healthbrief/config"
	"healthbrief/dedup"
	"healthbrief/store"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Rebuild the similarity index from the published set",
	Long: `Run the startup index rebuild standalone and report the result.

The API server holds the similarity index in memory and rebuilds it from the
published article set every time it starts. This command runs the same
rebuild against a throwaway index, which verifies that every published
article either carries a stored embedding or can be re-embedded by the
provider before the next deploy depends on it.

Examples:
  healthbriefctl rebuild-index`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		articles, db, err := openArticles(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close(db)

		provider, err := buildProvider()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		index := dedup.NewMemoryIndex()
		coordinator, err := dedup.NewCoordinator(index, provider, articles, dedup.CoordinatorConfig{
			EmbedTimeout: cfg.EmbedTimeout,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Rebuilding similarity index from the published set...")
		start := time.Now()
		if err := coordinator.OnStartup(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: rebuild failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Rebuild complete\n", green("✓"))
		fmt.Printf("  Articles indexed: %d\n", index.Len())
		fmt.Printf("  Vector dimension: %d\n", index.Dimension())
		fmt.Printf("  Time taken: %s\n", time.Since(start).Round(time.Millisecond))
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
