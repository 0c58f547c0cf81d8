package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"healthbrief/config"
	"healthbrief/dedup"
	"healthbrief/feedwatch"
	"healthbrief/store"
)

var feedScanCmd = &cobra.Command{
	Use:   "feed-scan [feed ...]",
	Short: "Scan health feeds and report library coverage",
	Long: `Fetch health-publisher feeds and classify each entry against the
published article set, reporting which topics the library already covers.

Feeds may be preset names (cdc, who, nih, mlp) or direct URLs. Without
arguments the FEED_URLS environment list is scanned, falling back to the cdc
preset. The scan is read-only: nothing is stored.

Examples:
  healthbriefctl feed-scan
  healthbriefctl feed-scan who nih
  healthbriefctl feed-scan https://example.org/feed.xml`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := config.Load()

		feedInputs := args
		if len(feedInputs) == 0 {
			feedInputs = cfg.FeedURLs
		}
		if len(feedInputs) == 0 {
			feedInputs = []string{feedwatch.DefaultFeedPreset}
		}
		feeds := make([]feedwatch.FeedConfig, 0, len(feedInputs))
		for _, input := range feedInputs {
			feeds = append(feeds, feedwatch.ResolveFeed(input))
		}

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
		if err := coordinator.OnStartup(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to build index: %v\n", err)
			os.Exit(1)
		}

		classifier, err := dedup.NewClassifier(index, provider, dedup.ClassifierConfig{
			SimilarityThreshold: cfg.SimilarityThreshold,
			EmbedTimeout:        cfg.EmbedTimeout,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Scanning %d feed(s) against %d published article(s)...\n\n", len(feeds), index.Len())

		watcher := feedwatch.NewWatcher(feeds, classifier)
		report, err := watcher.Scan(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		for _, item := range report.Items {
			switch {
			case item.Covered:
				fmt.Printf("  %s  [%s] %q - %.0f%% similar to %s\n",
					yellow("COVERED"), item.FeedName, item.Title, item.Score*100, item.MatchedArticleID)
			case strings.TrimSpace(item.FullText) == "" && strings.TrimSpace(item.Summary) == "":
				fmt.Printf("  %s   [%s] %q - no text to classify\n",
					red("FAILED"), item.FeedName, item.Title)
			default:
				fmt.Printf("  %s    [%s] %q - best match %.0f%%\n",
					green("NOVEL"), item.FeedName, item.Title, item.Score*100)
			}
		}

		if len(report.Errors) > 0 {
			fmt.Println()
			for _, msg := range report.Errors {
				fmt.Printf("  %s %s\n", red("ERROR"), msg)
			}
		}

		fmt.Println()
		fmt.Printf("Scanned %d item(s): %d novel, %d covered, %d failed\n",
			len(report.Items), report.Novel, report.Covered, report.Failed)
	},
}

func init() {
	rootCmd.AddCommand(feedScanCmd)
}
