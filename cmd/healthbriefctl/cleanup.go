package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"healthbrief/config"
	"healthbrief/dedup"
	"healthbrief/store"
	"healthbrief/types"
)

// Cohere caps one embed call at 96 texts.
const embedBatchSize = 96

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-duplicates",
	Short: "Find and remove near-duplicate articles",
	Long: `Scan every stored article for near-duplicates and keep one per group.

Articles are compared pairwise by embedding similarity; stored embeddings are
reused and missing ones are computed on the fly. Connected groups of
near-duplicates each keep their oldest member, preferring a published article
when creation times tie, and the rest are flagged for deletion.

By default nothing is deleted. Pass --apply to perform the deletions, then
restart the API server or call POST /api/v1/dedup/rebuild so the in-memory
index drops the removed entries.

Examples:
  healthbriefctl cleanup-duplicates                  # Report duplicate groups
  healthbriefctl cleanup-duplicates --threshold 0.9  # Stricter match cutoff
  healthbriefctl cleanup-duplicates --apply          # Delete flagged duplicates`,
	Run: func(cmd *cobra.Command, args []string) {
		apply, _ := cmd.Flags().GetBool("apply")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		if threshold <= 0 || threshold > 1 {
			fmt.Fprintf(os.Stderr, "Error: threshold must be within (0,1], got %v\n", threshold)
			os.Exit(1)
		}

		ctx := context.Background()
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

		if !apply {
			fmt.Printf("%s\n", color.YellowString("DRY RUN MODE - No articles will be deleted"))
		}

		all, err := listAllArticles(ctx, articles)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list articles: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Checking %d articles for duplicates (threshold %.2f)...\n\n", len(all), threshold)

		candidates, skipped, err := resolveVectors(ctx, provider, all)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to embed articles: %v\n", err)
			os.Exit(1)
		}
		if skipped > 0 {
			fmt.Printf("Skipped %d articles with no embeddable content\n\n", skipped)
		}

		groups := groupDuplicates(candidates, threshold)
		if len(groups) == 0 {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s No duplicate groups found\n", green("✓"))
			return
		}

		deleted := 0
		for i, group := range groups {
			fmt.Printf("--- Duplicate Group %d (%d articles) ---\n", i+1, len(group))

			keep := group[0]
			fmt.Printf("  KEEP:   %s - %q (%s, created %s)\n",
				keep.ID, keep.Title, keep.Status, keep.CreatedAt.Format("2006-01-02"))

			for _, dup := range group[1:] {
				fmt.Printf("  DELETE: %s - %q (%s, created %s)\n",
					dup.ID, dup.Title, dup.Status, dup.CreatedAt.Format("2006-01-02"))

				if apply {
					if err := articles.Delete(ctx, dup.ID); err != nil {
						fmt.Fprintf(os.Stderr, "  Error: failed to delete %s: %v\n", dup.ID, err)
						continue
					}
				}
				deleted++
			}
			fmt.Println()
		}

		if apply {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s Deleted %d duplicate article(s) across %d group(s)\n", green("✓"), deleted, len(groups))
			fmt.Println("Restart the API server or call POST /api/v1/dedup/rebuild to refresh the similarity index")
		} else {
			fmt.Printf("Would delete %d duplicate article(s) across %d group(s)\n", deleted, len(groups))
			fmt.Println("Run with --apply to perform the cleanup")
		}
	},
}

func init() {
	cleanupCmd.Flags().Bool("apply", false, "Delete flagged duplicates instead of only reporting them")
	cleanupCmd.Flags().Float64("threshold", config.DefaultSimilarityThreshold, "Similarity at or above which two articles count as duplicates")
	rootCmd.AddCommand(cleanupCmd)
}

// listAllArticles pages through the full article table.
func listAllArticles(ctx context.Context, articles store.ArticleRepository) ([]types.HealthArticle, error) {
	const pageSize = 200
	var all []types.HealthArticle
	for page := 1; ; page++ {
		batch, _, err := articles.List(ctx, store.ArticleListParams{Page: page, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
}

type cleanupCandidate struct {
	article types.HealthArticle
	vector  []float32
}

// resolveVectors pairs each article with its embedding, reusing stored
// vectors and batch-embedding the rest. Articles with no embeddable text are
// skipped and counted.
func resolveVectors(ctx context.Context, provider dedup.EmbeddingsProvider, all []types.HealthArticle) ([]cleanupCandidate, int, error) {
	candidates := make([]cleanupCandidate, 0, len(all))
	var pendingTexts []string
	var pendingIdx []int

	for i := range all {
		article := all[i]
		if vector := []float32(article.Embedding); len(vector) > 0 {
			candidates = append(candidates, cleanupCandidate{article: article, vector: vector})
			continue
		}
		text := article.EmbeddingText()
		if text == "" {
			continue
		}
		candidates = append(candidates, cleanupCandidate{article: article})
		pendingTexts = append(pendingTexts, text)
		pendingIdx = append(pendingIdx, len(candidates)-1)
	}
	skipped := len(all) - len(candidates)

	for start := 0; start < len(pendingTexts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pendingTexts) {
			end = len(pendingTexts)
		}
		vectors, err := provider.EmbedTexts(ctx, pendingTexts[start:end])
		if err != nil {
			return nil, 0, err
		}
		for i, vector := range vectors {
			candidates[pendingIdx[start+i]].vector = vector
		}
	}
	return candidates, skipped, nil
}

// groupDuplicates clusters candidates whose pairwise similarity clears the
// threshold and orders each cluster so the article to keep comes first:
// oldest creation time, published status breaking ties.
func groupDuplicates(candidates []cleanupCandidate, threshold float64) [][]types.HealthArticle {
	parent := make([]int, len(candidates))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if dedup.CosineSimilarity(candidates[i].vector, candidates[j].vector) >= threshold {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	byRoot := make(map[int][]types.HealthArticle)
	for i := range candidates {
		root := find(i)
		byRoot[root] = append(byRoot[root], candidates[i].article)
	}

	var groups [][]types.HealthArticle
	for _, group := range byRoot {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].Status.Published() && !group[j].Status.Published()
		})
		groups = append(groups, group)
	}
	// Map iteration order is random; keep the report stable.
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0].CreatedAt.Before(groups[j][0].CreatedAt)
	})
	return groups
}
