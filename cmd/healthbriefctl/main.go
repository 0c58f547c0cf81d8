package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"healthbrief/config"
	"healthbrief/dedup"
	"healthbrief/store"
)

var rootCmd = &cobra.Command{
	Use:   "healthbriefctl",
	Short: "Admin tooling for the health article review service",
	Long: `Maintenance commands that run against the review database directly.

All commands read the same environment variables as the API server
(DB_HOST, DB_NAME, COHERE_API_KEY / OPENAI_API_KEY, and so on), so they can
run from the same .env file.`,
}

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openArticles connects to the review database and returns the article store
// plus the handle to close when done.
func openArticles(cfg config.Config) (store.ArticleRepository, *gorm.DB, error) {
	db, err := store.Open(cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store.NewArticleRepository(db), db, nil
}

// buildProvider resolves the embeddings provider from the environment.
func buildProvider() (dedup.EmbeddingsProvider, error) {
	provider := dedup.NewDefaultEmbeddingsProvider("")
	if provider == nil {
		return nil, fmt.Errorf("embeddings provider is required: set COHERE_API_KEY or OPENAI_API_KEY")
	}
	return provider, nil
}
