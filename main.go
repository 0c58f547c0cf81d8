package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"healthbrief/api"
	"healthbrief/appsync"
	"healthbrief/auth"
	"healthbrief/config"
	"healthbrief/dedup"
	"healthbrief/events"
	"healthbrief/feedwatch"
	"healthbrief/images"
	"healthbrief/llm"
	"healthbrief/pipeline"
	"healthbrief/storage"
	"healthbrief/store"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := store.Open(cfg.DSN())
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer store.Close(db)

	articles := store.NewArticleRepository(db)
	pdfs := store.NewPDFRepository(db)

	blobs, err := storage.New(context.Background(), storage.Config{
		Bucket:   cfg.S3Bucket,
		Prefix:   cfg.S3Prefix,
		Region:   cfg.S3Region,
		LocalDir: cfg.UploadDir,
	})
	if err != nil {
		log.Fatalf("blob storage error: %v", err)
	}

	provider := dedup.NewDefaultEmbeddingsProvider("")
	if provider == nil {
		log.Fatalf("embeddings provider is required: set COHERE_API_KEY or OPENAI_API_KEY")
	}

	// Redis is optional; without it embeddings are recomputed on every call
	// and the exact-duplicate prefilter is skipped.
	var cache dedup.EmbeddingCache
	var bloom pipeline.Bloom
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cache = dedup.NewRedisEmbeddingCache(redisClient, provider.ModelName(), config.EmbeddingCacheTTL)

		rb, err := dedup.NewRedisBloom(dedup.BloomConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      "healthbrief:articles:bloom",
		})
		if err != nil {
			log.Printf("Warning: bloom prefilter disabled: %v", err)
		} else {
			bloom = rb
		}
	} else {
		log.Println("REDIS_ADDR not set; embedding cache and bloom prefilter disabled")
	}

	index := dedup.NewMemoryIndex()
	coordinator, err := dedup.NewCoordinator(index, provider, articles, dedup.CoordinatorConfig{
		EmbedTimeout: cfg.EmbedTimeout,
		Cache:        cache,
	})
	if err != nil {
		log.Fatalf("coordinator error: %v", err)
	}
	classifier, err := dedup.NewClassifier(index, provider, dedup.ClassifierConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		EmbedTimeout:        cfg.EmbedTimeout,
		Cache:               cache,
	})
	if err != nil {
		log.Fatalf("classifier error: %v", err)
	}

	// The index lives in memory only; rebuild it from the published set
	// before accepting traffic.
	if err := coordinator.OnStartup(context.Background()); err != nil {
		log.Fatalf("index rebuild error: %v", err)
	}

	summarizer, err := llm.NewClient(os.Getenv("OPENAI_API_KEY"))
	if err != nil {
		log.Fatalf("llm client error: %v", err)
	}

	var matcher pipeline.ImageMatcher
	if cfg.UnsplashAccessKey != "" {
		matcher = images.NewUnsplashMatcher(cfg.UnsplashAccessKey)
	} else {
		log.Println("UNSPLASH_ACCESS_KEY not set; articles will be stored without images")
	}

	processor, err := pipeline.NewProcessor(pipeline.Deps{
		PDFs:       pdfs,
		Articles:   articles,
		Blobs:      blobs,
		LLM:        summarizer,
		Images:     matcher,
		Classifier: classifier,
		Bloom:      bloom,
	})
	if err != nil {
		log.Fatalf("pipeline error: %v", err)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicApproved)
		if err != nil {
			log.Fatalf("kafka producer error: %v", err)
		}
		defer producer.Close()
	} else {
		log.Println("KAFKA_BROKERS not set; approval events disabled")
	}

	var uploader *appsync.Worker
	if cfg.AppAPIURL != "" {
		appClient, err := appsync.NewClient(cfg.AppAPIURL, cfg.AppAPIKey)
		if err != nil {
			log.Fatalf("app client error: %v", err)
		}
		uploader = appsync.NewWorker(articles, appClient)
	} else {
		log.Println("APP_DB_API_URL not set; direct app uploads disabled")
	}

	feedInputs := cfg.FeedURLs
	if len(feedInputs) == 0 {
		feedInputs = []string{feedwatch.DefaultFeedPreset}
	}
	feeds := make([]feedwatch.FeedConfig, 0, len(feedInputs))
	for _, input := range feedInputs {
		feeds = append(feeds, feedwatch.ResolveFeed(input))
	}
	watcher := feedwatch.NewWatcher(feeds, classifier)

	tokens, err := auth.NewService(cfg.JWTSecret, config.TokenExpiry)
	if err != nil {
		log.Fatalf("auth error: %v", err)
	}
	if cfg.AdminPasswordHash == "" {
		log.Fatalf("ADMIN_PASSWORD_HASH is required")
	}

	router := api.NewRouter(tokens, api.Controllers{
		Auth:     api.NewAuthController(tokens, cfg.AdminUsername, cfg.AdminPasswordHash),
		PDFs:     api.NewPDFsController(pdfs, blobs, processor),
		Articles: api.NewArticlesController(articles, coordinator, blobs, producer, uploader),
		Dedup:    api.NewDedupController(classifier, coordinator, index, articles),
		Feeds:    api.NewFeedsController(watcher),
	})

	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s", addr)
	log.Println("API endpoints available:")
	log.Println("  GET  /api/health")
	log.Println("  POST /api/v1/auth/login")
	log.Println("  POST /api/v1/pdfs/upload")
	log.Println("  POST /api/v1/pdfs/:id/process")
	log.Println("  GET  /api/v1/articles")
	log.Println("  POST /api/v1/articles/:id/approve")
	log.Println("  POST /api/v1/dedup/check")
	log.Println("  POST /api/v1/feeds/scan")

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
