// Package api exposes the review service over HTTP: reviewer auth, PDF
// ingestion jobs, the article review workflow, and duplicate-detection
// administration.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"healthbrief/auth"
)

// Controllers groups the route handlers mounted by NewRouter. Feeds is
// optional; leaving it nil skips the feed-scan routes.
type Controllers struct {
	Auth     *AuthController
	PDFs     *PDFsController
	Articles *ArticlesController
	Dedup    *DedupController
	Feeds    *FeedsController
}

// NewRouter constructs a Gin engine with registered routes. The health
// probe and login are public; everything else requires a reviewer token.
func NewRouter(tokens *auth.Service, ctrl Controllers) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.GET("/api/health", handleHealth)

	v1 := r.Group("/api/v1")

	protected := v1.Group("")
	protected.Use(auth.RequireAuth(tokens))

	// Register resource routers
	RegisterAuthRoutes(v1, protected, ctrl.Auth)
	RegisterPDFRoutes(protected, ctrl.PDFs)
	RegisterArticleRoutes(protected, ctrl.Articles)
	RegisterDeduplicationRoutes(protected, ctrl.Dedup)
	if ctrl.Feeds != nil {
		RegisterFeedRoutes(protected, ctrl.Feeds)
	}

	return r
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
