package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"healthbrief/dedup"
	"healthbrief/store"
)

// DedupController exposes the duplicate-detection admin surface: ad-hoc
// similarity checks, index introspection, and a full rebuild.
type DedupController struct {
	classifier  *dedup.Classifier
	coordinator *dedup.Coordinator
	index       dedup.Index
	articles    store.ArticleRepository
}

// NewDedupController wires the dedup admin endpoints to their dependencies.
func NewDedupController(classifier *dedup.Classifier, coordinator *dedup.Coordinator, index dedup.Index, articles store.ArticleRepository) *DedupController {
	return &DedupController{
		classifier:  classifier,
		coordinator: coordinator,
		index:       index,
		articles:    articles,
	}
}

// RegisterDeduplicationRoutes registers deduplication admin endpoints.
func RegisterDeduplicationRoutes(rg *gin.RouterGroup, ctrl *DedupController) {
	g := rg.Group("/dedup")
	g.POST("/check", ctrl.handleCheck)
	g.GET("/count", ctrl.handleCount)
	g.GET("/flagged", ctrl.handleFlagged)
	g.POST("/rebuild", ctrl.handleRebuild)
}

// CheckRequest represents a candidate text to classify against the
// published set.
type CheckRequest struct {
	Text string `json:"text" binding:"required"`
}

// handleCheck classifies a candidate text without storing anything.
func (ctrl *DedupController) handleCheck(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ctrl.classifier.Classify(c.Request.Context(), req.Text)
	if err != nil {
		var unavailable *dedup.EmbeddingUnavailableError
		if errors.As(err, &unavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to classify text: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleCount returns the number of indexed articles.
func (ctrl *DedupController) handleCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":     ctrl.index.Len(),
		"dimension": ctrl.index.Dimension(),
	})
}

// handleFlagged lists draft articles the classifier flagged against a
// published article, most similar first.
func (ctrl *DedupController) handleFlagged(c *gin.Context) {
	articles, err := ctrl.articles.ListFlaggedDuplicates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list flagged articles: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

// handleRebuild repopulates the similarity index from the stored published
// set, recomputing embeddings for any article missing one.
func (ctrl *DedupController) handleRebuild(c *gin.Context) {
	if err := ctrl.coordinator.OnStartup(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rebuild index: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rebuilt", "count": ctrl.index.Len()})
}
