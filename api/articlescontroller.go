package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/jsonschema-go/jsonschema"

	"healthbrief/appsync"
	"healthbrief/dedup"
	"healthbrief/events"
	"healthbrief/storage"
	"healthbrief/store"
	"healthbrief/types"
)

// ArticlesController drives the review workflow: listing, editing,
// approving, rejecting, exporting, and pushing articles to the app.
// Producer and Uploader are optional; leaving one nil disables the
// matching feature.
type ArticlesController struct {
	articles    store.ArticleRepository
	coordinator *dedup.Coordinator
	blobs       storage.BlobStore
	producer    *events.Producer
	uploader    *appsync.Worker
}

// NewArticlesController wires the article endpoints to their dependencies.
func NewArticlesController(articles store.ArticleRepository, coordinator *dedup.Coordinator, blobs storage.BlobStore, producer *events.Producer, uploader *appsync.Worker) *ArticlesController {
	return &ArticlesController{
		articles:    articles,
		coordinator: coordinator,
		blobs:       blobs,
		producer:    producer,
		uploader:    uploader,
	}
}

// RegisterArticleRoutes registers article review endpoints.
func RegisterArticleRoutes(rg *gin.RouterGroup, ctrl *ArticlesController) {
	g := rg.Group("/articles")
	g.GET("", ctrl.handleList)
	g.GET("/summary", ctrl.handleSummary)
	g.GET("/export", ctrl.handleExport)
	g.GET("/schema", ctrl.handleSchema)
	g.GET("/:id", ctrl.handleGet)
	g.PUT("/:id", ctrl.handleUpdate)
	g.DELETE("/:id", ctrl.handleDelete)
	g.POST("/:id/approve", ctrl.handleApprove)
	g.POST("/:id/reject", ctrl.handleReject)
	g.POST("/:id/upload-to-app", ctrl.handleUploadToApp)
}

func (ctrl *ArticlesController) handleList(c *gin.Context) {
	params := store.ArticleListParams{
		Category:    c.Query("category"),
		SourcePDFID: c.Query("source_pdf_id"),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
	}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if v := c.Query("status"); v != "" {
		status := types.ArticleStatus(v)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", v)})
			return
		}
		params.Status = status
	}

	articles, total, err := ctrl.articles.List(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	})
}

func (ctrl *ArticlesController) handleGet(c *gin.Context) {
	article, err := ctrl.articles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, article)
}

// UpdateArticleRequest carries a partial article edit; nil fields are left
// unchanged.
type UpdateArticleRequest struct {
	Title                *string   `json:"title"`
	ContentText          *string   `json:"content_text"`
	Summary              *string   `json:"summary"`
	Category             *string   `json:"category"`
	MedicalConditionTags *[]string `json:"medical_condition_tags"`
	ImageURL             *string   `json:"image_url"`
	ReviewerNotes        *string   `json:"reviewer_notes"`
}

func (ctrl *ArticlesController) handleUpdate(c *gin.Context) {
	var req UpdateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Category != nil && !slices.Contains(types.Categories, *req.Category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid category %q", *req.Category)})
		return
	}

	article, err := ctrl.articles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article: " + err.Error()})
		return
	}

	// Title is part of the embedding text, so a title edit invalidates the
	// embedding the same way a body edit does.
	embeddingStale := false
	if req.Title != nil && *req.Title != article.Title {
		article.Title = *req.Title
		embeddingStale = true
	}
	if req.ContentText != nil && *req.ContentText != article.ContentText {
		article.ContentText = *req.ContentText
		embeddingStale = true
	}
	if req.Summary != nil {
		article.Summary = *req.Summary
	}
	if req.Category != nil {
		article.Category = *req.Category
	}
	if req.MedicalConditionTags != nil {
		article.MedicalConditionTags = *req.MedicalConditionTags
	}
	if req.ImageURL != nil {
		article.ImageURL = *req.ImageURL
	}
	if req.ReviewerNotes != nil {
		article.ReviewerNotes = *req.ReviewerNotes
	}

	if embeddingStale {
		article.Embedding = nil
		// A published article must keep its index entry current, so the new
		// content is re-embedded before the edit is persisted.
		if article.Status.Published() {
			if err := ctrl.coordinator.OnPublish(c.Request.Context(), article); err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": "failed to re-embed article: " + err.Error()})
				return
			}
		}
	}

	if err := ctrl.articles.Update(c.Request.Context(), article); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update article: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, article)
}

func (ctrl *ArticlesController) handleApprove(c *gin.Context) {
	article, err := ctrl.articles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article: " + err.Error()})
		return
	}
	if article.Status == types.StatusUploaded {
		c.JSON(http.StatusConflict, gin.H{"error": "article is already uploaded"})
		return
	}

	wasPublished := article.Status.Published()
	now := time.Now().UTC()
	article.Status = types.StatusApproved
	article.ReviewedAt = &now

	// Index before persisting: an article that cannot be embedded must not
	// reach the published set unchecked.
	if err := ctrl.coordinator.OnPublish(c.Request.Context(), article); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to index article: " + err.Error()})
		return
	}

	if err := ctrl.articles.Update(c.Request.Context(), article); err != nil {
		// Roll back the entry only if this approval created it; a
		// re-approved article was already in the index.
		if !wasPublished {
			if removeErr := ctrl.coordinator.OnUnpublishOrDelete(article.ID); removeErr != nil {
				log.Printf("Failed to roll back index entry for %s: %v", article.ID, removeErr)
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update article: " + err.Error()})
		return
	}

	log.Printf("Article approved: %s (%s)", article.Title, article.ID)

	if ctrl.producer != nil {
		event := types.ArticleApprovedEvent{
			ArticleID:  article.ID,
			Title:      article.Title,
			Category:   article.Category,
			ApprovedBy: c.GetString("username"),
			ApprovedAt: now,
		}
		if err := ctrl.producer.PublishArticleApproved(event); err != nil {
			log.Printf("Failed to publish approval event for %s: %v", article.ID, err)
		}
	}

	c.JSON(http.StatusOK, article)
}

// RejectArticleRequest optionally records why the article was rejected.
type RejectArticleRequest struct {
	Reason string `json:"reason"`
}

func (ctrl *ArticlesController) handleReject(c *gin.Context) {
	var req RejectArticleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	article, err := ctrl.articles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article: " + err.Error()})
		return
	}

	wasPublished := article.Status.Published()
	now := time.Now().UTC()
	article.Status = types.StatusRejected
	article.ReviewedAt = &now
	if req.Reason != "" {
		article.ReviewerNotes = req.Reason
	}

	if err := ctrl.articles.Update(c.Request.Context(), article); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update article: " + err.Error()})
		return
	}
	if wasPublished {
		if err := ctrl.coordinator.OnUnpublishOrDelete(article.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove article from index: " + err.Error()})
			return
		}
	}

	log.Printf("Article rejected: %s (%s)", article.Title, article.ID)
	c.JSON(http.StatusOK, article)
}

func (ctrl *ArticlesController) handleDelete(c *gin.Context) {
	article, err := ctrl.articles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article: " + err.Error()})
		return
	}

	wasPublished := article.Status.Published()
	if err := ctrl.articles.Delete(c.Request.Context(), article.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete article: " + err.Error()})
		return
	}
	if wasPublished {
		if err := ctrl.coordinator.OnUnpublishOrDelete(article.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove article from index: " + err.Error()})
			return
		}
	}

	log.Printf("Article deleted: %s (%s)", article.Title, article.ID)
	c.JSON(http.StatusOK, gin.H{"message": "article deleted"})
}

func (ctrl *ArticlesController) handleSummary(c *gin.Context) {
	counts, err := ctrl.articles.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count articles: " + err.Error()})
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "total": total})
}

type exportArticle struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Category             string    `json:"category"`
	ImageURL             string    `json:"imageUrl,omitempty"`
	MedicalConditionTags []string  `json:"medicalConditionTags"`
	Content              string    `json:"content"`
	ReadingLevelScore    float64   `json:"readingLevelScore"`
	SourcePDFID          string    `json:"sourcePdfId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

type exportMetadata struct {
	ExportedAt    time.Time `json:"exported_at"`
	TotalArticles int       `json:"total_articles"`
	Category      string    `json:"category,omitempty"`
	SourcePDFID   string    `json:"source_pdf_id,omitempty"`
}

type exportDocument struct {
	Metadata exportMetadata  `json:"metadata"`
	Articles []exportArticle `json:"articles"`
}

// handleExport serializes the published set (approved and uploaded) in the
// consumer app's format. With ?upload=true the document is written to blob
// storage instead of being returned as a download.
func (ctrl *ArticlesController) handleExport(c *gin.Context) {
	category := c.Query("category")
	sourcePDFID := c.Query("source_pdf_id")

	published, err := ctrl.articles.ListPublished(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles: " + err.Error()})
		return
	}

	exported := make([]exportArticle, 0, len(published))
	for _, a := range published {
		if category != "" && a.Category != category {
			continue
		}
		if sourcePDFID != "" && a.SourcePDFID != sourcePDFID {
			continue
		}
		tags := []string(a.MedicalConditionTags)
		if tags == nil {
			tags = []string{}
		}
		exported = append(exported, exportArticle{
			ID:                   a.ID,
			Title:                a.Title,
			Category:             a.Category,
			ImageURL:             a.ImageURL,
			MedicalConditionTags: tags,
			Content:              a.ContentText,
			ReadingLevelScore:    a.ReadingLevelScore,
			SourcePDFID:          a.SourcePDFID,
			CreatedAt:            a.CreatedAt,
			UpdatedAt:            a.UpdatedAt,
		})
	}

	now := time.Now().UTC()
	doc := exportDocument{
		Metadata: exportMetadata{
			ExportedAt:    now,
			TotalArticles: len(exported),
			Category:      category,
			SourcePDFID:   sourcePDFID,
		},
		Articles: exported,
	}
	filename := fmt.Sprintf("health_articles_export_%s.json", now.Format("20060102_150405"))

	if c.Query("upload") == "true" {
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode export: " + err.Error()})
			return
		}
		key := "exports/" + filename
		if err := ctrl.blobs.Save(c.Request.Context(), key, bytes.NewReader(body), "application/json"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store export: " + err.Error()})
			return
		}
		log.Printf("Exported %d articles to %s", len(exported), key)
		c.JSON(http.StatusOK, gin.H{"storage_key": key, "total_articles": len(exported)})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.JSON(http.StatusOK, doc)
}

func (ctrl *ArticlesController) handleUploadToApp(c *gin.Context) {
	if ctrl.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "app upload is not configured"})
		return
	}

	article, err := ctrl.uploader.UploadArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		case errors.Is(err, appsync.ErrNotApproved):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload article: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, article)
}

// handleSchema returns the JSON schema of the article record, which the
// review frontend uses to render its edit form.
func (ctrl *ArticlesController) handleSchema(c *gin.Context) {
	schema, err := jsonschema.For[types.HealthArticle](nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build schema: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, schema)
}
