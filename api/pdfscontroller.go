package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"healthbrief/config"
	"healthbrief/pipeline"
	"healthbrief/storage"
	"healthbrief/store"
	"healthbrief/types"
)

// PDFsController manages PDF upload jobs and their processing lifecycle.
type PDFsController struct {
	pdfs      store.PDFRepository
	blobs     storage.BlobStore
	processor *pipeline.Processor
}

// NewPDFsController wires the PDF job endpoints to their dependencies.
func NewPDFsController(pdfs store.PDFRepository, blobs storage.BlobStore, processor *pipeline.Processor) *PDFsController {
	return &PDFsController{pdfs: pdfs, blobs: blobs, processor: processor}
}

// RegisterPDFRoutes registers PDF job endpoints.
func RegisterPDFRoutes(rg *gin.RouterGroup, ctrl *PDFsController) {
	g := rg.Group("/pdfs")
	g.POST("/upload", ctrl.handleUpload)
	g.POST("/:id/process", ctrl.handleProcess)
	g.GET("", ctrl.handleList)
	g.GET("/:id", ctrl.handleGet)
	g.DELETE("/:id", ctrl.handleDelete)
}

func (ctrl *PDFsController) handleUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a PDF file is required"})
		return
	}
	defer file.Close()

	if header.Size > config.MaxUploadSizeMB*1024*1024 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file too large, maximum size is %dMB", config.MaxUploadSizeMB),
		})
		return
	}
	if ct := header.Header.Get("Content-Type"); ct != config.PDFContentType {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF files are supported"})
		return
	}

	id := uuid.NewString()
	key := "pdfs/" + id + ".pdf"
	if err := ctrl.blobs.Save(c.Request.Context(), key, file, config.PDFContentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store pdf: " + err.Error()})
		return
	}

	doc := &types.PDFDocument{
		ID:         id,
		Filename:   header.Filename,
		StorageKey: key,
		SizeBytes:  header.Size,
		Status:     types.PDFStatusUploaded,
		UploadedAt: time.Now().UTC(),
	}
	if err := ctrl.pdfs.Create(c.Request.Context(), doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record pdf: " + err.Error()})
		return
	}

	log.Printf("PDF uploaded: %s (%s, %d bytes)", doc.Filename, doc.ID, doc.SizeBytes)
	c.JSON(http.StatusCreated, doc)
}

// handleProcess starts the extraction pipeline for an uploaded PDF. It runs
// asynchronously and returns 202 Accepted immediately.
func (ctrl *PDFsController) handleProcess(c *gin.Context) {
	id := c.Param("id")
	doc, err := ctrl.pdfs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pdf not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pdf: " + err.Error()})
		return
	}
	if doc.Status == types.PDFStatusProcessing {
		c.JSON(http.StatusConflict, gin.H{"error": "pdf is already being processed"})
		return
	}

	go func() {
		if err := ctrl.processor.ProcessPDF(context.Background(), id); err != nil {
			log.Printf("Background processing failed for PDF %s: %v", id, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "processing started", "id": id})
}

func (ctrl *PDFsController) handleList(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	docs, total, err := ctrl.pdfs.List(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list pdfs: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pdfs":  docs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (ctrl *PDFsController) handleGet(c *gin.Context) {
	doc, err := ctrl.pdfs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pdf not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pdf: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (ctrl *PDFsController) handleDelete(c *gin.Context) {
	doc, err := ctrl.pdfs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pdf not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pdf: " + err.Error()})
		return
	}

	if err := ctrl.blobs.Delete(c.Request.Context(), doc.StorageKey); err != nil {
		log.Printf("Failed to delete stored pdf %s: %v", doc.StorageKey, err)
	}
	if err := ctrl.pdfs.Delete(c.Request.Context(), doc.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete pdf: " + err.Error()})
		return
	}

	log.Printf("PDF deleted: %s (%s)", doc.Filename, doc.ID)
	c.JSON(http.StatusOK, gin.H{"message": "pdf deleted"})
}
