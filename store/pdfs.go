package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"healthbrief/types"
)

// PDFRepository is the persistence surface for uploaded source PDFs.
type PDFRepository interface {
	Create(ctx context.Context, doc *types.PDFDocument) error
	GetByID(ctx context.Context, id string) (*types.PDFDocument, error)
	List(ctx context.Context, page, limit int) ([]types.PDFDocument, int64, error)
	SetPageCount(ctx context.Context, id string, pages int) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, stats types.ProcessingStats) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	Delete(ctx context.Context, id string) error
}

type pdfRepository struct {
	db *gorm.DB
}

// NewPDFRepository wraps a gorm handle in the PDF persistence API.
func NewPDFRepository(db *gorm.DB) PDFRepository {
	return &pdfRepository{db: db}
}

func (r *pdfRepository) Create(ctx context.Context, doc *types.PDFDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = types.PDFStatusUploaded
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *pdfRepository) GetByID(ctx context.Context, id string) (*types.PDFDocument, error) {
	var doc types.PDFDocument
	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *pdfRepository) List(ctx context.Context, page, limit int) ([]types.PDFDocument, int64, error) {
	var docs []types.PDFDocument
	var total int64

	query := r.db.WithContext(ctx).Model(&types.PDFDocument{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	err := query.Order("uploaded_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&docs).Error
	return docs, total, err
}

func (r *pdfRepository) SetPageCount(ctx context.Context, id string, pages int) error {
	return r.updateStatus(ctx, id, map[string]interface{}{
		"page_count": pages,
	})
}

func (r *pdfRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, map[string]interface{}{
		"status":        types.PDFStatusProcessing,
		"error_message": "",
	})
}

func (r *pdfRepository) MarkCompleted(ctx context.Context, id string, stats types.ProcessingStats) error {
	now := time.Now()
	return r.updateStatus(ctx, id, map[string]interface{}{
		"status":                   types.PDFStatusCompleted,
		"processed_at":             &now,
		"stats_chunks_total":       stats.ChunksTotal,
		"stats_chunks_relevant":    stats.ChunksRelevant,
		"stats_articles_created":   stats.ArticlesCreated,
		"stats_duplicates_flagged": stats.DuplicatesFlagged,
	})
}

func (r *pdfRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	now := time.Now()
	return r.updateStatus(ctx, id, map[string]interface{}{
		"status":        types.PDFStatusFailed,
		"processed_at":  &now,
		"error_message": errorMessage,
	})
}

func (r *pdfRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&types.PDFDocument{}, "id = ?", id).Error
}

func (r *pdfRepository) updateStatus(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&types.PDFDocument{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
