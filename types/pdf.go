package types

import (
	"time"

	"gorm.io/gorm"
)

// PDFStatus tracks a PDF upload through the processing pipeline.
type PDFStatus string

const (
	PDFStatusUploaded   PDFStatus = "uploaded"
	PDFStatusProcessing PDFStatus = "processing"
	PDFStatusCompleted  PDFStatus = "completed"
	PDFStatusFailed     PDFStatus = "failed"
)

// PDFDocument is one uploaded source PDF and its processing job state.
type PDFDocument struct {
	ID           string          `gorm:"primaryKey;type:text" json:"id"`
	Filename     string          `gorm:"not null" json:"filename"`
	StorageKey   string          `json:"storage_key"`
	SizeBytes    int64           `json:"size_bytes"`
	PageCount    int             `json:"page_count"`
	Status       PDFStatus       `gorm:"index;default:uploaded" json:"status"`
	ErrorMessage string          `gorm:"type:text" json:"error_message,omitempty"`
	Stats        ProcessingStats `gorm:"embedded;embeddedPrefix:stats_" json:"stats"`
	UploadedAt   time.Time       `json:"uploaded_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName returns the database table name for PDFDocument.
func (PDFDocument) TableName() string {
	return "pdf_documents"
}

// ProcessingStats summarizes one pipeline run over a PDF.
type ProcessingStats struct {
	ChunksTotal       int `json:"chunks_total"`
	ChunksRelevant    int `json:"chunks_relevant"`
	ArticlesCreated   int `json:"articles_created"`
	DuplicatesFlagged int `json:"duplicates_flagged"`
}
