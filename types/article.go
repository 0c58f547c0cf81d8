package types

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ArticleStatus tracks a health article through the review workflow.
type ArticleStatus string

const (
	StatusDraft    ArticleStatus = "draft"
	StatusReviewed ArticleStatus = "reviewed"
	StatusApproved ArticleStatus = "approved"
	StatusUploaded ArticleStatus = "uploaded"
	StatusRejected ArticleStatus = "rejected"
)

// Valid reports whether s is one of the known workflow statuses.
func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusReviewed, StatusApproved, StatusUploaded, StatusRejected:
		return true
	}
	return false
}

// Published reports whether articles in this status participate in the
// similarity index. Only approved and uploaded articles are ever used as
// duplicate-match targets.
func (s ArticleStatus) Published() bool {
	return s == StatusApproved || s == StatusUploaded
}

// Article categories assigned by the summarizer.
const (
	CategoryHypertension     = "Hypertension"
	CategoryDiabetes         = "Diabetes"
	CategoryNutrition        = "Nutrition"
	CategoryPhysicalActivity = "Physical Activity"
	CategoryObesity          = "Obesity"
	CategoryGeneralHealth    = "General Health"
)

// Categories lists every valid article category.
var Categories = []string{
	CategoryHypertension,
	CategoryDiabetes,
	CategoryNutrition,
	CategoryPhysicalActivity,
	CategoryObesity,
	CategoryGeneralHealth,
}

// HealthArticle is a generated low-literacy article moving through review.
// ID is immutable once assigned. Embedding stays NULL until computed and is
// set exactly once per content version; editing ContentText clears it.
type HealthArticle struct {
	ID                   string          `gorm:"primaryKey;type:text" json:"id"`
	Title                string          `gorm:"not null" json:"title"`
	ContentText          string          `gorm:"type:text;not null" json:"content_text"`
	Summary              string          `gorm:"type:text" json:"summary"`
	Category             string          `gorm:"index" json:"category"`
	MedicalConditionTags pq.StringArray  `gorm:"type:text[]" json:"medical_condition_tags"`
	Embedding            pq.Float32Array `gorm:"type:real[]" json:"-"`
	Status               ArticleStatus   `gorm:"index;default:draft" json:"status"`
	ImageURL             string          `json:"image_url,omitempty"`
	SourcePDFID          string          `gorm:"index" json:"source_pdf_id,omitempty"`
	ChunkIndex           int             `json:"chunk_index"`
	ReadingLevelScore    float64         `json:"reading_level_score"`
	SimilarityScore      float64         `json:"similarity_score"`
	SimilarToID          string          `json:"similar_to_id,omitempty"`
	ReviewerNotes        string          `gorm:"type:text" json:"reviewer_notes,omitempty"`
	ReviewedAt           *time.Time      `json:"reviewed_at,omitempty"`
	AppArticleID         string          `json:"app_article_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	DeletedAt            gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName returns the database table name for HealthArticle.
func (HealthArticle) TableName() string {
	return "health_articles"
}

// EmbeddingText is the text the embedding is computed from: the title
// prefixed onto the body so near-identical bodies with different titles
// still separate.
func (a *HealthArticle) EmbeddingText() string {
	if a.Title == "" {
		return a.ContentText
	}
	return a.Title + "\n\n" + a.ContentText
}
