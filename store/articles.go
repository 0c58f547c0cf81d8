package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"healthbrief/types"
)

// ErrNotFound is returned when a record does not exist or was soft-deleted.
var ErrNotFound = errors.New("record not found")

// ArticleListParams narrows and pages an article listing.
type ArticleListParams struct {
	Status      types.ArticleStatus
	Category    string
	SourcePDFID string
	Page        int
	Limit       int
	SortBy      string
	SortOrder   string
}

// ArticleRepository is the persistence surface for health articles. The
// store is the durable source of truth; the similarity index is derived
// from it and never consulted for article content.
type ArticleRepository interface {
	Create(ctx context.Context, article *types.HealthArticle) error
	GetByID(ctx context.Context, id string) (*types.HealthArticle, error)
	List(ctx context.Context, params ArticleListParams) ([]types.HealthArticle, int64, error)
	Update(ctx context.Context, article *types.HealthArticle) error
	Delete(ctx context.Context, id string) error
	ListPublished(ctx context.Context) ([]types.HealthArticle, error)
	ListFlaggedDuplicates(ctx context.Context) ([]types.HealthArticle, error)
	CountByStatus(ctx context.Context) (map[types.ArticleStatus]int64, error)
}

type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository wraps a gorm handle in the article persistence API.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) Create(ctx context.Context, article *types.HealthArticle) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if !article.Status.Valid() {
		return fmt.Errorf("invalid article status %q", article.Status)
	}
	return r.db.WithContext(ctx).Create(article).Error
}

func (r *articleRepository) GetByID(ctx context.Context, id string) (*types.HealthArticle, error) {
	var article types.HealthArticle
	err := r.db.WithContext(ctx).First(&article, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepository) List(ctx context.Context, params ArticleListParams) ([]types.HealthArticle, int64, error) {
	var articles []types.HealthArticle
	var total int64

	query := r.db.WithContext(ctx).Model(&types.HealthArticle{})

	// Add filters
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.SourcePDFID != "" {
		query = query.Where("source_pdf_id = ?", params.SourcePDFID)
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Add sorting; the column set is closed to keep the interpolation safe.
	sortBy := params.SortBy
	switch sortBy {
	case "created_at", "updated_at", "title", "reading_level_score", "similarity_score":
	default:
		sortBy = "created_at"
	}
	sortOrder := params.SortOrder
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	// Add pagination
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	err := query.Offset(offset).Limit(limit).Find(&articles).Error
	return articles, total, err
}

func (r *articleRepository) Update(ctx context.Context, article *types.HealthArticle) error {
	if article.ID == "" {
		return fmt.Errorf("article is missing an id")
	}
	if !article.Status.Valid() {
		return fmt.Errorf("invalid article status %q", article.Status)
	}
	return r.db.WithContext(ctx).Save(article).Error
}

func (r *articleRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&types.HealthArticle{}, "id = ?", id).Error
}

// ListPublished returns every approved or uploaded article, oldest first so
// a rebuilt index keeps the original insertion order.
func (r *articleRepository) ListPublished(ctx context.Context) ([]types.HealthArticle, error) {
	var articles []types.HealthArticle
	err := r.db.WithContext(ctx).
		Where("status IN ?", []types.ArticleStatus{types.StatusApproved, types.StatusUploaded}).
		Order("created_at asc").
		Find(&articles).Error
	return articles, err
}

// ListFlaggedDuplicates returns draft articles the classifier flagged
// against a published article, most similar first.
func (r *articleRepository) ListFlaggedDuplicates(ctx context.Context) ([]types.HealthArticle, error) {
	var articles []types.HealthArticle
	err := r.db.WithContext(ctx).
		Where("status = ? AND similar_to_id <> ''", types.StatusDraft).
		Order("similarity_score desc").
		Find(&articles).Error
	return articles, err
}

func (r *articleRepository) CountByStatus(ctx context.Context) (map[types.ArticleStatus]int64, error) {
	var results []struct {
		Status types.ArticleStatus
		Count  int64
	}

	err := r.db.WithContext(ctx).
		Model(&types.HealthArticle{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[types.ArticleStatus]int64, len(results))
	for _, result := range results {
		counts[result.Status] = result.Count
	}
	return counts, nil
}
