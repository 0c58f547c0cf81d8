package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"healthbrief/types"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func sampleArticle(title string, status types.ArticleStatus) *types.HealthArticle {
	return &types.HealthArticle{
		Title:                title,
		ContentText:          "Short body for " + title,
		Summary:              "A one line summary.",
		Category:             types.CategoryHypertension,
		MedicalConditionTags: []string{"hypertension", "heart disease"},
		Status:               status,
	}
}

func TestArticleCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	article := sampleArticle("Eat Less Salt", types.StatusDraft)
	article.Embedding = []float32{0.1, 0.2, 0.3}
	if err := repo.Create(ctx, article); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if article.ID == "" {
		t.Fatal("create should assign an id")
	}

	got, err := repo.GetByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "Eat Less Salt" || got.Status != types.StatusDraft {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.MedicalConditionTags) != 2 || got.MedicalConditionTags[0] != "hypertension" {
		t.Fatalf("tags did not roundtrip: %v", got.MedicalConditionTags)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != 0.2 {
		t.Fatalf("embedding did not roundtrip: %v", got.Embedding)
	}
}

func TestArticleGetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewArticleRepository(db)

	_, err := repo.GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArticleCreateRejectsInvalidStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewArticleRepository(db)

	article := sampleArticle("Bad Status", "archived")
	if err := repo.Create(context.Background(), article); err == nil {
		t.Fatal("expected create to reject unknown status")
	}
}

func TestArticleListFiltersAndPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	fixtures := []*types.HealthArticle{
		sampleArticle("Alpha", types.StatusDraft),
		sampleArticle("Bravo", types.StatusDraft),
		sampleArticle("Charlie", types.StatusApproved),
		sampleArticle("Delta", types.StatusUploaded),
	}
	fixtures[2].Category = types.CategoryDiabetes
	fixtures[3].Category = types.CategoryNutrition
	for _, f := range fixtures {
		if err := repo.Create(ctx, f); err != nil {
			t.Fatalf("create %s failed: %v", f.Title, err)
		}
	}

	drafts, total, err := repo.List(ctx, ArticleListParams{Status: types.StatusDraft})
	if err != nil {
		t.Fatalf("list drafts failed: %v", err)
	}
	if total != 2 || len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got total=%d len=%d", total, len(drafts))
	}

	diabetes, total, err := repo.List(ctx, ArticleListParams{Category: types.CategoryDiabetes})
	if err != nil {
		t.Fatalf("list by category failed: %v", err)
	}
	if total != 1 || diabetes[0].Title != "Charlie" {
		t.Fatalf("expected only Charlie under Diabetes, got total=%d %+v", total, diabetes)
	}

	pageOne, total, err := repo.List(ctx, ArticleListParams{Page: 1, Limit: 3, SortBy: "title", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("list page 1 failed: %v", err)
	}
	if total != 4 || len(pageOne) != 3 || pageOne[0].Title != "Alpha" {
		t.Fatalf("unexpected page 1: total=%d %+v", total, pageOne)
	}

	pageTwo, _, err := repo.List(ctx, ArticleListParams{Page: 2, Limit: 3, SortBy: "title", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("list page 2 failed: %v", err)
	}
	if len(pageTwo) != 1 || pageTwo[0].Title != "Delta" {
		t.Fatalf("unexpected page 2: %+v", pageTwo)
	}
}

func TestArticleUpdateReviewFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	article := sampleArticle("Walk More", types.StatusDraft)
	if err := repo.Create(ctx, article); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	now := time.Now()
	article.Status = types.StatusApproved
	article.ReviewerNotes = "reads well at the target level"
	article.ReviewedAt = &now
	if err := repo.Update(ctx, article); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := repo.GetByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != types.StatusApproved {
		t.Fatalf("expected approved status, got %s", got.Status)
	}
	if got.ReviewerNotes == "" || got.ReviewedAt == nil {
		t.Fatalf("review fields not persisted: %+v", got)
	}
}

func TestListPublishedReturnsOnlyPublishedStatuses(t *testing.T) {
	db := setupTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	fixtures := []*types.HealthArticle{
		sampleArticle("Draft", types.StatusDraft),
		sampleArticle("Reviewed", types.StatusReviewed),
		sampleArticle("Rejected", types.StatusRejected),
		sampleArticle("Approved", types.StatusApproved),
		sampleArticle("Uploaded", types.StatusUploaded),
	}
	for i, f := range fixtures {
		f.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, f); err != nil {
			t.Fatalf("create %s failed: %v", f.Title, err)
		}
	}

	published, err := repo.ListPublished(ctx)
	if err != nil {
		t.Fatalf("list published failed: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("expected 2 published articles, got %d", len(published))
	}
	if published[0].Title != "Approved" || published[1].Title != "Uploaded" {
		t.Fatalf("expected oldest-first published order, got %+v", published)
	}

	if err := repo.Delete(ctx, published[0].ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, published[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("soft-deleted article should be gone, got %v", err)
	}

	published, err = repo.ListPublished(ctx)
	if err != nil {
		t.Fatalf("list published after delete failed: %v", err)
	}
	if len(published) != 1 || published[0].Title != "Uploaded" {
		t.Fatalf("deleted article should leave the published set, got %+v", published)
	}
}

func TestListFlaggedDuplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	strong := sampleArticle("Strong Match", types.StatusDraft)
	strong.SimilarToID = "art-published"
	strong.SimilarityScore = 0.97

	weak := sampleArticle("Weak Match", types.StatusDraft)
	weak.SimilarToID = "art-published"
	weak.SimilarityScore = 0.88

	clean := sampleArticle("Clean Draft", types.StatusDraft)

	approved := sampleArticle("Approved Match", types.StatusApproved)
	approved.SimilarToID = "art-published"
	approved.SimilarityScore = 0.99

	for _, f := range []*types.HealthArticle{strong, weak, clean, approved} {
		if err := repo.Create(ctx, f); err != nil {
			t.Fatalf("create %s failed: %v", f.Title, err)
		}
	}

	flagged, err := repo.ListFlaggedDuplicates(ctx)
	if err != nil {
		t.Fatalf("list flagged failed: %v", err)
	}
	if len(flagged) != 2 {
		t.Fatalf("expected 2 flagged drafts, got %d", len(flagged))
	}
	if flagged[0].Title != "Strong Match" || flagged[1].Title != "Weak Match" {
		t.Fatalf("expected most similar first, got %+v", flagged)
	}
}

func TestCountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewArticleRepository(db)
	ctx := context.Background()

	for _, status := range []types.ArticleStatus{
		types.StatusDraft, types.StatusDraft, types.StatusApproved, types.StatusRejected,
	} {
		if err := repo.Create(ctx, sampleArticle(string(status), status)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count by status failed: %v", err)
	}
	if counts[types.StatusDraft] != 2 || counts[types.StatusApproved] != 1 || counts[types.StatusRejected] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if counts[types.StatusUploaded] != 0 {
		t.Fatalf("expected no uploaded articles, got %d", counts[types.StatusUploaded])
	}
}
