package appsync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"healthbrief/events"
	"healthbrief/store"
	"healthbrief/types"
)

// ErrNotApproved is returned when an upload is requested for an article that
// is not in the approved state.
var ErrNotApproved = errors.New("article is not approved")

// Worker uploads approved articles to the app database and records the
// app-side ID on the review copy.
type Worker struct {
	articles store.ArticleRepository
	client   *Client
}

// NewWorker builds an upload worker over the article store and app client.
func NewWorker(articles store.ArticleRepository, client *Client) *Worker {
	return &Worker{articles: articles, client: client}
}

// Handler returns the Kafka message handler for approval events. Decode and
// validation failures are skipped; upload failures leave the offset unmarked
// so the event is redelivered.
func (w *Worker) Handler() *events.TypedMessageHandler[types.ArticleApprovedEvent] {
	return &events.TypedMessageHandler[types.ArticleApprovedEvent]{
		Validate: func(event *types.ArticleApprovedEvent) bool {
			return event.ArticleID != ""
		},
		Process:    w.handleApproval,
		AlwaysMark: true,
	}
}

func (w *Worker) handleApproval(ctx context.Context, event *types.ArticleApprovedEvent) error {
	log.Printf("Processing approval event for article %s (%s)", event.ArticleID, event.Title)

	_, err := w.UploadArticle(ctx, event.ArticleID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Article %s no longer exists, skipping approval event", event.ArticleID)
		return nil
	}
	if errors.Is(err, ErrNotApproved) {
		log.Printf("Article %s left the approved state, skipping approval event", event.ArticleID)
		return nil
	}
	if err != nil {
		log.Printf("❌ Upload failed for article %s: %v", event.ArticleID, err)
		return err
	}
	return nil
}

// UploadArticle pushes one approved article to the app database, marks it
// uploaded, and records the app article ID. Kafka delivers at least once, so
// a replayed event finds the article already uploaded and returns it
// unchanged.
func (w *Worker) UploadArticle(ctx context.Context, articleID string) (*types.HealthArticle, error) {
	article, err := w.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load article %s: %w", articleID, err)
	}

	if article.Status == types.StatusUploaded && article.AppArticleID != "" {
		log.Printf("Article %s already uploaded (app ID %s)", articleID, article.AppArticleID)
		return article, nil
	}
	if article.Status != types.StatusApproved {
		return nil, fmt.Errorf("article %s has status %s: %w", articleID, article.Status, ErrNotApproved)
	}

	appID, err := w.client.Upload(ctx, article)
	if err != nil {
		return nil, err
	}

	article.Status = types.StatusUploaded
	article.AppArticleID = appID
	if err := w.articles.Update(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to record app article id for %s: %w", articleID, err)
	}
	return article, nil
}
