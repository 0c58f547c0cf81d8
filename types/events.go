package types

import "time"

// ArticleApprovedEvent is published to Kafka when a reviewer approves an
// article. The upload worker consumes it and pushes the article to the
// application database.
type ArticleApprovedEvent struct {
	ArticleID  string    `json:"article_id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	ApprovedBy string    `json:"approved_by,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}
