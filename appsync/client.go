// Package appsync pushes approved articles into the consumer app's content
// API. The review backend owns the editorial workflow; the app database only
// ever sees approved material.
package appsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"healthbrief/types"
)

// AppArticle mirrors the article document the consumer app reads. Field
// names follow the app's camelCase JSON convention.
type AppArticle struct {
	ID                   string   `json:"id,omitempty"`
	Title                string   `json:"title"`
	Category             string   `json:"category"`
	ImageURL             string   `json:"imageUrl"`
	MedicalConditionTags []string `json:"medicalConditionTags"`
	Content              string   `json:"content"`
	ReadingLevel         float64  `json:"readingLevel,omitempty"`
}

// NewAppArticle converts a reviewed article into the app's document shape.
func NewAppArticle(article *types.HealthArticle) AppArticle {
	tags := []string(article.MedicalConditionTags)
	if tags == nil {
		tags = []string{}
	}
	return AppArticle{
		Title:                article.Title,
		Category:             article.Category,
		ImageURL:             article.ImageURL,
		MedicalConditionTags: tags,
		Content:              article.ContentText,
		ReadingLevel:         article.ReadingLevelScore,
	}
}

// Client talks to the app content API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the app content API. When a token is
// configured it is attached to every request as a bearer credential.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("appsync: app API URL is required")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
		httpClient.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// ListArticles returns app articles, optionally filtered by title.
func (c *Client) ListArticles(ctx context.Context, title string) ([]AppArticle, error) {
	path := "/articles"
	if title != "" {
		path += "?title=" + url.QueryEscape(title)
	}

	var articles []AppArticle
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// FindByTitle returns the app article with exactly the given title, or nil
// when the app database has no article by that name. The server may match
// titles loosely, so the result list is re-checked here.
func (c *Client) FindByTitle(ctx context.Context, title string) (*AppArticle, error) {
	articles, err := c.ListArticles(ctx, title)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		if articles[i].Title == title {
			return &articles[i], nil
		}
	}
	return nil, nil
}

// CreateArticle inserts a new article document and returns it with the ID
// the app database assigned.
func (c *Client) CreateArticle(ctx context.Context, article AppArticle) (*AppArticle, error) {
	var created AppArticle
	if err := c.doJSONRequest(ctx, http.MethodPost, "/articles", article, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Upload pushes an approved article to the app database and returns the app
// article ID. Titles are unique on the app side, so an article that already
// exists is returned as-is rather than re-created.
func (c *Client) Upload(ctx context.Context, article *types.HealthArticle) (string, error) {
	existing, err := c.FindByTitle(ctx, article.Title)
	if err != nil {
		return "", fmt.Errorf("failed to check for existing article: %w", err)
	}
	if existing != nil {
		log.Printf("Article already exists in app database: %s", article.Title)
		return existing.ID, nil
	}

	created, err := c.CreateArticle(ctx, NewAppArticle(article))
	if err != nil {
		return "", fmt.Errorf("failed to upload article: %w", err)
	}

	log.Printf("✅ Uploaded article to app database: %s (ID: %s)", article.Title, created.ID)
	return created.ID, nil
}

// doJSONRequest performs a JSON request with the given method, path, payload,
// and result. It handles marshaling the payload, creating the request,
// executing it, and unmarshaling the response. If result is nil, the response
// body is not decoded.
func (c *Client) doJSONRequest(ctx context.Context, method, path string, payload, result interface{}) error {
	url := fmt.Sprintf("%s%s", c.baseURL, path)

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("app API returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
