// Package images finds stock photos for generated articles via the Unsplash
// search API. Matching is best-effort; articles ship without an image when
// nothing suitable turns up.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Image is one scored Unsplash search result.
type Image struct {
	ID             string
	URL            string
	ThumbnailURL   string
	Description    string
	AltDescription string
	Author         string
	AuthorURL      string
	DownloadURL    string
	Width          int
	Height         int
	RelevanceScore float64
}

// UnsplashMatcher searches Unsplash and ranks results against article text.
type UnsplashMatcher struct {
	accessKey  string
	baseURL    string
	perPage    int
	httpClient *http.Client
}

// NewUnsplashMatcher builds a matcher for the given access key.
func NewUnsplashMatcher(accessKey string) *UnsplashMatcher {
	return &UnsplashMatcher{
		accessKey:  accessKey,
		baseURL:    "https://api.unsplash.com",
		perPage:    10,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// categorySearchTerms maps article categories to proven search phrases.
var categorySearchTerms = map[string][]string{
	"Hypertension": {
		"blood pressure monitor", "healthy heart", "medical checkup",
		"stethoscope", "blood pressure cuff",
	},
	"Diabetes": {
		"blood glucose meter", "healthy food", "diabetes testing",
		"insulin pen", "blood sugar", "diabetic care",
	},
	"Nutrition": {
		"healthy food", "fresh vegetables", "balanced diet",
		"nutritious meal", "fruits vegetables", "healthy eating",
	},
	"Physical Activity": {
		"exercise fitness", "walking outdoors", "gym workout",
		"yoga stretching", "running jogging", "active lifestyle",
	},
	"Obesity": {
		"healthy weight", "weight scale", "portion control",
		"healthy meal planning", "walking exercise",
	},
	"General Health": {
		"healthy lifestyle", "wellness concept", "medical care",
		"health checkup", "preventive care", "health and wellness",
	},
}

var fallbackSearchTerms = []string{
	"health and wellness", "medical care", "healthy lifestyle",
	"doctor patient", "health concept", "wellness",
}

// FindImage returns the best-scoring image for an article, or nil when no
// query produced a usable result. Individual search failures are logged and
// skipped rather than failing the article.
func (m *UnsplashMatcher) FindImage(ctx context.Context, title, category string, tags []string) (*Image, error) {
	queries := generateQueries(title, category, tags)

	var best *Image
	bestScore := 0.0
	for _, query := range queries {
		results, err := m.searchPhotos(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Unsplash search failed for %q: %v", query, err)
			continue
		}
		scoreImages(results, title, category, tags)
		for i := range results {
			if results[i].RelevanceScore > bestScore {
				img := results[i]
				best = &img
				bestScore = img.RelevanceScore
			}
		}
	}
	return best, nil
}

// AttributionText returns the credit line Unsplash requires.
func AttributionText(img *Image) string {
	return fmt.Sprintf("Photo by %s on Unsplash", img.Author)
}

type photoResult struct {
	ID             string `json:"id"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Regular string `json:"regular"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	User struct {
		Name  string `json:"name"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
	Links struct {
		Download string `json:"download"`
	} `json:"links"`
}

func (m *UnsplashMatcher) searchPhotos(ctx context.Context, query string) ([]Image, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", fmt.Sprintf("%d", m.perPage))
	params.Set("orientation", "landscape")
	params.Set("content_filter", "high")
	params.Set("order_by", "relevant")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		m.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+m.accessKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unsplash returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var decoded struct {
		Results []photoResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	images := make([]Image, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		images = append(images, Image{
			ID:             r.ID,
			URL:            r.URLs.Regular,
			ThumbnailURL:   r.URLs.Thumb,
			Description:    r.Description,
			AltDescription: r.AltDescription,
			Author:         r.User.Name,
			AuthorURL:      r.User.Links.HTML,
			DownloadURL:    r.Links.Download,
			Width:          r.Width,
			Height:         r.Height,
		})
	}
	return images, nil
}

// generateQueries builds up to five search queries from the category's
// proven terms, the title's keywords, and the first tags.
func generateQueries(title, category string, tags []string) []string {
	var queries []string
	queries = append(queries, categorySearchTerms[category]...)

	if keywords := titleKeywords(title); keywords != "" {
		queries = append(queries, keywords)
	}

	for i, tag := range tags {
		if i >= 3 {
			break
		}
		tagQuery := strings.ToLower(strings.ReplaceAll(tag, "_", " "))
		if !containsString(queries, tagQuery) {
			queries = append(queries, tagQuery)
		}
	}

	for i := 0; len(queries) < 3 && i < len(fallbackSearchTerms); i++ {
		queries = append(queries, fallbackSearchTerms[i])
	}
	if len(queries) > 5 {
		queries = queries[:5]
	}
	return queries
}

var titleStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "how": true, "what": true, "when": true,
	"where": true, "why": true,
}

func titleKeywords(title string) string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(title)) {
		if titleStopWords[word] || len(word) <= 2 {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == 4 {
			break
		}
	}
	return strings.Join(keywords, " ")
}

var healthImageKeywords = []string{
	"health", "medical", "doctor", "hospital", "medicine",
	"wellness", "care", "treatment", "healthy", "fitness",
}

// scoreImages ranks results against the article text: description and alt
// text overlap carry most of the weight, with small bonuses for landscape
// ratios, resolution, and health-flavored descriptions.
func scoreImages(images []Image, title, category string, tags []string) {
	searchText := strings.ToLower(title + " " + category + " " + strings.Join(tags, " "))

	for i := range images {
		img := &images[i]
		score := 0.0

		if img.Description != "" {
			score += jaccard(searchText, strings.ToLower(img.Description)) * 0.4
		}
		if img.AltDescription != "" {
			score += jaccard(searchText, strings.ToLower(img.AltDescription)) * 0.3
		}

		if img.Height > 0 {
			ratio := float64(img.Width) / float64(img.Height)
			if ratio >= 1.2 && ratio <= 2.0 {
				score += 0.1
			} else if ratio >= 0.8 && ratio < 1.2 {
				score += 0.05
			}
		}

		pixels := img.Width * img.Height
		if pixels > 1000000 {
			score += 0.1
		} else if pixels > 500000 {
			score += 0.05
		}

		combined := strings.ToLower(img.Description + " " + img.AltDescription)
		matches := 0
		for _, keyword := range healthImageKeywords {
			if strings.Contains(combined, keyword) {
				matches++
			}
		}
		bonus := float64(matches) * 0.05
		if bonus > 0.2 {
			bonus = 0.2
		}
		score += bonus

		if score > 1.0 {
			score = 1.0
		}
		img.RelevanceScore = score
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].RelevanceScore > images[j].RelevanceScore
	})
}

// jaccard measures word-set overlap between two strings.
func jaccard(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		setA[w] = true
	}
	setB := make(map[string]bool)
	for _, w := range strings.Fields(b) {
		setB[w] = true
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
