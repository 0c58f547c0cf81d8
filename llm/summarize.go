package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go/v3/responses"

	"healthbrief/config"
	"healthbrief/types"
)

const (
	maxTitleChars = 200
	maxTags       = 10
)

// ArticleDraft is the structured output generated for one content chunk.
// ReadingLevelScore is computed locally after generation, not by the model.
type ArticleDraft struct {
	Title                string   `json:"title"`
	Category             string   `json:"category"`
	ContentText          string   `json:"content"`
	Summary              string   `json:"summary"`
	MedicalConditionTags []string `json:"medical_condition_tags"`
	ConfidenceScore      float64  `json:"confidence_score"`
	ReadingLevelScore    float64  `json:"-"`
}

// articleSchema constrains the model's output to exactly the draft fields.
var articleSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title": map[string]any{
			"type":        "string",
			"description": fmt.Sprintf("Clear, engaging title of at most %d words", config.MaxTitleWords),
		},
		"category": map[string]any{
			"type": "string",
			"enum": types.Categories,
		},
		"content": map[string]any{
			"type":        "string",
			"description": "The article body in simple language",
		},
		"summary": map[string]any{
			"type":        "string",
			"description": "One or two plain sentences describing the article",
		},
		"medical_condition_tags": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"confidence_score": map[string]any{
			"type":    "number",
			"minimum": 0.0,
			"maximum": 1.0,
		},
	},
	"required": []string{
		"title", "category", "content", "summary",
		"medical_condition_tags", "confidence_score",
	},
	"additionalProperties": false,
}

const summarizePromptFormat = `You are a health education expert who creates simple, easy-to-understand health articles for people with low literacy levels. Transform the medical content below into clear, actionable information at a grade-%.0f reading level.

CONTENT TO SUMMARIZE:
%s

INSTRUCTIONS:
1. Create a clear, engaging title (maximum %d words).
2. Categorize the content using one of: %s.
3. Write the main content in simple language:
   - Use short sentences (maximum 15 words each).
   - Use common words instead of medical jargon.
   - Include practical tips when relevant.
   - Use bullet points or numbered lists for clarity.
   - Keep paragraphs short (2-3 sentences).
   - Target a grade-%.0f reading level.
4. Write a one or two sentence summary of the article.
5. Identify relevant medical condition tags.
6. Rate your confidence (0.0-1.0) that the article is accurate and on topic.

Keep it simple, practical, and encouraging. Focus on what people can do to improve their health.`

// GenerateArticle summarizes one relevant content chunk into a low-literacy
// article draft via structured JSON output.
func (c *Client) GenerateArticle(ctx context.Context, chunkText string) (*ArticleDraft, error) {
	if strings.TrimSpace(chunkText) == "" {
		return nil, errors.New("llm: empty chunk text")
	}
	prompt := fmt.Sprintf(summarizePromptFormat,
		config.ReadingLevelTarget, chunkText, config.MaxTitleWords,
		strings.Join(types.Categories, ", "), config.ReadingLevelTarget)

	draft, err := RateLimitedCall(ctx, estimatedTokensPerChunk, func(ctx context.Context) (*ArticleDraft, error) {
		response, err := c.api.Responses.New(ctx, responses.ResponseNewParams{
			Model: c.model,
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: responses.ResponseInputParam{
					responses.ResponseInputItemParamOfMessage(
						responses.ResponseInputMessageContentListParam{
							responses.ResponseInputContentParamOfInputText(prompt),
						},
						"user",
					),
				},
			},
			Text: responses.ResponseTextConfigParam{
				Format: responses.ResponseFormatTextConfigParamOfJSONSchema("health_article", articleSchema),
			},
		})
		if err != nil {
			return nil, err
		}
		return parseArticleDraft(response.OutputText())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate article: %w", err)
	}

	draft.ReadingLevelScore = EstimateReadingLevel(draft.ContentText)
	return draft, nil
}

// parseArticleDraft decodes the model's JSON output and normalizes it into a
// usable draft.
func parseArticleDraft(outputText string) (*ArticleDraft, error) {
	var draft ArticleDraft
	if err := json.Unmarshal([]byte(outputText), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse article JSON: %w", err)
	}
	if err := normalizeDraft(&draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// normalizeDraft enforces field limits and falls back to the general
// category when the model names an unknown one.
func normalizeDraft(draft *ArticleDraft) error {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.ContentText = strings.TrimSpace(draft.ContentText)
	if draft.Title == "" {
		return errors.New("llm: draft has no title")
	}
	if draft.ContentText == "" {
		return errors.New("llm: draft has no content")
	}

	if title := []rune(draft.Title); len(title) > maxTitleChars {
		draft.Title = string(title[:maxTitleChars])
	}
	if len(draft.MedicalConditionTags) > maxTags {
		draft.MedicalConditionTags = draft.MedicalConditionTags[:maxTags]
	}

	valid := false
	for _, category := range types.Categories {
		if draft.Category == category {
			valid = true
			break
		}
	}
	if !valid {
		log.Printf("Invalid article category %q, defaulting to %s", draft.Category, types.CategoryGeneralHealth)
		draft.Category = types.CategoryGeneralHealth
	}
	return nil
}
