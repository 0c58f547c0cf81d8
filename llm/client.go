// Package llm turns PDF pages into text and text chunks into low-literacy
// health articles using the OpenAI Responses API.
package llm

import (
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Client wraps the OpenAI API for page extraction and article generation.
// All calls go through the shared rate limiter.
type Client struct {
	api   openai.Client
	model shared.ChatModel
}

// NewClient builds a Client for the given API key.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	return &Client{
		api:   openai.NewClient(option.WithAPIKey(apiKey)),
		model: shared.ChatModelGPT5Mini,
	}, nil
}
