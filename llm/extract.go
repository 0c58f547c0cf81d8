package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

const extractPrompt = `Extract the readable text content of this page from a healthcare guidance document.

- Return plain text in normal reading order; concatenate columns top to bottom.
- Exclude page numbers, running headers and footers, and image captions.
- Keep paragraph breaks as blank lines.
- Transcribe lists as one item per line with their bullet or number.
- If the page has no readable text, return an empty response.`

// ExtractPageText sends one single-page PDF to the model and returns its
// plain text. Pages without readable text come back as an empty string.
func (c *Client) ExtractPageText(ctx context.Context, pageNum int, pagePDF []byte) (string, error) {
	if len(pagePDF) == 0 {
		return "", errors.New("llm: empty page data")
	}
	encoded := base64.StdEncoding.EncodeToString(pagePDF)

	text, err := RateLimitedCall(ctx, estimatedTokensPerPage, func(ctx context.Context) (string, error) {
		response, err := c.api.Responses.New(ctx, responses.ResponseNewParams{
			Model: c.model,
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: responses.ResponseInputParam{
					responses.ResponseInputItemParamOfMessage(
						responses.ResponseInputMessageContentListParam{
							responses.ResponseInputContentUnionParam{
								OfInputFile: &responses.ResponseInputFileParam{
									FileData: openai.String("data:application/pdf;base64," + encoded),
									Filename: openai.String(fmt.Sprintf("page-%d.pdf", pageNum)),
								},
							},
							responses.ResponseInputContentParamOfInputText(extractPrompt),
						},
						"user",
					),
				},
			},
		})
		if err != nil {
			return "", err
		}
		return response.OutputText(), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", pageNum, err)
	}
	return strings.TrimSpace(text), nil
}
