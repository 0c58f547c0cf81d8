// Package pdf validates uploaded PDF documents and splits them into
// single-page documents sized for LLM extraction requests.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrEmptyDocument is returned when the input contains no bytes at all.
var ErrEmptyDocument = errors.New("empty pdf document")

// Split validates the document and extracts every page as a standalone
// single-page PDF, in page order. A zero-page document yields no pages.
func Split(data []byte) ([][]byte, error) {
	pdfContext, err := readContext(data)
	if err != nil {
		return nil, err
	}
	pageCount := pdfContext.PageCount
	if pageCount == 0 {
		return nil, nil
	}
	pages := make([][]byte, 0, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		pageReader, err := api.ExtractPage(pdfContext, pageNum)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", pageNum, err)
		}
		pageData, err := io.ReadAll(pageReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", pageNum, err)
		}
		pages = append(pages, pageData)
	}
	return pages, nil
}

func readContext(data []byte) (*model.Context, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	conf := model.NewDefaultConfiguration()
	pdfContext, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("invalid pdf: %w", err)
	}
	return pdfContext, nil
}
