// Package chunker splits extracted PDF text into word-budgeted chunks and
// scores each chunk's relevance to low-literacy health education.
package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"healthbrief/config"
)

// Chunk is one candidate unit of source content for article generation.
type Chunk struct {
	PageNumber     int
	Index          int
	Content        string
	WordCount      int
	Type           string // text, header, list or table
	Keywords       []string
	RelevanceScore float64
	Relevant       bool
}

// Chunker groups page text into chunks near a target word count.
type Chunker struct {
	targetSize int
	minSize    int
	maxSize    int
}

// New builds a Chunker for the given target words per chunk. Zero or
// negative picks the default. Chunks run from max(50, target/4) words up to
// twice the target.
func New(targetSize int) *Chunker {
	if targetSize <= 0 {
		targetSize = config.DefaultChunkSizeWords
	}
	minSize := targetSize / 4
	if minSize < 50 {
		minSize = 50
	}
	return &Chunker{
		targetSize: targetSize,
		minSize:    minSize,
		maxSize:    targetSize * 2,
	}
}

// ChunkPages chunks extracted page texts, in page order, and scores every
// chunk. Chunks below the relevance cutoff are returned too, flagged not
// relevant, so callers can report totals.
func (c *Chunker) ChunkPages(pages []string) []Chunk {
	var chunks []Chunk
	for i, text := range pages {
		pageChunks := c.chunkPage(text, i+1, len(chunks))
		chunks = append(chunks, pageChunks...)
	}
	for i := range chunks {
		score := c.scoreRelevance(chunks[i].Content, chunks[i].WordCount)
		chunks[i].RelevanceScore = score
		chunks[i].Relevant = score >= config.MinRelevanceScore
	}
	return chunks
}

func (c *Chunker) chunkPage(text string, pageNumber, startIndex int) []Chunk {
	paragraphs := c.splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []string
	currentWords := 0
	index := startIndex

	flush := func() {
		content := strings.Join(current, "\n\n")
		if strings.TrimSpace(content) == "" {
			return
		}
		chunks = append(chunks, Chunk{
			PageNumber: pageNumber,
			Index:      index,
			Content:    content,
			WordCount:  countWords(content),
			Type:       detectChunkType(content),
			Keywords:   extractKeywords(content),
		})
		index++
	}

	for _, paragraph := range paragraphs {
		words := countWords(paragraph)
		if currentWords+words > c.maxSize && currentWords >= c.minSize {
			flush()
			current = []string{paragraph}
			currentWords = words
			continue
		}
		current = append(current, paragraph)
		currentWords += words
	}
	if currentWords >= c.minSize {
		flush()
	}
	return chunks
}

// splitParagraphs breaks page text on blank lines, strips junk lines such as
// page numbers and running headers, and cuts paragraphs longer than the
// target on sentence boundaries.
func (c *Chunker) splitParagraphs(text string) []string {
	var paragraphs []string
	for _, raw := range blankLineRE.Split(text, -1) {
		cleaned := cleanParagraph(raw)
		if cleaned == "" {
			continue
		}
		if countWords(cleaned) > c.targetSize {
			paragraphs = append(paragraphs, c.splitLongParagraph(cleaned)...)
			continue
		}
		paragraphs = append(paragraphs, cleaned)
	}
	return paragraphs
}

func (c *Chunker) splitLongParagraph(paragraph string) []string {
	sentences := sentenceEndRE.Split(paragraph, -1)
	var out []string
	var current []string
	currentWords := 0

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		words := countWords(sentence)
		if currentWords+words > c.targetSize && currentWords > 0 {
			out = append(out, strings.Join(current, ". "))
			current = []string{sentence}
			currentWords = words
			continue
		}
		current = append(current, sentence)
		currentWords += words
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, ". "))
	}
	return out
}

var (
	blankLineRE    = regexp.MustCompile(`\n\s*\n`)
	sentenceEndRE  = regexp.MustCompile(`[.!?]+\s+`)
	spaceRunRE     = regexp.MustCompile(`\s+`)
	numberOnlyRE   = regexp.MustCompile(`^\d+\s*$`)
	pageHeaderRE   = regexp.MustCompile(`(?i)^(page|chapter|\d+)\s*\d*\s*$`)
	listMarkerRE   = regexp.MustCompile(`(?m)^\s*[•\-*\d+.)]\s+`)
	tableSpacingRE = regexp.MustCompile(`\s{3,}`)
)

// cleanParagraph drops lines that look like page furniture and collapses the
// rest onto one line.
func cleanParagraph(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 10 {
			continue
		}
		if numberOnlyRE.MatchString(line) || pageHeaderRE.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(spaceRunRE.ReplaceAllString(strings.Join(kept, " "), " "))
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func detectChunkType(content string) string {
	words := strings.Fields(content)
	if len(words) <= 10 && isTitleCase(content) && !strings.HasSuffix(content, ".") &&
		!strings.HasSuffix(content, "!") && !strings.HasSuffix(content, "?") {
		return "header"
	}
	if listMarkerRE.MatchString(content) {
		return "list"
	}
	if strings.Contains(content, "\t") || tableSpacingRE.MatchString(content) {
		return "table"
	}
	return "text"
}

// isTitleCase reports whether every word starts with an uppercase letter and
// carries no further uppercase.
func isTitleCase(s string) bool {
	hasCased := false
	prevCased := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prevCased {
				return false
			}
			hasCased = true
			prevCased = true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			hasCased = true
			prevCased = true
		default:
			prevCased = false
		}
	}
	return hasCased
}
