package llm

import "strings"

// EstimateReadingLevel approximates the US grade level of text from average
// sentence length plus the share of three-or-more syllable words. Empty text
// rates as grade 12 so it never passes a low-literacy target by accident.
func EstimateReadingLevel(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 12.0
	}

	sentenceCount := 0
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(s) != "" {
			sentenceCount++
		}
	}
	if sentenceCount == 0 {
		sentenceCount = 1
	}

	avgSentenceLength := float64(len(words)) / float64(sentenceCount)

	var level float64
	switch {
	case avgSentenceLength <= 10:
		level = 4.0
	case avgSentenceLength <= 15:
		level = 6.0
	case avgSentenceLength <= 20:
		level = 8.0
	default:
		level = 10.0
	}

	complexWords := 0
	for _, word := range words {
		if countSyllables(word) >= 3 {
			complexWords++
		}
	}
	level += float64(complexWords) / float64(len(words)) * 4

	if level > 12.0 {
		level = 12.0
	}
	return level
}

// countSyllables estimates syllables by counting vowel groups, discounting a
// trailing silent e.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevWasVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiouy", r)
		if isVowel && !prevWasVowel {
			count++
		}
		prevWasVowel = isVowel
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}
