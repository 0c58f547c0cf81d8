package chunker

import "strings"

// keywordGroups holds the weighted healthcare vocabularies chunks are scored
// against. Group order fixes the order of extracted keywords.
var keywordGroups = []struct {
	name   string
	weight float64
	words  []string
}{
	{
		name:   "conditions",
		weight: 0.30,
		words: []string{
			"diabetes", "hypertension", "blood pressure", "heart disease",
			"kidney disease", "chronic", "condition", "disease", "disorder",
			"syndrome", "illness", "medical", "health", "clinical",
			"obesity", "overweight", "obese", "weight gain", "excess weight",
			"body mass index", "bmi", "morbid obesity", "weight problem",
		},
	},
	{
		name:   "treatments",
		weight: 0.25,
		words: []string{
			"medication", "medicine", "treatment", "therapy", "prescription",
			"drug", "dose", "dosage", "pills", "tablets", "injection",
			"weight loss surgery", "bariatric surgery", "gastric bypass",
			"weight management", "weight loss program",
		},
	},
	{
		name:   "symptoms",
		weight: 0.20,
		words: []string{
			"symptoms", "signs", "pain", "ache", "fever", "fatigue",
			"nausea", "dizziness", "shortness of breath", "chest pain",
			"joint pain", "back pain", "sleep apnea", "snoring",
		},
	},
	{
		name:   "lifestyle",
		weight: 0.15,
		words: []string{
			"diet", "nutrition", "exercise", "physical activity", "weight",
			"lifestyle", "eating", "food", "salt", "sodium", "calories",
			"weight loss", "healthy weight", "portion control", "portion size",
			"calorie counting", "meal planning", "healthy eating", "balanced diet",
			"weight management", "fitness", "cardio", "strength training",
		},
	},
	{
		name:   "care",
		weight: 0.10,
		words: []string{
			"doctor", "physician", "nurse", "healthcare", "hospital",
			"clinic", "appointment", "checkup", "monitoring", "care",
			"nutritionist", "dietitian", "weight counselor", "fitness trainer",
			"weight loss specialist", "endocrinologist",
		},
	},
}

// scoreRelevance weighs how much of each keyword group the chunk covers,
// rewards coverage across multiple groups, and penalizes chunks shorter than
// the minimum size. Scores land in [0, 1].
func (c *Chunker) scoreRelevance(content string, wordCount int) float64 {
	if content == "" || wordCount == 0 {
		return 0
	}
	contentLower := strings.ToLower(content)

	weighted := 0.0
	groupsPresent := 0
	for _, group := range keywordGroups {
		present := 0
		for _, keyword := range group.words {
			if strings.Contains(contentLower, keyword) {
				present++
			}
		}
		fraction := float64(present) / float64(len(group.words))
		if fraction > 0 {
			groupsPresent++
		}
		weighted += fraction * group.weight
	}

	diversityBonus := float64(groupsPresent) * 0.1
	if diversityBonus > 0.3 {
		diversityBonus = 0.3
	}

	lengthFactor := float64(wordCount) / float64(c.minSize)
	if lengthFactor > 1.0 {
		lengthFactor = 1.0
	}

	score := (weighted + diversityBonus) * lengthFactor
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// extractKeywords lists every known healthcare keyword the chunk mentions,
// deduplicated, in group order.
func extractKeywords(content string) []string {
	contentLower := strings.ToLower(content)
	seen := make(map[string]bool)
	var found []string
	for _, group := range keywordGroups {
		for _, keyword := range group.words {
			if seen[keyword] {
				continue
			}
			if strings.Contains(contentLower, keyword) {
				seen[keyword] = true
				found = append(found, keyword)
			}
		}
	}
	return found
}
