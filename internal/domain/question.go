package domain

import "sort"

// QuestionType determines how answers to a question are evaluated.
type QuestionType string

const (
	SingleChoice   QuestionType = "single-choice"
	MultipleChoice QuestionType = "multiple-choice"
	TrueFalse      QuestionType = "true-false"
)

// QuestionStatus is the publication state of a question.
type QuestionStatus string

const (
	QuestionDraft     QuestionStatus = "draft"
	QuestionPublished QuestionStatus = "published"
	QuestionArchived  QuestionStatus = "archived"
	QuestionFlagged   QuestionStatus = "flagged"
)

// Difficulty buckets questions for filtered sampling.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// LocalizedText maps a locale code to a translation of the same string.
type LocalizedText map[string]string

// Resolve returns the text for the requested locale, falling back to "en"
// and then to the lexicographically first available locale.
func (t LocalizedText) Resolve(locale string) string {
	if s, ok := t[locale]; ok && s != "" {
		return s
	}
	if s, ok := t["en"]; ok && s != "" {
		return s
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		if t[k] != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return t[keys[0]]
}

// Option is a possible answer for a question.
type Option struct {
	Text      LocalizedText `json:"text"`
	IsCorrect bool          `json:"isCorrect"`
}

// Question is a quiz question with localized text and ordered options.
// At least one option is correct; more than one only for multiple-choice.
type Question struct {
	ID            string         `json:"id"`
	Text          LocalizedText  `json:"text"`
	Type          QuestionType   `json:"type"`
	Options       []Option       `json:"options"`
	Category      string         `json:"category"`
	Difficulty    Difficulty     `json:"difficulty"`
	Status        QuestionStatus `json:"status"`
	TimesAnswered int            `json:"timesAnswered"`
	TimesCorrect  int            `json:"timesCorrect"`
}

// CorrectIndexes returns the zero-based indices of all correct options,
// in ascending order.
func (q Question) CorrectIndexes() []int {
	var idx []int
	for i, opt := range q.Options {
		if opt.IsCorrect {
			idx = append(idx, i)
		}
	}
	return idx
}

// EvaluateAnswer reports whether the selected option indices exactly match
// the question's correct option set. Order is irrelevant; a subset or
// superset of the correct set is incorrect (no partial credit).
func EvaluateAnswer(q Question, selected []int) bool {
	correct := q.CorrectIndexes()
	sel := NormalizeIndexes(selected)
	if len(sel) != len(correct) {
		return false
	}
	for i := range sel {
		if sel[i] != correct[i] {
			return false
		}
	}
	return len(sel) > 0
}

// QuestionFilter narrows the sampling pool. Zero fields match everything.
type QuestionFilter struct {
	Category   string
	Difficulty Difficulty
}

// Matches reports whether a published question falls inside the filter.
func (f QuestionFilter) Matches(q Question) bool {
	if q.Status != QuestionPublished {
		return false
	}
	if f.Category != "" && q.Category != f.Category {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	return true
}
