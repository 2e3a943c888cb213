package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/memory"
)

func seedQuestions(store *memory.Store, category string, difficulty domain.Difficulty, n int) []domain.Question {
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.Question{
			ID:   fmt.Sprintf("%s-q%02d", category, i),
			Text: domain.LocalizedText{"en": fmt.Sprintf("Question %d", i)},
			Type: domain.SingleChoice,
			Options: []domain.Option{
				{Text: domain.LocalizedText{"en": "Wrong"}},
				{Text: domain.LocalizedText{"en": "Right"}, IsCorrect: true},
			},
			Category:   category,
			Difficulty: difficulty,
			Status:     domain.QuestionPublished,
		})
	}
	store.SeedQuestions(questions)
	return questions
}

func TestSampleReturnsUniqueQuestions(t *testing.T) {
	store := memory.NewStore()
	seedQuestions(store, "math", domain.DifficultyEasy, 20)
	sampler := app.NewSampler(store)

	got, err := sampler.Sample(context.Background(), domain.QuestionFilter{Category: "math"}, 10)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, q := range got {
		if seen[q.ID] {
			t.Fatalf("duplicate question %s in one session", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestSampleSmallPoolReturnsEverything(t *testing.T) {
	store := memory.NewStore()
	seedQuestions(store, "fundamentals", domain.DifficultyEasy, 7)
	sampler := app.NewSampler(store)

	got, err := sampler.Sample(context.Background(), domain.QuestionFilter{Category: "fundamentals"}, 10)
	if err != nil {
		t.Fatalf("short pool must not fail: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("expected all 7 pool questions, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, q := range got {
		if seen[q.ID] {
			t.Fatalf("duplicate question %s", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestSampleEmptyPoolFails(t *testing.T) {
	store := memory.NewStore()
	seedQuestions(store, "math", domain.DifficultyEasy, 5)
	sampler := app.NewSampler(store)

	_, err := sampler.Sample(context.Background(), domain.QuestionFilter{Category: "history"}, 5)
	if !errors.Is(err, domain.ErrNoQuestionsMatch) {
		t.Fatalf("expected ErrNoQuestionsMatch, got %v", err)
	}
}

func TestSampleValidatesCount(t *testing.T) {
	store := memory.NewStore()
	seedQuestions(store, "math", domain.DifficultyEasy, 5)
	sampler := app.NewSampler(store)

	for _, count := range []int{0, -1, 101} {
		if _, err := sampler.Sample(context.Background(), domain.QuestionFilter{}, count); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("count=%d: expected ErrValidation, got %v", count, err)
		}
	}
}

func TestSampleHonorsDifficultyFilter(t *testing.T) {
	store := memory.NewStore()
	seedQuestions(store, "math", domain.DifficultyEasy, 5)
	seedQuestions(store, "math-hard", domain.DifficultyHard, 5)
	sampler := app.NewSampler(store)

	got, err := sampler.Sample(context.Background(), domain.QuestionFilter{Difficulty: domain.DifficultyHard}, 10)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected the 5 hard questions, got %d", len(got))
	}
	for _, q := range got {
		if q.Difficulty != domain.DifficultyHard {
			t.Fatalf("question %s has difficulty %s", q.ID, q.Difficulty)
		}
	}
}
