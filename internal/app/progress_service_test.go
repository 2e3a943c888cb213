package app_test

import (
	"context"
	"testing"
	"time"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/memory"
)

func TestClassifyAreasThresholds(t *testing.T) {
	progress := []domain.CategoryProgress{
		{Category: "algebra", QuestionsAttempted: 10, AverageScore: 40},
		{Category: "geometry", QuestionsAttempted: 10, AverageScore: 55},
		{Category: "history", QuestionsAttempted: 4, AverageScore: 10}, // below sample threshold
		{Category: "physics", QuestionsAttempted: 10, AverageScore: 95},
		{Category: "biology", QuestionsAttempted: 10, AverageScore: 80},
		{Category: "music", QuestionsAttempted: 3, AverageScore: 100}, // below sample threshold
		{Category: "latin", QuestionsAttempted: 10, AverageScore: 70}, // middle band
	}

	weak, strong := app.ClassifyAreas(progress)

	if len(weak) != 2 || weak[0].Category != "algebra" || weak[1].Category != "geometry" {
		t.Fatalf("expected weak [algebra, geometry] ascending, got %+v", weak)
	}
	if len(strong) != 2 || strong[0].Category != "physics" || strong[1].Category != "biology" {
		t.Fatalf("expected strong [physics, biology] descending, got %+v", strong)
	}
}

func TestOverviewIsAPureRead(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	last := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	store.SeedUsers([]domain.User{
		{ID: "u1", DisplayName: "Alice", Role: domain.RoleUser, Active: true,
			Streak: domain.Streak{Current: 3, Longest: 7, LastStudyDate: &last}},
	})
	service := app.NewProgressService(store, store)

	first, err := service.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	second, err := service.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("second overview: %v", err)
	}
	if first.Streak != second.Streak {
		t.Fatalf("reading the overview must not mutate the streak: %+v vs %+v", first.Streak, second.Streak)
	}
	if first.Streak.Current != 3 || first.Streak.Longest != 7 {
		t.Fatalf("unexpected streak %+v", first.Streak)
	}
}

func TestOverviewAssemblesCategories(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedUsers([]domain.User{{ID: "u1", DisplayName: "Alice", Role: domain.RoleUser, Active: true}})
	now := time.Now()
	store.SeedProgress([]domain.CategoryProgress{
		{UserID: "u1", Category: "math", QuestionsAttempted: 10, QuestionsCorrect: 4, AverageScore: 40, LastAttempted: now},
		{UserID: "u1", Category: "art", QuestionsAttempted: 8, QuestionsCorrect: 8, AverageScore: 100, LastAttempted: now},
		{UserID: "u2", Category: "math", QuestionsAttempted: 5, QuestionsCorrect: 5, AverageScore: 100, LastAttempted: now},
	})
	service := app.NewProgressService(store, store)

	overview, err := service.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(overview.Categories) != 2 {
		t.Fatalf("expected u1's 2 categories, got %+v", overview.Categories)
	}
	if len(overview.WeakAreas) != 1 || overview.WeakAreas[0].Category != "math" {
		t.Fatalf("expected math as weak area, got %+v", overview.WeakAreas)
	}
	if len(overview.StrongAreas) != 1 || overview.StrongAreas[0].Category != "art" {
		t.Fatalf("expected art as strong area, got %+v", overview.StrongAreas)
	}
}
