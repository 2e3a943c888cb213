package app

import (
	"context"
	"sort"

	"quizhub-service/internal/domain"
)

// Classification thresholds for weak/strong areas. Categories with fewer
// than minClassifiedAttempts attempted questions land in neither bucket.
const (
	minClassifiedAttempts = 5
	weakAreaBelow         = 60
	strongAreaFrom        = 80
)

// ProgressOverview is the read model for a user's learning progress.
type ProgressOverview struct {
	Stats          domain.UserStats          `json:"stats"`
	Streak         domain.Streak             `json:"streak"`
	Categories     []domain.CategoryProgress `json:"categories"`
	WeakAreas      []domain.CategoryProgress `json:"weakAreas"`
	StrongAreas    []domain.CategoryProgress `json:"strongAreas"`
	RecentActivity []domain.ActivityRecord   `json:"recentActivity"`
}

// ProgressService answers progress queries. Reads are pure: study days are
// recorded by session completion, never as a side effect of a query.
type ProgressService struct {
	users    UserStore
	progress ProgressStore
}

func NewProgressService(users UserStore, progress ProgressStore) *ProgressService {
	return &ProgressService{users: users, progress: progress}
}

// Overview assembles stats, category progress, weak/strong areas and the
// streak for one user.
func (s *ProgressService) Overview(ctx context.Context, userID string) (ProgressOverview, error) {
	user, err := s.users.User(ctx, userID)
	if err != nil {
		return ProgressOverview{}, err
	}
	progress, err := s.progress.ProgressByUser(ctx, userID)
	if err != nil {
		return ProgressOverview{}, err
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].Category < progress[j].Category })

	weak, strong := ClassifyAreas(progress)
	return ProgressOverview{
		Stats:          user.Stats,
		Streak:         user.Streak,
		Categories:     progress,
		WeakAreas:      weak,
		StrongAreas:    strong,
		RecentActivity: user.RecentActivity,
	}, nil
}

// ClassifyAreas splits category progress into weak areas (average below 60,
// ascending by score) and strong areas (average 80 or better, descending).
// Both require at least five attempted questions.
func ClassifyAreas(progress []domain.CategoryProgress) (weak, strong []domain.CategoryProgress) {
	for _, p := range progress {
		if p.QuestionsAttempted < minClassifiedAttempts {
			continue
		}
		switch {
		case p.AverageScore < weakAreaBelow:
			weak = append(weak, p)
		case p.AverageScore >= strongAreaFrom:
			strong = append(strong, p)
		}
	}
	sort.Slice(weak, func(i, j int) bool { return weak[i].AverageScore < weak[j].AverageScore })
	sort.Slice(strong, func(i, j int) bool { return strong[i].AverageScore > strong[j].AverageScore })
	return weak, strong
}
