package app

import (
	"context"

	"quizhub-service/internal/domain"
)

// AchievementStatus is one achievement with the caller's unlock state.
type AchievementStatus struct {
	domain.Achievement
	Unlocked bool `json:"unlocked"`
}

// AchievementService evaluates unlock criteria against user aggregates.
type AchievementService struct {
	users        UserStore
	achievements AchievementStore
}

func NewAchievementService(users UserStore, achievements AchievementStore) *AchievementService {
	return &AchievementService{users: users, achievements: achievements}
}

// Check compares every active, not-yet-unlocked achievement against the
// user's current aggregates and returns only the newly unlocked ones.
// Unlocks are permanent, so a second check with unchanged stats returns
// an empty list.
func (s *AchievementService) Check(ctx context.Context, userID string) ([]domain.Achievement, error) {
	user, err := s.users.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.achievements.ActiveAchievements(ctx)
	if err != nil {
		return nil, err
	}

	unlocked := make([]domain.Achievement, 0)
	for _, a := range active {
		if user.HasAchievement(a.ID) || !a.QualifiedBy(user) {
			continue
		}
		fresh, err := s.achievements.Unlock(ctx, a.ID, userID)
		if err != nil {
			return nil, err
		}
		if fresh {
			unlocked = append(unlocked, a)
		}
	}
	return unlocked, nil
}

// List returns all active achievements with the caller's unlock flags.
func (s *AchievementService) List(ctx context.Context, userID string) ([]AchievementStatus, error) {
	user, err := s.users.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.achievements.ActiveAchievements(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AchievementStatus, 0, len(active))
	for _, a := range active {
		out = append(out, AchievementStatus{Achievement: a, Unlocked: user.HasAchievement(a.ID)})
	}
	return out, nil
}
