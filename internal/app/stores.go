package app

import (
	"context"
	"time"

	"quizhub-service/internal/domain"
)

// QuestionPool abstracts the published-question store (in-memory, Postgres).
type QuestionPool interface {
	// SampleRandom returns up to n random questions matching the filter.
	// Draws are independent, so the result may contain duplicates; callers
	// deduplicate.
	SampleRandom(ctx context.Context, f domain.QuestionFilter, n int) ([]domain.Question, error)
	// FetchExcluding returns up to n distinct matching questions whose ids
	// are not in exclude, in a deterministic order.
	FetchExcluding(ctx context.Context, f domain.QuestionFilter, exclude []string, n int) ([]domain.Question, error)
	// Question loads a single question by id.
	Question(ctx context.Context, id string) (domain.Question, error)
}

// QuestionStatDelta is the per-question counter increment applied when a
// session completes.
type QuestionStatDelta struct {
	Answered int
	Correct  int
}

// CompletionDelta carries every aggregate write of a session completion so
// stores can apply the cascade as one unit of work.
type CompletionDelta struct {
	CompletedAt time.Time
	TotalTime   int // seconds
	Score       domain.Score
	// Category is empty when the session spanned mixed categories; such
	// sessions credit no CategoryProgress entry.
	Category      string
	Attempted     int
	Activity      domain.ActivityRecord
	QuestionStats map[string]QuestionStatDelta
	StudyDay      time.Time
}

// SessionStore persists quiz sessions. FinalizeSession must be atomic per
// backend: the in-progress -> completed transition is a compare-and-swap,
// and the aggregate cascade either applies fully or not at all.
type SessionStore interface {
	CreateSession(ctx context.Context, session domain.QuizSession) error
	Session(ctx context.Context, id string) (domain.QuizSession, error)
	SaveAttempt(ctx context.Context, sessionID string, attempt domain.Attempt) error
	FinalizeSession(ctx context.Context, sessionID string, delta CompletionDelta) (domain.QuizSession, error)
	// SessionsByUser returns a page of the user's sessions, newest first,
	// plus the total count.
	SessionsByUser(ctx context.Context, userID string, offset, limit int) ([]domain.QuizSession, int, error)
	// AbandonOlderThan flips in-progress sessions started before the cutoff
	// to abandoned and returns them.
	AbandonOlderThan(ctx context.Context, cutoff time.Time) ([]domain.QuizSession, error)
}

// SessionGuard enforces the one-in-progress-session-per-user rule
// atomically. Acquire returns false when the user already holds a session.
type SessionGuard interface {
	Acquire(ctx context.Context, userID, sessionID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// UserStore persists user records and their aggregates.
type UserStore interface {
	User(ctx context.Context, id string) (domain.User, error)
	// EnsureUser creates an active user record from externally supplied
	// identity on first contact, or returns the existing one.
	EnsureUser(ctx context.Context, id, displayName string) (domain.User, error)
	// RankableUsers returns every active, non-admin user.
	RankableUsers(ctx context.Context) ([]domain.User, error)
}

// ProgressStore reads per-category aggregates.
type ProgressStore interface {
	ProgressByUser(ctx context.Context, userID string) ([]domain.CategoryProgress, error)
	ProgressByCategory(ctx context.Context, category string) ([]domain.CategoryProgress, error)
}

// AchievementStore persists achievements and their unlock sets.
type AchievementStore interface {
	ActiveAchievements(ctx context.Context) ([]domain.Achievement, error)
	// Unlock atomically records the unlock on both sides (user and
	// achievement) and reports whether it was newly added.
	Unlock(ctx context.Context, achievementID, userID string) (bool, error)
}
