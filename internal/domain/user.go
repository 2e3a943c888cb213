package domain

import "time"

// Role separates regular players from admin accounts. Admins never appear
// in leaderboards.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserStats is the per-user aggregate folded forward on every session
// completion. TotalScore is the running sum of session percentages.
type UserStats struct {
	TotalQuizzes   int `json:"totalQuizzes"`
	TotalQuestions int `json:"totalQuestions"`
	CorrectAnswers int `json:"correctAnswers"`
	TotalScore     int `json:"totalScore"`
	AverageScore   int `json:"averageScore"`
}

// ApplyCompletion folds one completed session into the aggregate and
// recomputes the average.
func (st *UserStats) ApplyCompletion(questions, correct, percentage int) {
	st.TotalQuizzes++
	st.TotalQuestions += questions
	st.CorrectAnswers += correct
	st.TotalScore += percentage
	st.AverageScore = RoundPercent(st.CorrectAnswers, st.TotalQuestions)
}

// Streak tracks consecutive study days.
type Streak struct {
	Current       int        `json:"current"`
	Longest       int        `json:"longest"`
	LastStudyDate *time.Time `json:"lastStudyDate,omitempty"`
}

// RecordDay folds a study event on the given day into the streak and
// returns the result. Same day: unchanged. The day after the last study
// date: current grows by one. Any larger gap (or no prior date): current
// resets to 1. Pure; persistence is the caller's concern.
func (s Streak) RecordDay(day time.Time) Streak {
	day = truncateToDay(day)
	if s.LastStudyDate != nil {
		last := truncateToDay(*s.LastStudyDate)
		if day.Equal(last) {
			return s
		}
		if day.Sub(last) == 24*time.Hour {
			s.Current++
			if s.Current > s.Longest {
				s.Longest = s.Current
			}
			s.LastStudyDate = &day
			return s
		}
	}
	s.Current = 1
	if s.Longest < 1 {
		s.Longest = 1
	}
	s.LastStudyDate = &day
	return s
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ActivityRecord is one entry of the user's recent-activity feed.
type ActivityRecord struct {
	Date              time.Time `json:"date"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	Score             int       `json:"score"`
	TimeSpent         int       `json:"timeSpent"` // seconds
}

// RecentActivityLimit caps the recent-activity feed.
const RecentActivityLimit = 30

// PrependActivity puts the newest record first and truncates the feed.
func PrependActivity(list []ActivityRecord, rec ActivityRecord) []ActivityRecord {
	out := make([]ActivityRecord, 0, len(list)+1)
	out = append(out, rec)
	out = append(out, list...)
	if len(out) > RecentActivityLimit {
		out = out[:RecentActivityLimit]
	}
	return out
}

// CategoryProgress is the per-(user, category) aggregate. Entries are
// created lazily on the first completed session that names the category.
type CategoryProgress struct {
	UserID             string    `json:"userId"`
	Category           string    `json:"category"`
	QuestionsAttempted int       `json:"questionsAttempted"`
	QuestionsCorrect   int       `json:"questionsCorrect"`
	AverageScore       int       `json:"averageScore"`
	LastAttempted      time.Time `json:"lastAttempted"`
}

// ApplyCompletion folds a completed session's counts into the entry.
func (p *CategoryProgress) ApplyCompletion(attempted, correct int, at time.Time) {
	p.QuestionsAttempted += attempted
	p.QuestionsCorrect += correct
	p.AverageScore = RoundPercent(p.QuestionsCorrect, p.QuestionsAttempted)
	p.LastAttempted = at
}

// User is the player record owning the aggregates. Identity (id, display
// name, role) comes from the external auth layer; this core only maintains
// the quiz-derived state.
type User struct {
	ID             string           `json:"id"`
	DisplayName    string           `json:"displayName"`
	Role           Role             `json:"role"`
	Active         bool             `json:"active"`
	Stats          UserStats        `json:"stats"`
	Streak         Streak           `json:"streak"`
	RecentActivity []ActivityRecord `json:"recentActivity,omitempty"`
	Achievements   []string         `json:"achievements,omitempty"`
}

// HasAchievement reports whether the achievement id is already unlocked.
func (u User) HasAchievement(id string) bool {
	for _, a := range u.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// Rankable reports whether the user participates in leaderboards.
func (u User) Rankable() bool {
	return u.Active && u.Role != RoleAdmin
}
