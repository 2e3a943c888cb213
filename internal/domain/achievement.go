package domain

// AchievementMetric names the user aggregate an unlock condition reads.
type AchievementMetric string

const (
	MetricTotalQuizzes   AchievementMetric = "totalQuizzes"
	MetricTotalScore     AchievementMetric = "totalScore"
	MetricAverageScore   AchievementMetric = "averageScore"
	MetricStreak         AchievementMetric = "streak"
	MetricCorrectAnswers AchievementMetric = "correctAnswers"
)

// AchievementCriteria is the unlock condition: metric value >= threshold.
type AchievementCriteria struct {
	Metric    AchievementMetric `json:"metric"`
	Threshold int               `json:"threshold"`
}

// Achievement is a permanently unlockable badge. Unlocks are evaluated on
// demand and never revoked.
type Achievement struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Active      bool                `json:"active"`
	Criteria    AchievementCriteria `json:"criteria"`
}

// MetricValue extracts the criteria metric from a user record. The streak
// metric reads the current streak.
func MetricValue(u User, m AchievementMetric) int {
	switch m {
	case MetricTotalQuizzes:
		return u.Stats.TotalQuizzes
	case MetricTotalScore:
		return u.Stats.TotalScore
	case MetricAverageScore:
		return u.Stats.AverageScore
	case MetricStreak:
		return u.Streak.Current
	case MetricCorrectAnswers:
		return u.Stats.CorrectAnswers
	}
	return 0
}

// QualifiedBy reports whether the user meets the unlock condition.
func (a Achievement) QualifiedBy(u User) bool {
	return MetricValue(u, a.Criteria.Metric) >= a.Criteria.Threshold
}
