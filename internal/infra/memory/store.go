package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

// Store is the in-memory implementation of every app store interface,
// guarded by one mutex so FinalizeSession applies its cascade atomically.
// Used by unit tests and by the server's demo mode when Postgres is not
// configured.
type Store struct {
	mu           sync.RWMutex
	rnd          *rand.Rand
	questions    map[string]*domain.Question
	sessions     map[string]*domain.QuizSession
	users        map[string]*domain.User
	progress     map[string]map[string]*domain.CategoryProgress // userID -> category
	achievements []domain.Achievement
	unlocks      map[string]map[string]struct{} // achievementID -> userIDs
}

func NewStore() *Store {
	return &Store{
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		questions: make(map[string]*domain.Question),
		sessions:  make(map[string]*domain.QuizSession),
		users:     make(map[string]*domain.User),
		progress:  make(map[string]map[string]*domain.CategoryProgress),
		unlocks:   make(map[string]map[string]struct{}),
	}
}

// SeedQuestions upserts questions into the pool.
func (s *Store) SeedQuestions(questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		copied := q
		s.questions[q.ID] = &copied
	}
}

// SeedUsers upserts user records.
func (s *Store) SeedUsers(users []domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		copied := u
		s.users[u.ID] = &copied
	}
}

// SeedAchievements replaces the achievement catalogue.
func (s *Store) SeedAchievements(achievements []domain.Achievement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.achievements = append([]domain.Achievement(nil), achievements...)
}

// SeedProgress upserts category progress entries.
func (s *Store) SeedProgress(entries []domain.CategoryProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range entries {
		copied := p
		byCategory, ok := s.progress[p.UserID]
		if !ok {
			byCategory = make(map[string]*domain.CategoryProgress)
			s.progress[p.UserID] = byCategory
		}
		byCategory[p.Category] = &copied
	}
}

// SampleRandom draws up to n independent random picks from the matching
// pool; duplicates are possible, mirroring a backing store's sample stage.
func (s *Store) SampleRandom(_ context.Context, f domain.QuestionFilter, n int) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matching := s.matchingLocked(f)
	if len(matching) == 0 {
		return nil, nil
	}
	if n > len(matching) {
		n = len(matching)
	}
	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, *matching[s.rnd.Intn(len(matching))])
	}
	return out, nil
}

// FetchExcluding returns up to n matching questions not in exclude, ordered
// by id for determinism.
func (s *Store) FetchExcluding(_ context.Context, f domain.QuestionFilter, exclude []string, n int) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]domain.Question, 0, n)
	for _, q := range s.matchingLocked(f) {
		if _, ok := skip[q.ID]; ok {
			continue
		}
		out = append(out, *q)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func (s *Store) Question(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return *q, nil
}

func (s *Store) matchingLocked(f domain.QuestionFilter) []*domain.Question {
	ids := make([]string, 0, len(s.questions))
	for id, q := range s.questions {
		if f.Matches(*q) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]*domain.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.questions[id])
	}
	return out
}

func (s *Store) CreateSession(_ context.Context, session domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := cloneSession(session)
	s.sessions[session.ID] = &copied
	return nil
}

func (s *Store) Session(_ context.Context, id string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return cloneSession(*session), nil
}

func (s *Store) SaveAttempt(_ context.Context, sessionID string, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != domain.SessionInProgress {
		return domain.ErrSessionNotActive
	}
	slot := session.AttemptFor(attempt.QuestionID)
	if slot == nil {
		return domain.ErrQuestionNotFound
	}
	*slot = attempt
	return nil
}

// FinalizeSession performs the status compare-and-swap and the aggregate
// cascade under one lock scope.
func (s *Store) FinalizeSession(_ context.Context, sessionID string, delta app.CompletionDelta) (domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if session.Status != domain.SessionInProgress {
		return domain.QuizSession{}, domain.ErrSessionNotActive
	}
	user, ok := s.users[session.UserID]
	if !ok {
		return domain.QuizSession{}, domain.ErrUserNotFound
	}

	completedAt := delta.CompletedAt
	session.Status = domain.SessionCompleted
	session.CompletedAt = &completedAt
	session.TotalTime = delta.TotalTime
	session.Score = delta.Score

	user.Stats.ApplyCompletion(delta.Attempted, delta.Score.Correct, delta.Score.Percentage)
	user.Streak = user.Streak.RecordDay(delta.StudyDay)
	user.RecentActivity = domain.PrependActivity(user.RecentActivity, delta.Activity)

	if delta.Category != "" {
		byCategory, ok := s.progress[user.ID]
		if !ok {
			byCategory = make(map[string]*domain.CategoryProgress)
			s.progress[user.ID] = byCategory
		}
		entry, ok := byCategory[delta.Category]
		if !ok {
			entry = &domain.CategoryProgress{UserID: user.ID, Category: delta.Category}
			byCategory[delta.Category] = entry
		}
		entry.ApplyCompletion(delta.Attempted, delta.Score.Correct, delta.CompletedAt)
	}

	for questionID, stat := range delta.QuestionStats {
		if q, ok := s.questions[questionID]; ok {
			q.TimesAnswered += stat.Answered
			q.TimesCorrect += stat.Correct
		}
	}

	return cloneSession(*session), nil
}

func (s *Store) SessionsByUser(_ context.Context, userID string, offset, limit int) ([]domain.QuizSession, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.QuizSession
	for _, session := range s.sessions {
		if session.UserID == userID {
			all = append(all, cloneSession(*session))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Store) AbandonOlderThan(_ context.Context, cutoff time.Time) ([]domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var abandoned []domain.QuizSession
	for _, session := range s.sessions {
		if session.Status == domain.SessionInProgress && session.StartedAt.Before(cutoff) {
			session.Status = domain.SessionAbandoned
			abandoned = append(abandoned, cloneSession(*session))
		}
	}
	return abandoned, nil
}

func (s *Store) User(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(*user), nil
}

func (s *Store) EnsureUser(_ context.Context, id, displayName string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		if displayName != "" && user.DisplayName != displayName {
			user.DisplayName = displayName
		}
		return cloneUser(*user), nil
	}
	user := &domain.User{ID: id, DisplayName: displayName, Role: domain.RoleUser, Active: true}
	s.users[id] = user
	return cloneUser(*user), nil
}

func (s *Store) RankableUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id, u := range s.users {
		if u.Rankable() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneUser(*s.users[id]))
	}
	return out, nil
}

func (s *Store) ProgressByUser(_ context.Context, userID string) ([]domain.CategoryProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CategoryProgress
	for _, entry := range s.progress[userID] {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) ProgressByCategory(_ context.Context, category string) ([]domain.CategoryProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CategoryProgress
	for _, byCategory := range s.progress {
		if entry, ok := byCategory[category]; ok {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) ActiveAchievements(_ context.Context) ([]domain.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Achievement, 0, len(s.achievements))
	for _, a := range s.achievements {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) Unlock(_ context.Context, achievementID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holders, ok := s.unlocks[achievementID]
	if !ok {
		holders = make(map[string]struct{})
		s.unlocks[achievementID] = holders
	}
	if _, already := holders[userID]; already {
		return false, nil
	}
	holders[userID] = struct{}{}
	if user, ok := s.users[userID]; ok && !user.HasAchievement(achievementID) {
		user.Achievements = append(user.Achievements, achievementID)
	}
	return true, nil
}

func cloneSession(s domain.QuizSession) domain.QuizSession {
	s.Attempts = append([]domain.Attempt(nil), s.Attempts...)
	return s
}

func cloneUser(u domain.User) domain.User {
	u.RecentActivity = append([]domain.ActivityRecord(nil), u.RecentActivity...)
	u.Achievements = append([]string(nil), u.Achievements...)
	return u
}
