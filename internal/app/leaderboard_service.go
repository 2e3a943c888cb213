package app

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"quizhub-service/internal/domain"
)

// LeaderboardEntry is one ranked row. TotalQuizzes is set on the global
// board, QuestionsAttempted on category boards.
type LeaderboardEntry struct {
	Rank               int    `json:"rank"`
	UserID             string `json:"userId"`
	DisplayName        string `json:"displayName"`
	AverageScore       int    `json:"averageScore"`
	TotalQuizzes       int    `json:"totalQuizzes,omitempty"`
	QuestionsAttempted int    `json:"questionsAttempted,omitempty"`
}

// RankInfo is the requester's own standing. Admin accounts are excluded
// from ranking and get Ranked=false.
type RankInfo struct {
	Ranked       bool `json:"ranked"`
	Rank         int  `json:"rank,omitempty"`
	Percentile   int  `json:"percentile,omitempty"`
	TotalUsers   int  `json:"totalUsers,omitempty"`
	AverageScore int  `json:"averageScore,omitempty"`
	TotalQuizzes int  `json:"totalQuizzes,omitempty"`
}

// LeaderboardCache caches computed boards (Redis in production). A nil
// cache disables caching.
type LeaderboardCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Invalidate(ctx context.Context, keys ...string) error
}

const (
	globalBoardKey       = "leaderboard:global"
	categoryBoardPrefix  = "leaderboard:category:"
	defaultBoardLimit    = 10
	maxBoardLimit        = 100
	subscriberBufferSize = 8
)

// LeaderboardService computes global and per-category rankings with
// standard competition ranking, caches the boards, and pushes the global
// top list to subscribers whenever a session completes.
type LeaderboardService struct {
	users    UserStore
	progress ProgressStore
	cache    LeaderboardCache // may be nil
	sf       singleflight.Group

	mu          sync.Mutex
	subscribers map[chan []LeaderboardEntry]struct{}
}

func NewLeaderboardService(users UserStore, progress ProgressStore, cache LeaderboardCache) *LeaderboardService {
	return &LeaderboardService{
		users:       users,
		progress:    progress,
		cache:       cache,
		subscribers: make(map[chan []LeaderboardEntry]struct{}),
	}
}

// Global returns the top entries of the global board, ranked by
// (averageScore desc, totalQuizzes desc).
func (s *LeaderboardService) Global(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	entries, err := s.board(ctx, globalBoardKey, func() ([]LeaderboardEntry, error) {
		return s.computeGlobal(ctx)
	})
	if err != nil {
		return nil, err
	}
	return truncateBoard(entries, limit), nil
}

// Category returns the top entries for one category, ranked by
// (category averageScore desc, questionsAttempted desc). Only users with
// at least one attempted question in the category appear.
func (s *LeaderboardService) Category(ctx context.Context, category string, limit int) ([]LeaderboardEntry, error) {
	entries, err := s.board(ctx, categoryBoardPrefix+category, func() ([]LeaderboardEntry, error) {
		return s.computeCategory(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return truncateBoard(entries, limit), nil
}

// SelfRank computes the requester's global rank as 1 + the number of users
// with a strictly better (averageScore, totalQuizzes) pair.
func (s *LeaderboardService) SelfRank(ctx context.Context, userID string) (RankInfo, error) {
	user, err := s.users.User(ctx, userID)
	if err != nil {
		return RankInfo{}, err
	}
	if !user.Rankable() {
		return RankInfo{Ranked: false}, nil
	}

	rankable, err := s.users.RankableUsers(ctx)
	if err != nil {
		return RankInfo{}, err
	}
	rank := 1
	for _, other := range rankable {
		if other.ID == user.ID {
			continue
		}
		if dominates(other.Stats, user.Stats) {
			rank++
		}
	}
	total := len(rankable)
	return RankInfo{
		Ranked:       true,
		Rank:         rank,
		Percentile:   domain.RoundPercent(total-rank, total),
		TotalUsers:   total,
		AverageScore: user.Stats.AverageScore,
		TotalQuizzes: user.Stats.TotalQuizzes,
	}, nil
}

// Subscribe registers a listener for global board updates. The caller must
// invoke cancel to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context) (<-chan []LeaderboardEntry, func(), error) {
	initial, err := s.Global(ctx, defaultBoardLimit)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan []LeaderboardEntry, subscriberBufferSize)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// SessionCompleted drops the stale cached boards and pushes a fresh global
// top list to all subscribers. Implements CompletionNotifier.
func (s *LeaderboardService) SessionCompleted(ctx context.Context, session domain.QuizSession) {
	if s.cache != nil {
		keys := []string{globalBoardKey}
		if session.Settings.Category != "" {
			keys = append(keys, categoryBoardPrefix+session.Settings.Category)
		}
		if err := s.cache.Invalidate(ctx, keys...); err != nil {
			log.Printf("leaderboard cache invalidate: %v", err)
		}
	}

	fresh, err := s.Global(ctx, defaultBoardLimit)
	if err != nil {
		log.Printf("leaderboard refresh after completion: %v", err)
		return
	}
	s.broadcast(fresh)
}

func (s *LeaderboardService) broadcast(entries []LeaderboardEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- entries:
		default:
			// Drop the stale update so a slow client never blocks the rest.
			select {
			case <-ch:
			default:
			}
			ch <- entries
		}
	}
}

func (s *LeaderboardService) board(ctx context.Context, key string, compute func() ([]LeaderboardEntry, error)) ([]LeaderboardEntry, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var entries []LeaderboardEntry
			if err := json.Unmarshal(data, &entries); err == nil {
				return entries, nil
			}
		}
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		entries, err := compute()
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if data, err := json.Marshal(entries); err == nil {
				if err := s.cache.Set(ctx, key, data); err != nil {
					log.Printf("leaderboard cache set: %v", err)
				}
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]LeaderboardEntry), nil
}

func (s *LeaderboardService) computeGlobal(ctx context.Context) ([]LeaderboardEntry, error) {
	users, err := s.users.RankableUsers(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, LeaderboardEntry{
			UserID:       u.ID,
			DisplayName:  u.DisplayName,
			AverageScore: u.Stats.AverageScore,
			TotalQuizzes: u.Stats.TotalQuizzes,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AverageScore != entries[j].AverageScore {
			return entries[i].AverageScore > entries[j].AverageScore
		}
		return entries[i].TotalQuizzes > entries[j].TotalQuizzes
	})
	assignRanks(entries, func(e LeaderboardEntry) (int, int) {
		return e.AverageScore, e.TotalQuizzes
	})
	return entries, nil
}

func (s *LeaderboardService) computeCategory(ctx context.Context, category string) ([]LeaderboardEntry, error) {
	progress, err := s.progress.ProgressByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	users, err := s.users.RankableUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}

	entries := make([]LeaderboardEntry, 0, len(progress))
	for _, p := range progress {
		if p.QuestionsAttempted == 0 {
			continue
		}
		name, ok := names[p.UserID]
		if !ok {
			continue // inactive or admin
		}
		entries = append(entries, LeaderboardEntry{
			UserID:             p.UserID,
			DisplayName:        name,
			AverageScore:       p.AverageScore,
			QuestionsAttempted: p.QuestionsAttempted,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AverageScore != entries[j].AverageScore {
			return entries[i].AverageScore > entries[j].AverageScore
		}
		return entries[i].QuestionsAttempted > entries[j].QuestionsAttempted
	})
	assignRanks(entries, func(e LeaderboardEntry) (int, int) {
		return e.AverageScore, e.QuestionsAttempted
	})
	return entries, nil
}

// assignRanks applies standard competition ranking to a sorted board: ties
// share a rank and the next distinct pair gets its zero-based position
// plus one, so rank numbers may be skipped (1,1,3,...).
func assignRanks(entries []LeaderboardEntry, key func(LeaderboardEntry) (int, int)) {
	for i := range entries {
		if i == 0 {
			entries[i].Rank = 1
			continue
		}
		a1, a2 := key(entries[i])
		b1, b2 := key(entries[i-1])
		if a1 == b1 && a2 == b2 {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}
}

// dominates reports whether a strictly outranks b.
func dominates(a, b domain.UserStats) bool {
	if a.AverageScore != b.AverageScore {
		return a.AverageScore > b.AverageScore
	}
	return a.TotalQuizzes > b.TotalQuizzes
}

func truncateBoard(entries []LeaderboardEntry, limit int) []LeaderboardEntry {
	if limit < 1 || limit > maxBoardLimit {
		limit = defaultBoardLimit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
