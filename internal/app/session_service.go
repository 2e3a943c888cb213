package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quizhub-service/internal/domain"
)

// CompletionNotifier is told about every finalized session, e.g. to refresh
// leaderboard subscribers.
type CompletionNotifier interface {
	SessionCompleted(ctx context.Context, session domain.QuizSession)
}

// SessionService contains the quiz session use cases: start, answer,
// complete, read back.
type SessionService struct {
	sampler  *Sampler
	pool     QuestionPool
	sessions SessionStore
	users    UserStore
	guard    SessionGuard
	notifier CompletionNotifier // may be nil
	now      func() time.Time
	newID    func() string
}

func NewSessionService(pool QuestionPool, sessions SessionStore, users UserStore, guard SessionGuard, notifier CompletionNotifier) *SessionService {
	return &SessionService{
		sampler:  NewSampler(pool),
		pool:     pool,
		sessions: sessions,
		users:    users,
		guard:    guard,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(pool QuestionPool, sessions SessionStore, users UserStore, guard SessionGuard, notifier CompletionNotifier, now func() time.Time) *SessionService {
	s := NewSessionService(pool, sessions, users, guard, notifier)
	s.now = now
	return s
}

// StartRequest carries the caller's session settings. DisplayName comes
// from the auth claims, not the request body.
type StartRequest struct {
	Mode              string
	DisplayName       string
	Category          string
	Difficulty        domain.Difficulty
	NumberOfQuestions int
	TimeLimit         int
}

// SessionDetail pairs a session with the content of its questions so the
// transport layer can render attempts.
type SessionDetail struct {
	Session   domain.QuizSession
	Questions []domain.Question
}

// AnswerResult is the outcome of a single submission.
type AnswerResult struct {
	Correct        bool  `json:"isCorrect"`
	CorrectAnswers []int `json:"correctAnswers"`
}

// Start samples questions and creates an in-progress session. The per-user
// guard makes a second concurrent start fail instead of racing into two
// live sessions.
func (s *SessionService) Start(ctx context.Context, userID string, req StartRequest) (SessionDetail, error) {
	if req.TimeLimit < 0 {
		return SessionDetail{}, fmt.Errorf("%w: timeLimit must not be negative", domain.ErrValidation)
	}
	if _, err := s.users.EnsureUser(ctx, userID, req.DisplayName); err != nil {
		return SessionDetail{}, err
	}

	id := s.newID()
	acquired, err := s.guard.Acquire(ctx, userID, id)
	if err != nil {
		return SessionDetail{}, err
	}
	if !acquired {
		return SessionDetail{}, domain.ErrActiveSessionExists
	}

	filter := domain.QuestionFilter{Category: req.Category, Difficulty: req.Difficulty}
	questions, err := s.sampler.Sample(ctx, filter, req.NumberOfQuestions)
	if err != nil {
		_ = s.guard.Release(ctx, userID)
		return SessionDetail{}, err
	}

	session := domain.QuizSession{
		ID:     id,
		UserID: userID,
		Mode:   req.Mode,
		Settings: domain.SessionSettings{
			Category:          req.Category,
			Difficulty:        req.Difficulty,
			NumberOfQuestions: req.NumberOfQuestions,
			TimeLimit:         req.TimeLimit,
		},
		Attempts:  make([]domain.Attempt, 0, len(questions)),
		Status:    domain.SessionInProgress,
		StartedAt: s.now(),
	}
	for _, q := range questions {
		session.Attempts = append(session.Attempts, domain.Attempt{QuestionID: q.ID})
	}

	if err := s.sessions.CreateSession(ctx, session); err != nil {
		_ = s.guard.Release(ctx, userID)
		return SessionDetail{}, err
	}
	return SessionDetail{Session: session, Questions: questions}, nil
}

// Answer evaluates a submission and overwrites the attempt; answering the
// same question again replaces the previous record entirely.
func (s *SessionService) Answer(ctx context.Context, userID, sessionID, questionID string, selection domain.AnswerSelection, timeSpent int) (AnswerResult, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return AnswerResult{}, err
	}
	if session.Status != domain.SessionInProgress {
		return AnswerResult{}, domain.ErrSessionNotActive
	}
	attempt := session.AttemptFor(questionID)
	if attempt == nil {
		return AnswerResult{}, fmt.Errorf("%w: question is not part of this session", domain.ErrQuestionNotFound)
	}

	question, err := s.pool.Question(ctx, questionID)
	if err != nil {
		return AnswerResult{}, err
	}
	if !selection.Valid(len(question.Options)) {
		return AnswerResult{}, fmt.Errorf("%w: answer indices are empty or out of range", domain.ErrValidation)
	}

	indexes := selection.Indexes()
	correct := domain.EvaluateAnswer(question, indexes)
	answeredAt := s.now()

	attempt.UserAnswer = indexes
	attempt.IsCorrect = &correct
	attempt.TimeSpent = timeSpent
	attempt.AnsweredAt = &answeredAt
	if err := s.sessions.SaveAttempt(ctx, session.ID, *attempt); err != nil {
		return AnswerResult{}, err
	}

	return AnswerResult{Correct: correct, CorrectAnswers: question.CorrectIndexes()}, nil
}

// Complete finalizes the session and folds it into the user's aggregates.
// The store applies the whole cascade as one unit of work behind a
// compare-and-swap on the status, so a racing duplicate call loses with
// ErrSessionNotActive and nothing is double-counted.
func (s *SessionService) Complete(ctx context.Context, userID, sessionID string) (domain.QuizSession, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	if session.Status != domain.SessionInProgress {
		return domain.QuizSession{}, domain.ErrSessionNotActive
	}

	completedAt := s.now()
	score := session.ComputeScore()
	totalTime := int(completedAt.Sub(session.StartedAt).Seconds())
	timeSpent := 0
	stats := make(map[string]QuestionStatDelta, session.AnsweredCount())
	for _, a := range session.Attempts {
		if !a.Answered() {
			continue
		}
		timeSpent += a.TimeSpent
		d := stats[a.QuestionID]
		d.Answered++
		if *a.IsCorrect {
			d.Correct++
		}
		stats[a.QuestionID] = d
	}

	delta := CompletionDelta{
		CompletedAt: completedAt,
		TotalTime:   totalTime,
		Score:       score,
		Category:    session.Settings.Category,
		Attempted:   len(session.Attempts),
		Activity: domain.ActivityRecord{
			Date:              completedAt,
			QuestionsAnswered: session.AnsweredCount(),
			Score:             score.Percentage,
			TimeSpent:         timeSpent,
		},
		QuestionStats: stats,
		StudyDay:      completedAt,
	}

	finalized, err := s.sessions.FinalizeSession(ctx, session.ID, delta)
	if err != nil {
		return domain.QuizSession{}, err
	}
	_ = s.guard.Release(ctx, userID)
	if s.notifier != nil {
		s.notifier.SessionCompleted(ctx, finalized)
	}
	return finalized, nil
}

// Get returns the session with its question content; only the owner may
// read it.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (SessionDetail, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	questions := make([]domain.Question, 0, len(session.Attempts))
	for _, a := range session.Attempts {
		q, err := s.pool.Question(ctx, a.QuestionID)
		if err != nil {
			return SessionDetail{}, err
		}
		questions = append(questions, q)
	}
	return SessionDetail{Session: session, Questions: questions}, nil
}

// History returns a page of the user's sessions, newest first.
func (s *SessionService) History(ctx context.Context, userID string, page, pageSize int) ([]domain.QuizSession, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.sessions.SessionsByUser(ctx, userID, (page-1)*pageSize, pageSize)
}

// AbandonStale flips in-progress sessions older than maxAge to abandoned
// and releases their guards. Invoked by the out-of-band sweep, not by
// request handlers.
func (s *SessionService) AbandonStale(ctx context.Context, maxAge time.Duration) (int, error) {
	abandoned, err := s.sessions.AbandonOlderThan(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	for _, session := range abandoned {
		_ = s.guard.Release(ctx, session.UserID)
	}
	return len(abandoned), nil
}

func (s *SessionService) ownedSession(ctx context.Context, userID, sessionID string) (domain.QuizSession, error) {
	session, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	if session.UserID != userID {
		return domain.QuizSession{}, domain.ErrNotOwner
	}
	return session, nil
}
