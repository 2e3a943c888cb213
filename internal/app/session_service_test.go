package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/memory"
)

type testEnv struct {
	store    *memory.Store
	guard    *memory.SessionGuard
	sessions *app.SessionService
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: memory.NewStore(),
		guard: memory.NewSessionGuard(),
		now:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	seedQuestions(env.store, "math", domain.DifficultyEasy, 10)
	env.sessions = app.NewSessionServiceWithClock(env.store, env.store, env.store, env.guard, nil, func() time.Time {
		return env.now
	})
	return env
}

func (env *testEnv) start(t *testing.T, userID string, count int) app.SessionDetail {
	t.Helper()
	detail, err := env.sessions.Start(context.Background(), userID, app.StartRequest{
		Mode:              "practice",
		DisplayName:       "Player " + userID,
		Category:          "math",
		NumberOfQuestions: count,
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return detail
}

// answerAll submits the correct option (index 1) for the first `correct`
// questions and the wrong option for the next `wrong` ones.
func (env *testEnv) answerAll(t *testing.T, userID string, detail app.SessionDetail, correct, wrong int) {
	t.Helper()
	one, zero := 1, 0
	for i := 0; i < correct+wrong; i++ {
		sel := domain.AnswerSelection{Single: &one}
		if i >= correct {
			sel = domain.AnswerSelection{Single: &zero}
		}
		if _, err := env.sessions.Answer(context.Background(), userID, detail.Session.ID, detail.Questions[i].ID, sel, 5); err != nil {
			t.Fatalf("answer question %d: %v", i, err)
		}
	}
}

func TestStartCreatesInProgressSession(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 5)

	session := detail.Session
	if session.Status != domain.SessionInProgress {
		t.Fatalf("expected in-progress, got %s", session.Status)
	}
	if len(session.Attempts) != 5 || len(detail.Questions) != 5 {
		t.Fatalf("expected 5 attempts and questions, got %d/%d", len(session.Attempts), len(detail.Questions))
	}
	for _, a := range session.Attempts {
		if a.Answered() || a.UserAnswer != nil {
			t.Fatalf("fresh attempt must be unanswered: %+v", a)
		}
	}
}

func TestStartRejectsSecondActiveSession(t *testing.T) {
	env := newTestEnv(t)
	env.start(t, "u1", 5)

	_, err := env.sessions.Start(context.Background(), "u1", app.StartRequest{Category: "math", NumberOfQuestions: 5})
	if !errors.Is(err, domain.ErrActiveSessionExists) {
		t.Fatalf("expected ErrActiveSessionExists, got %v", err)
	}
}

func TestStartReleasesGuardWhenSamplingFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sessions.Start(context.Background(), "u1", app.StartRequest{Category: "nope", NumberOfQuestions: 5})
	if !errors.Is(err, domain.ErrNoQuestionsMatch) {
		t.Fatalf("expected ErrNoQuestionsMatch, got %v", err)
	}
	// The failed start must not block a retry.
	env.start(t, "u1", 5)
}

func TestAnswerEvaluatesSelection(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 3)
	one := 1

	res, err := env.sessions.Answer(context.Background(), "u1", detail.Session.ID, detail.Questions[0].ID, domain.AnswerSelection{Single: &one}, 7)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !res.Correct {
		t.Fatalf("index 1 is the correct option, got incorrect")
	}
	if len(res.CorrectAnswers) != 1 || res.CorrectAnswers[0] != 1 {
		t.Fatalf("expected correctAnswers [1], got %v", res.CorrectAnswers)
	}
}

func TestAnswerLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 3)
	zero, one := 0, 1
	qid := detail.Questions[0].ID

	if _, err := env.sessions.Answer(context.Background(), "u1", detail.Session.ID, qid, domain.AnswerSelection{Single: &one}, 5); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if _, err := env.sessions.Answer(context.Background(), "u1", detail.Session.ID, qid, domain.AnswerSelection{Single: &zero}, 9); err != nil {
		t.Fatalf("second answer: %v", err)
	}

	after, err := env.sessions.Get(context.Background(), "u1", detail.Session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	attempt := after.Session.AttemptFor(qid)
	if attempt.IsCorrect == nil || *attempt.IsCorrect {
		t.Fatalf("second answer must replace the first, got %+v", attempt)
	}
	if attempt.TimeSpent != 9 || len(attempt.UserAnswer) != 1 || attempt.UserAnswer[0] != 0 {
		t.Fatalf("attempt not overwritten: %+v", attempt)
	}
	if after.Session.AnsweredCount() != 1 {
		t.Fatalf("re-answering must not add attempts, answered=%d", after.Session.AnsweredCount())
	}
}

func TestAnswerRejectsNonOwner(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 3)
	one := 1

	_, err := env.sessions.Answer(context.Background(), "u2", detail.Session.ID, detail.Questions[0].ID, domain.AnswerSelection{Single: &one}, 5)
	if !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestAnswerUnknownQuestion(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 3)
	one := 1

	_, err := env.sessions.Answer(context.Background(), "u1", detail.Session.ID, "not-in-session", domain.AnswerSelection{Single: &one}, 5)
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestAnswerOutOfRangeSelection(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 3)
	five := 5

	_, err := env.sessions.Answer(context.Background(), "u1", detail.Session.ID, detail.Questions[0].ID, domain.AnswerSelection{Single: &five}, 5)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCompleteScoresAndCascades(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 5)
	env.answerAll(t, "u1", detail, 3, 1) // 3 correct, 1 wrong, 1 unanswered
	env.now = env.now.Add(90 * time.Second)

	finalized, err := env.sessions.Complete(context.Background(), "u1", detail.Session.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if finalized.Status != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", finalized.Status)
	}
	if finalized.TotalTime != 90 {
		t.Fatalf("expected totalTime 90s, got %d", finalized.TotalTime)
	}
	sc := finalized.Score
	if sc.Correct != 3 || sc.Incorrect != 1 || sc.Unanswered != 1 || sc.Percentage != 60 {
		t.Fatalf("unexpected score %+v", sc)
	}

	user, err := env.store.User(context.Background(), "u1")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	st := user.Stats
	if st.TotalQuizzes != 1 || st.TotalQuestions != 5 || st.CorrectAnswers != 3 || st.TotalScore != 60 || st.AverageScore != 60 {
		t.Fatalf("unexpected user stats %+v", st)
	}
	if user.Streak.Current != 1 || user.Streak.Longest != 1 {
		t.Fatalf("expected streak 1/1 after first completion, got %+v", user.Streak)
	}
	if len(user.RecentActivity) != 1 || user.RecentActivity[0].QuestionsAnswered != 4 || user.RecentActivity[0].Score != 60 {
		t.Fatalf("unexpected activity feed %+v", user.RecentActivity)
	}

	progress, err := env.store.ProgressByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(progress) != 1 || progress[0].Category != "math" {
		t.Fatalf("expected one math progress entry, got %+v", progress)
	}
	if progress[0].QuestionsAttempted != 5 || progress[0].QuestionsCorrect != 3 || progress[0].AverageScore != 60 {
		t.Fatalf("unexpected category progress %+v", progress[0])
	}

	answered := detail.Questions[0]
	q, err := env.store.Question(context.Background(), answered.ID)
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if q.TimesAnswered != 1 || q.TimesCorrect != 1 {
		t.Fatalf("expected question counters 1/1, got %d/%d", q.TimesAnswered, q.TimesCorrect)
	}
}

func TestCompleteIsOneWay(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 5)
	env.answerAll(t, "u1", detail, 5, 0)

	if _, err := env.sessions.Complete(context.Background(), "u1", detail.Session.ID); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	before, _ := env.store.User(context.Background(), "u1")

	_, err := env.sessions.Complete(context.Background(), "u1", detail.Session.ID)
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive on second complete, got %v", err)
	}

	after, _ := env.store.User(context.Background(), "u1")
	if after.Stats != before.Stats {
		t.Fatalf("second complete must not re-increment stats: %+v vs %+v", after.Stats, before.Stats)
	}
}

func TestCompleteReleasesSessionGuard(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 3)
	if _, err := env.sessions.Complete(context.Background(), "u1", detail.Session.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	env.start(t, "u1", 3) // must not fail with ErrActiveSessionExists
}

func TestMixedCategorySessionCreditsNoCategory(t *testing.T) {
	env := newTestEnv(t)
	detail, err := env.sessions.Start(context.Background(), "u1", app.StartRequest{NumberOfQuestions: 5})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	env.answerAll(t, "u1", detail, 5, 0)
	if _, err := env.sessions.Complete(context.Background(), "u1", detail.Session.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	progress, err := env.store.ProgressByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if len(progress) != 0 {
		t.Fatalf("mixed-category session must credit no category, got %+v", progress)
	}
}

func TestAnswerAfterCompleteFails(t *testing.T) {
	env := newTestEnv(t)
	detail := env.start(t, "u1", 3)
	if _, err := env.sessions.Complete(context.Background(), "u1", detail.Session.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	one := 1
	_, err := env.sessions.Answer(context.Background(), "u1", detail.Session.ID, detail.Questions[0].ID, domain.AnswerSelection{Single: &one}, 5)
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
}

func TestHistoryPaginatesNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		detail := env.start(t, "u1", 2)
		if _, err := env.sessions.Complete(context.Background(), "u1", detail.Session.ID); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
		env.now = env.now.Add(time.Hour)
	}

	page, total, err := env.sessions.History(context.Background(), "u1", 1, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Fatalf("expected total=3 page of 2, got total=%d len=%d", total, len(page))
	}
	if page[0].StartedAt.Before(page[1].StartedAt) {
		t.Fatalf("history must be newest first")
	}

	rest, _, err := env.sessions.History(context.Background(), "u1", 2, 2)
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 session on page 2, got %d", len(rest))
	}
}

func TestAbandonStaleReleasesGuards(t *testing.T) {
	env := newTestEnv(t)
	env.start(t, "u1", 3)
	env.now = env.now.Add(2 * time.Hour)

	n, err := env.sessions.AbandonStale(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 abandoned session, got %d", n)
	}
	env.start(t, "u1", 3) // guard must be free again
}
