package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

// Store implements the app store interfaces on Postgres. Documents live in
// JSONB data columns with the filter/sort fields extracted into plain
// columns; FinalizeSession applies the completion cascade in a single
// transaction behind a row lock, so a racing duplicate Complete loses
// cleanly.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SampleRandom(ctx context.Context, f domain.QuestionFilter, n int) ([]domain.Question, error) {
	query, args := poolQuery(f)
	query += fmt.Sprintf(" ORDER BY random() LIMIT $%d", len(args)+1)
	args = append(args, n)
	return s.queryQuestions(ctx, query, args...)
}

func (s *Store) FetchExcluding(ctx context.Context, f domain.QuestionFilter, exclude []string, n int) ([]domain.Question, error) {
	query, args := poolQuery(f)
	if len(exclude) > 0 {
		query += fmt.Sprintf(" AND NOT (id = ANY($%d))", len(args)+1)
		args = append(args, exclude)
	}
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args)+1)
	args = append(args, n)
	return s.queryQuestions(ctx, query, args...)
}

func poolQuery(f domain.QuestionFilter) (string, []interface{}) {
	query := `SELECT data, times_answered, times_correct FROM questions WHERE status = 'published'`
	var args []interface{}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.Difficulty != "" {
		args = append(args, string(f.Difficulty))
		query += fmt.Sprintf(" AND difficulty = $%d", len(args))
	}
	return query, args
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...interface{}) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var raw []byte
		var answered, correct int
		if err := rows.Scan(&raw, &answered, &correct); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		q.TimesAnswered = answered
		q.TimesCorrect = correct
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) Question(ctx context.Context, id string) (domain.Question, error) {
	var raw []byte
	var answered, correct int
	err := s.pool.QueryRow(ctx,
		`SELECT data, times_answered, times_correct FROM questions WHERE id = $1`, id).
		Scan(&raw, &answered, &correct)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	q.TimesAnswered = answered
	q.TimesCorrect = correct
	return q, nil
}

// UpsertQuestion writes a question document and its extracted columns.
// Question CRUD proper lives outside this core; this is the ingestion
// seam used by seeding and tests.
func (s *Store) UpsertQuestion(ctx context.Context, q domain.Question) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO questions (id, data, category, difficulty, status, times_answered, times_correct)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data, category = EXCLUDED.category,
			difficulty = EXCLUDED.difficulty, status = EXCLUDED.status`,
		q.ID, data, q.Category, string(q.Difficulty), string(q.Status), q.TimesAnswered, q.TimesCorrect)
	if err != nil {
		return fmt.Errorf("upsert question: %w", err)
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, session domain.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_sessions (id, user_id, status, started_at, data)
		VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, string(session.Status), session.StartedAt, data)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) Session(ctx context.Context, id string) (domain.QuizSession, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quiz_sessions WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("load session: %w", err)
	}
	return unmarshalSession(raw)
}

func (s *Store) SaveAttempt(ctx context.Context, sessionID string, attempt domain.Attempt) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		session, err := s.lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionInProgress {
			return domain.ErrSessionNotActive
		}
		slot := session.AttemptFor(attempt.QuestionID)
		if slot == nil {
			return domain.ErrQuestionNotFound
		}
		*slot = attempt
		return s.writeSession(ctx, tx, session)
	})
}

func (s *Store) FinalizeSession(ctx context.Context, sessionID string, delta app.CompletionDelta) (domain.QuizSession, error) {
	var finalized domain.QuizSession
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		session, err := s.lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionInProgress {
			return domain.ErrSessionNotActive
		}

		completedAt := delta.CompletedAt
		session.Status = domain.SessionCompleted
		session.CompletedAt = &completedAt
		session.TotalTime = delta.TotalTime
		session.Score = delta.Score
		if err := s.writeSession(ctx, tx, session); err != nil {
			return err
		}

		user, err := lockUser(ctx, tx, session.UserID)
		if err != nil {
			return err
		}
		user.Stats.ApplyCompletion(delta.Attempted, delta.Score.Correct, delta.Score.Percentage)
		user.Streak = user.Streak.RecordDay(delta.StudyDay)
		user.RecentActivity = domain.PrependActivity(user.RecentActivity, delta.Activity)
		if err := writeUser(ctx, tx, user); err != nil {
			return err
		}

		if delta.Category != "" {
			if err := applyCategoryProgress(ctx, tx, user.ID, delta); err != nil {
				return err
			}
		}

		for questionID, stat := range delta.QuestionStats {
			if _, err := tx.Exec(ctx, `
				UPDATE questions
				SET times_answered = times_answered + $2, times_correct = times_correct + $3
				WHERE id = $1`, questionID, stat.Answered, stat.Correct); err != nil {
				return fmt.Errorf("bump question stats: %w", err)
			}
		}

		finalized = session
		return nil
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	return finalized, nil
}

func (s *Store) SessionsByUser(ctx context.Context, userID string, offset, limit int) ([]domain.QuizSession, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM quiz_sessions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT data FROM quiz_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		OFFSET $2 LIMIT $3`, userID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizSession
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		session, err := unmarshalSession(raw)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, session)
	}
	return out, total, rows.Err()
}

func (s *Store) AbandonOlderThan(ctx context.Context, cutoff time.Time) ([]domain.QuizSession, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE quiz_sessions
		SET status = 'abandoned', data = jsonb_set(data, '{status}', '"abandoned"')
		WHERE status = 'in-progress' AND started_at < $1
		RETURNING data`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("abandon sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizSession
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan abandoned session: %w", err)
		}
		session, err := unmarshalSession(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (s *Store) User(ctx context.Context, id string) (domain.User, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM users WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return unmarshalUser(raw)
}

func (s *Store) EnsureUser(ctx context.Context, id, displayName string) (domain.User, error) {
	user := domain.User{ID: id, DisplayName: displayName, Role: domain.RoleUser, Active: true}
	data, err := json.Marshal(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal user: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, data, active, role)
		VALUES ($1, $2, TRUE, 'user')
		ON CONFLICT (id) DO NOTHING`, id, data); err != nil {
		return domain.User{}, fmt.Errorf("ensure user: %w", err)
	}

	existing, err := s.User(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if displayName != "" && existing.DisplayName != displayName {
		if _, err := s.pool.Exec(ctx,
			`UPDATE users SET data = jsonb_set(data, '{displayName}', to_jsonb($2::text)) WHERE id = $1`,
			id, displayName); err != nil {
			return domain.User{}, fmt.Errorf("update display name: %w", err)
		}
		existing.DisplayName = displayName
	}
	return existing, nil
}

func (s *Store) RankableUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM users WHERE active AND role <> 'admin' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rankable users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user, err := unmarshalUser(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (s *Store) ProgressByUser(ctx context.Context, userID string) ([]domain.CategoryProgress, error) {
	return s.queryProgress(ctx, `
		SELECT user_id, category, questions_attempted, questions_correct, average_score, last_attempted
		FROM category_progress WHERE user_id = $1 ORDER BY category`, userID)
}

func (s *Store) ProgressByCategory(ctx context.Context, category string) ([]domain.CategoryProgress, error) {
	return s.queryProgress(ctx, `
		SELECT user_id, category, questions_attempted, questions_correct, average_score, last_attempted
		FROM category_progress WHERE category = $1 ORDER BY user_id`, category)
}

func (s *Store) queryProgress(ctx context.Context, query string, args ...interface{}) ([]domain.CategoryProgress, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []domain.CategoryProgress
	for rows.Next() {
		var p domain.CategoryProgress
		if err := rows.Scan(&p.UserID, &p.Category, &p.QuestionsAttempted, &p.QuestionsCorrect, &p.AverageScore, &p.LastAttempted); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ActiveAchievements(ctx context.Context) ([]domain.Achievement, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM achievements WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var out []domain.Achievement
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		var a domain.Achievement
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("unmarshal achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAchievement writes an achievement document. Catalogue management
// is external; this is the seeding seam.
func (s *Store) UpsertAchievement(ctx context.Context, a domain.Achievement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal achievement: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO achievements (id, data, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, active = EXCLUDED.active`,
		a.ID, data, a.Active); err != nil {
		return fmt.Errorf("upsert achievement: %w", err)
	}
	return nil
}

func (s *Store) Unlock(ctx context.Context, achievementID, userID string) (bool, error) {
	var fresh bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO achievement_unlocks (achievement_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, achievementID, userID)
		if err != nil {
			return fmt.Errorf("insert unlock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		fresh = true

		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !user.HasAchievement(achievementID) {
			user.Achievements = append(user.Achievements, achievementID)
		}
		return writeUser(ctx, tx, user)
	})
	if err != nil {
		return false, err
	}
	return fresh, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) lockSession(ctx context.Context, tx pgx.Tx, id string) (domain.QuizSession, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `SELECT data FROM quiz_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("lock session: %w", err)
	}
	return unmarshalSession(raw)
}

func (s *Store) writeSession(ctx context.Context, tx pgx.Tx, session domain.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE quiz_sessions SET status = $2, data = $3 WHERE id = $1`,
		session.ID, string(session.Status), data); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func lockUser(ctx context.Context, tx pgx.Tx, id string) (domain.User, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `SELECT data FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lock user: %w", err)
	}
	return unmarshalUser(raw)
}

func writeUser(ctx context.Context, tx pgx.Tx, user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET data = $2, active = $3, role = $4 WHERE id = $1`,
		user.ID, data, user.Active, string(user.Role)); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func applyCategoryProgress(ctx context.Context, tx pgx.Tx, userID string, delta app.CompletionDelta) error {
	var p domain.CategoryProgress
	err := tx.QueryRow(ctx, `
		SELECT user_id, category, questions_attempted, questions_correct, average_score, last_attempted
		FROM category_progress
		WHERE user_id = $1 AND category = $2 FOR UPDATE`, userID, delta.Category).
		Scan(&p.UserID, &p.Category, &p.QuestionsAttempted, &p.QuestionsCorrect, &p.AverageScore, &p.LastAttempted)
	if errors.Is(err, pgx.ErrNoRows) {
		p = domain.CategoryProgress{UserID: userID, Category: delta.Category}
	} else if err != nil {
		return fmt.Errorf("lock progress: %w", err)
	}

	p.ApplyCompletion(delta.Attempted, delta.Score.Correct, delta.CompletedAt)
	if _, err := tx.Exec(ctx, `
		INSERT INTO category_progress (user_id, category, questions_attempted, questions_correct, average_score, last_attempted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, category) DO UPDATE SET
			questions_attempted = EXCLUDED.questions_attempted,
			questions_correct = EXCLUDED.questions_correct,
			average_score = EXCLUDED.average_score,
			last_attempted = EXCLUDED.last_attempted`,
		p.UserID, p.Category, p.QuestionsAttempted, p.QuestionsCorrect, p.AverageScore, p.LastAttempted); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func unmarshalSession(raw []byte) (domain.QuizSession, error) {
	var session domain.QuizSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.QuizSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func unmarshalUser(raw []byte) (domain.User, error) {
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return domain.User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return user, nil
}
