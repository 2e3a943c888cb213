package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizhub-service/internal/app"
	"quizhub-service/internal/config"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/memory"
	pgstore "quizhub-service/internal/infra/postgres"
	redisinfra "quizhub-service/internal/infra/redis"
	transport "quizhub-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	authSecret := cfg.Auth.Secret
	if authSecret == "" {
		authSecret = os.Getenv("AUTH_SECRET")
	}
	if authSecret == "" {
		return fmt.Errorf("auth secret not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	mem := memory.NewStore()
	var (
		questions    app.QuestionPool     = mem
		sessions     app.SessionStore     = mem
		users        app.UserStore        = mem
		progress     app.ProgressStore    = mem
		achievements app.AchievementStore = mem
	)
	if pool != nil {
		pg := pgstore.NewStore(pool)
		questions, sessions, users, progress, achievements = pg, pg, pg, pg, pg
	} else {
		mem.SeedQuestions(sampleQuestions())
		mem.SeedAchievements(sampleAchievements())
		log.Printf("postgres not configured, serving demo data from memory")
	}

	sweepInterval := config.TTLDuration(cfg.Session.SweepInterval, 5*time.Minute)
	maxAge := config.TTLDuration(cfg.Session.MaxAge, time.Hour)

	var guard app.SessionGuard = memory.NewSessionGuard()
	if redisClient != nil {
		guard = redisinfra.NewSessionGuard(redisClient, maxAge+sweepInterval)
	}

	var cache app.LeaderboardCache
	if redisClient != nil {
		cache = redisinfra.NewLeaderboardCache(redisClient, config.TTLDuration(cfg.Leaderboard.TTL, 5*time.Minute))
	}

	leaderboard := app.NewLeaderboardService(users, progress, cache)
	sessionSvc := app.NewSessionService(questions, sessions, users, guard, leaderboard)

	router := transport.NewRouter(transport.Services{
		Sessions:     sessionSvc,
		Progress:     app.NewProgressService(users, progress),
		Leaderboard:  leaderboard,
		Achievements: app.NewAchievementService(users, achievements),
	}, authSecret)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := sessionSvc.AbandonStale(ctx, maxAge)
				if err != nil {
					log.Printf("session sweep: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("abandoned %d stale sessions", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal demo pool; production runs against
// the Postgres question bank.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:   "geo-1",
			Text: domain.LocalizedText{"en": "What is the capital of France?"},
			Type: domain.SingleChoice,
			Options: []domain.Option{
				{Text: domain.LocalizedText{"en": "Lyon"}},
				{Text: domain.LocalizedText{"en": "Paris"}, IsCorrect: true},
				{Text: domain.LocalizedText{"en": "Marseille"}},
			},
			Category:   "geography",
			Difficulty: domain.DifficultyEasy,
			Status:     domain.QuestionPublished,
		},
		{
			ID:   "math-1",
			Text: domain.LocalizedText{"en": "Which numbers are prime?"},
			Type: domain.MultipleChoice,
			Options: []domain.Option{
				{Text: domain.LocalizedText{"en": "2"}, IsCorrect: true},
				{Text: domain.LocalizedText{"en": "4"}},
				{Text: domain.LocalizedText{"en": "7"}, IsCorrect: true},
				{Text: domain.LocalizedText{"en": "9"}},
			},
			Category:   "math",
			Difficulty: domain.DifficultyMedium,
			Status:     domain.QuestionPublished,
		},
		{
			ID:   "sci-1",
			Text: domain.LocalizedText{"en": "Water boils at 100°C at sea level."},
			Type: domain.TrueFalse,
			Options: []domain.Option{
				{Text: domain.LocalizedText{"en": "True"}, IsCorrect: true},
				{Text: domain.LocalizedText{"en": "False"}},
			},
			Category:   "science",
			Difficulty: domain.DifficultyEasy,
			Status:     domain.QuestionPublished,
		},
	}
}

func sampleAchievements() []domain.Achievement {
	return []domain.Achievement{
		{
			ID: "first-steps", Name: "First Steps",
			Description: "Complete your first quiz", Active: true,
			Criteria: domain.AchievementCriteria{Metric: domain.MetricTotalQuizzes, Threshold: 1},
		},
		{
			ID: "dedicated", Name: "Dedicated",
			Description: "Complete 10 quizzes", Active: true,
			Criteria: domain.AchievementCriteria{Metric: domain.MetricTotalQuizzes, Threshold: 10},
		},
		{
			ID: "sharpshooter", Name: "Sharpshooter",
			Description: "Keep an average score of 90 or better", Active: true,
			Criteria: domain.AchievementCriteria{Metric: domain.MetricAverageScore, Threshold: 90},
		},
		{
			ID: "week-streak", Name: "Week Streak",
			Description: "Study seven days in a row", Active: true,
			Criteria: domain.AchievementCriteria{Metric: domain.MetricStreak, Threshold: 7},
		},
	}
}
