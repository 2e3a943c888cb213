package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quizhub-service/internal/app"
)

// Services bundles the use-case layer for the router.
type Services struct {
	Sessions     *app.SessionService
	Progress     *app.ProgressService
	Leaderboard  *app.LeaderboardService
	Achievements *app.AchievementService
}

// NewRouter wires all REST routes plus the leaderboard websocket feed.
// Everything under /api requires a bearer token.
func NewRouter(svc Services, authSecret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	h := &Handler{
		sessions:     svc.Sessions,
		progress:     svc.Progress,
		boards:       svc.Leaderboard,
		achievements: svc.Achievements,
	}
	r.GET("/ws/leaderboard", NewWSHandler(svc.Leaderboard).Serve)

	api := r.Group("/api", AuthRequired(authSecret))

	quiz := api.Group("/quiz")
	quiz.POST("/start", h.startQuiz)
	quiz.POST("/answer", h.submitAnswer)
	quiz.GET("/user/history", h.history)
	quiz.GET("/session/:id", h.getQuiz)
	quiz.POST("/session/:id/complete", h.completeQuiz)

	api.GET("/progress", h.progressOverview)

	boards := api.Group("/leaderboard")
	boards.GET("/global", h.globalBoard)
	boards.GET("/category/:category", h.categoryBoard)
	boards.GET("/rank", h.selfRank)

	api.GET("/achievements", h.listAchievements)
	api.POST("/achievements/check", h.checkAchievements)

	return r
}
