package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

// Handler holds the REST endpoints. Question text is resolved against the
// locale query parameter before it leaves the API, and correct answers are
// only revealed per submission or after completion.
type Handler struct {
	sessions     *app.SessionService
	progress     *app.ProgressService
	boards       *app.LeaderboardService
	achievements *app.AchievementService
}

type startRequest struct {
	Mode              string `json:"mode"`
	Category          string `json:"category"`
	Difficulty        string `json:"difficulty"`
	NumberOfQuestions int    `json:"numberOfQuestions"`
	TimeLimit         int    `json:"timeLimit"`
}

type answerRequest struct {
	SessionID  string                 `json:"sessionId" binding:"required"`
	QuestionID string                 `json:"questionId" binding:"required"`
	Answer     domain.AnswerSelection `json:"answer"`
	TimeSpent  int                    `json:"timeSpent"`
}

type questionView struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Options    []string `json:"options"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

type attemptView struct {
	QuestionID     string     `json:"questionId"`
	UserAnswer     []int      `json:"userAnswer,omitempty"`
	IsCorrect      *bool      `json:"isCorrect,omitempty"`
	TimeSpent      int        `json:"timeSpent,omitempty"`
	AnsweredAt     *time.Time `json:"answeredAt,omitempty"`
	CorrectAnswers []int      `json:"correctAnswers,omitempty"`
}

type sessionView struct {
	ID          string                 `json:"id"`
	Mode        string                 `json:"mode,omitempty"`
	Status      domain.SessionStatus   `json:"status"`
	Settings    domain.SessionSettings `json:"settings"`
	Questions   []questionView         `json:"questions"`
	Attempts    []attemptView          `json:"attempts"`
	Score       *domain.Score          `json:"score,omitempty"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	TotalTime   int                    `json:"totalTime,omitempty"`
}

type sessionSummary struct {
	ID          string                 `json:"id"`
	Mode        string                 `json:"mode,omitempty"`
	Status      domain.SessionStatus   `json:"status"`
	Settings    domain.SessionSettings `json:"settings"`
	Score       domain.Score           `json:"score"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	TotalTime   int                    `json:"totalTime,omitempty"`
}

func newSessionView(detail app.SessionDetail, locale string) sessionView {
	session := detail.Session
	completed := session.Status != domain.SessionInProgress

	view := sessionView{
		ID:          session.ID,
		Mode:        session.Mode,
		Status:      session.Status,
		Settings:    session.Settings,
		Questions:   make([]questionView, 0, len(detail.Questions)),
		Attempts:    make([]attemptView, 0, len(session.Attempts)),
		StartedAt:   session.StartedAt,
		CompletedAt: session.CompletedAt,
		TotalTime:   session.TotalTime,
	}
	if completed {
		score := session.Score
		view.Score = &score
	}

	correct := make(map[string][]int, len(detail.Questions))
	for _, q := range detail.Questions {
		view.Questions = append(view.Questions, newQuestionView(q, locale))
		correct[q.ID] = q.CorrectIndexes()
	}
	for _, a := range session.Attempts {
		av := attemptView{
			QuestionID: a.QuestionID,
			UserAnswer: a.UserAnswer,
			IsCorrect:  a.IsCorrect,
			TimeSpent:  a.TimeSpent,
			AnsweredAt: a.AnsweredAt,
		}
		if completed {
			av.CorrectAnswers = correct[a.QuestionID]
		}
		view.Attempts = append(view.Attempts, av)
	}
	return view
}

func newQuestionView(q domain.Question, locale string) questionView {
	options := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, opt.Text.Resolve(locale))
	}
	return questionView{
		ID:         q.ID,
		Text:       q.Text.Resolve(locale),
		Type:       string(q.Type),
		Options:    options,
		Category:   q.Category,
		Difficulty: string(q.Difficulty),
	}
}

func newSessionSummary(session domain.QuizSession) sessionSummary {
	return sessionSummary{
		ID:          session.ID,
		Mode:        session.Mode,
		Status:      session.Status,
		Settings:    session.Settings,
		Score:       session.Score,
		StartedAt:   session.StartedAt,
		CompletedAt: session.CompletedAt,
		TotalTime:   session.TotalTime,
	}
}

func (h *Handler) startQuiz(c *gin.Context) {
	ident := identityFrom(c)
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	detail, err := h.sessions.Start(c.Request.Context(), ident.UserID, app.StartRequest{
		Mode:              req.Mode,
		DisplayName:       ident.DisplayName,
		Category:          req.Category,
		Difficulty:        domain.Difficulty(req.Difficulty),
		NumberOfQuestions: req.NumberOfQuestions,
		TimeLimit:         req.TimeLimit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSessionView(detail, localeFrom(c)))
}

func (h *Handler) submitAnswer(c *gin.Context) {
	ident := identityFrom(c)
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.sessions.Answer(c.Request.Context(), ident.UserID, req.SessionID, req.QuestionID, req.Answer, req.TimeSpent)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) completeQuiz(c *gin.Context) {
	ident := identityFrom(c)
	session, err := h.sessions.Complete(c.Request.Context(), ident.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionSummary(session))
}

func (h *Handler) getQuiz(c *gin.Context) {
	ident := identityFrom(c)
	detail, err := h.sessions.Get(c.Request.Context(), ident.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(detail, localeFrom(c)))
}

func (h *Handler) history(c *gin.Context) {
	ident := identityFrom(c)
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "pageSize", 20)

	sessions, total, err := h.sessions.History(c.Request.Context(), ident.UserID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	summaries := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, newSessionSummary(s))
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": summaries,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func (h *Handler) progressOverview(c *gin.Context) {
	ident := identityFrom(c)
	overview, err := h.progress.Overview(c.Request.Context(), ident.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) globalBoard(c *gin.Context) {
	entries, err := h.boards.Global(c.Request.Context(), intQuery(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (h *Handler) categoryBoard(c *gin.Context) {
	category := c.Param("category")
	entries, err := h.boards.Category(c.Request.Context(), category, intQuery(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "leaderboard": entries})
}

func (h *Handler) selfRank(c *gin.Context) {
	ident := identityFrom(c)
	info, err := h.boards.SelfRank(c.Request.Context(), ident.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) listAchievements(c *gin.Context) {
	ident := identityFrom(c)
	statuses, err := h.achievements.List(c.Request.Context(), ident.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": statuses})
}

func (h *Handler) checkAchievements(c *gin.Context) {
	ident := identityFrom(c)
	unlocked, err := h.achievements.Check(c.Request.Context(), ident.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlocked": unlocked})
}

func localeFrom(c *gin.Context) string {
	return c.DefaultQuery("locale", "en")
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrSessionNotActive):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNoQuestionsMatch):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrActiveSessionExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
