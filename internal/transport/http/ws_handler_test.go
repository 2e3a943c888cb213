package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

func TestLeaderboardFeed(t *testing.T) {
	router, store := newTestRouter(t)
	store.SeedUsers([]domain.User{
		{ID: "u1", DisplayName: "One", Role: domain.RoleUser, Active: true,
			Stats: domain.UserStats{AverageScore: 80, TotalQuizzes: 2}},
	})

	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type    string                 `json:"type"`
		Payload []app.LeaderboardEntry `json:"payload"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Type != "leaderboard" || len(msg.Payload) != 1 || msg.Payload[0].UserID != "u1" {
		t.Fatalf("unexpected snapshot: %+v", msg)
	}

	// Completing a session pushes a fresh board to the subscriber.
	token := signToken(t, "u2", "Two", "user")
	rec := doJSON(t, router, http.MethodPost, "/api/quiz/start", token, startRequest{
		Category:          "math",
		NumberOfQuestions: 2,
	})
	var started sessionView
	decodeBody(t, rec, &started)
	answer := 1
	doJSON(t, router, http.MethodPost, "/api/quiz/answer", token, answerRequest{
		SessionID: started.ID, QuestionID: started.Questions[0].ID,
		Answer: domain.AnswerSelection{Single: &answer},
	})
	doJSON(t, router, http.MethodPost, "/api/quiz/session/"+started.ID+"/complete", token, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if msg.Type != "leaderboard" || len(msg.Payload) != 2 {
		t.Fatalf("expected updated board with two entries, got %+v", msg)
	}
}
