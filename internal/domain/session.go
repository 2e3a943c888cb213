package domain

import "time"

// SessionStatus is the lifecycle state of a quiz session. Transitions are
// one-way: in-progress sessions become completed or abandoned, never the
// reverse.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// SessionSettings captures what the user asked for when starting a session.
// Category and Difficulty are optional filters.
type SessionSettings struct {
	Category          string     `json:"category,omitempty"`
	Difficulty        Difficulty `json:"difficulty,omitempty"`
	NumberOfQuestions int        `json:"numberOfQuestions"`
	TimeLimit         int        `json:"timeLimit,omitempty"` // seconds, 0 = none
}

// Attempt is one question's record within a session. UserAnswer is nil and
// IsCorrect unset until the question is answered; answering again replaces
// the whole record.
type Attempt struct {
	QuestionID string     `json:"questionId"`
	UserAnswer []int      `json:"userAnswer,omitempty"`
	IsCorrect  *bool      `json:"isCorrect,omitempty"`
	TimeSpent  int        `json:"timeSpent,omitempty"` // seconds
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

// Answered reports whether the attempt has been evaluated.
func (a Attempt) Answered() bool {
	return a.IsCorrect != nil
}

// Score summarizes a finished (or partially answered) session.
type Score struct {
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
	Percentage int `json:"percentage"`
}

// QuizSession is the state machine at the heart of the engine: one sampled
// question list, one attempt per question, owned and mutated by a single
// user, finalized exactly once.
type QuizSession struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Mode        string          `json:"mode"`
	Settings    SessionSettings `json:"settings"`
	Attempts    []Attempt       `json:"attempts"`
	Score       Score           `json:"score"`
	Status      SessionStatus   `json:"status"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	TotalTime   int             `json:"totalTime,omitempty"` // seconds
}

// AttemptFor returns a pointer to the attempt for the given question, or
// nil if the question is not part of the session.
func (s *QuizSession) AttemptFor(questionID string) *Attempt {
	for i := range s.Attempts {
		if s.Attempts[i].QuestionID == questionID {
			return &s.Attempts[i]
		}
	}
	return nil
}

// ComputeScore scans the attempts and derives the score summary.
func (s QuizSession) ComputeScore() Score {
	var sc Score
	for _, a := range s.Attempts {
		switch {
		case a.IsCorrect == nil:
			sc.Unanswered++
		case *a.IsCorrect:
			sc.Correct++
		default:
			sc.Incorrect++
		}
	}
	sc.Percentage = RoundPercent(sc.Correct, len(s.Attempts))
	return sc
}

// AnsweredCount returns the number of evaluated attempts.
func (s QuizSession) AnsweredCount() int {
	n := 0
	for _, a := range s.Attempts {
		if a.Answered() {
			n++
		}
	}
	return n
}

// RoundPercent computes round(part/total*100), with 0 for an empty total.
func RoundPercent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (part*100 + total/2) / total
}
