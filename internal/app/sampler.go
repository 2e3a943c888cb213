package app

import (
	"context"
	"fmt"

	"quizhub-service/internal/domain"
)

// MaxQuestionsPerSession bounds how many questions one session may hold.
const MaxQuestionsPerSession = 100

// Sampler picks unique published questions for a new session without
// scanning the whole pool.
type Sampler struct {
	pool QuestionPool
}

func NewSampler(pool QuestionPool) *Sampler {
	return &Sampler{pool: pool}
}

// Sample returns up to count unique questions matching the filter. It draws
// a random sample of 2*count, deduplicates by id in draw order, and tops up
// with a deterministic fetch of non-drawn questions when the random draw
// came back short. A pool smaller than count is not an error; only an empty
// pool is.
func (s *Sampler) Sample(ctx context.Context, f domain.QuestionFilter, count int) ([]domain.Question, error) {
	if count < 1 || count > MaxQuestionsPerSession {
		return nil, fmt.Errorf("%w: numberOfQuestions must be between 1 and %d", domain.ErrValidation, MaxQuestionsPerSession)
	}

	drawn, err := s.pool.SampleRandom(ctx, f, 2*count)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, count)
	picked := make([]domain.Question, 0, count)
	for _, q := range drawn {
		if _, ok := seen[q.ID]; ok {
			continue
		}
		seen[q.ID] = struct{}{}
		picked = append(picked, q)
		if len(picked) == count {
			break
		}
	}

	if len(picked) < count {
		exclude := make([]string, 0, len(picked))
		for _, q := range picked {
			exclude = append(exclude, q.ID)
		}
		extra, err := s.pool.FetchExcluding(ctx, f, exclude, count-len(picked))
		if err != nil {
			return nil, err
		}
		for _, q := range extra {
			if _, ok := seen[q.ID]; ok {
				continue
			}
			seen[q.ID] = struct{}{}
			picked = append(picked, q)
		}
	}

	if len(picked) == 0 {
		return nil, domain.ErrNoQuestionsMatch
	}
	return picked, nil
}
