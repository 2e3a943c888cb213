package domain

import (
	"encoding/json"
	"sort"
)

// AnswerSelection is the tagged form of a submitted answer: either a single
// option index (single-choice, true-false) or a set of indices
// (multiple-choice). Clients may send a bare integer or an integer array;
// both decode into this type.
type AnswerSelection struct {
	Single   *int
	Multiple []int
}

// UnmarshalJSON accepts `2` as well as `[0, 2]`.
func (s *AnswerSelection) UnmarshalJSON(data []byte) error {
	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		s.Single = &single
		s.Multiple = nil
		return nil
	}
	var many []int
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	s.Single = nil
	s.Multiple = many
	return nil
}

// MarshalJSON emits the canonical array form.
func (s AnswerSelection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Indexes())
}

// Indexes normalizes the selection into a sorted, deduplicated index set.
// A bare index becomes a one-element set.
func (s AnswerSelection) Indexes() []int {
	if s.Single != nil {
		return []int{*s.Single}
	}
	return NormalizeIndexes(s.Multiple)
}

// Valid reports whether the selection is non-empty and all indices address
// one of the question's options.
func (s AnswerSelection) Valid(optionCount int) bool {
	idx := s.Indexes()
	if len(idx) == 0 {
		return false
	}
	for _, i := range idx {
		if i < 0 || i >= optionCount {
			return false
		}
	}
	return true
}

// NormalizeIndexes sorts and deduplicates an index set.
func NormalizeIndexes(idx []int) []int {
	if len(idx) == 0 {
		return nil
	}
	out := make([]int, len(idx))
	copy(out, idx)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
