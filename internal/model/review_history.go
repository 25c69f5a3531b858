package model

import "time"

// ReviewHistory 单题作答历史，计数只增不减
type ReviewHistory struct {
	ID              string     `json:"id"`
	SeenCount       int        `json:"seenCount"`
	CorrectCount    int        `json:"correctCount"`
	IncorrectCount  int        `json:"incorrectCount"`
	CorrectStreak   int        `json:"correctStreak"`
	IncorrectStreak int        `json:"incorrectStreak"`
	LastAttemptAt   *time.Time `json:"lastAttemptAt,omitempty"`
	LastCorrectAt   *time.Time `json:"lastCorrectAt,omitempty"`
	LastIncorrectAt *time.Time `json:"lastIncorrectAt,omitempty"`
}

func NewReviewHistory(id string) ReviewHistory {
	return ReviewHistory{ID: id}
}

func (h ReviewHistory) Accuracy() float64 {
	if h.SeenCount == 0 {
		return 0
	}
	return float64(h.CorrectCount) / float64(h.SeenCount)
}

// QuestionResult is the outcome of one answered item.
type QuestionResult struct {
	QuestionID string `json:"questionId"`
	IsCorrect  bool   `json:"isCorrect"`
}

// Apply records one attempt made at the given time.
func (h *ReviewHistory) Apply(isCorrect bool, at time.Time) {
	h.SeenCount++
	h.LastAttemptAt = &at
	if isCorrect {
		h.CorrectCount++
		h.CorrectStreak++
		h.IncorrectStreak = 0
		h.LastCorrectAt = &at
		return
	}
	h.IncorrectCount++
	h.IncorrectStreak++
	h.CorrectStreak = 0
	h.LastIncorrectAt = &at
}
