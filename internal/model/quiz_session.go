package model

import (
	"sort"
	"time"
)

type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionLoading  SessionState = "loading"
	SessionRunning  SessionState = "running"
	SessionFinished SessionState = "finished"
	SessionFailed   SessionState = "failed"
)

// AnswerRecord 单题作答记录，SelectedIndices 为空表示跳过
type AnswerRecord struct {
	ID              string   `json:"id"`
	QuestionID      string   `json:"questionId"`
	SelectedIndices []int    `json:"selectedIndices"`
	CorrectIndices  []int    `json:"correctIndices"`
	Category        string   `json:"category"`
	Subcategory     *string  `json:"subcategory,omitempty"`
	Stem            string   `json:"stem"`
	Choices         []string `json:"choices"`
	Explanation     string   `json:"explanation"`
}

// IsCorrect 全对才算对（集合相等）
func (r AnswerRecord) IsCorrect() bool {
	selected := uniqueSorted(r.SelectedIndices)
	correct := uniqueSorted(r.CorrectIndices)
	if len(selected) != len(correct) {
		return false
	}
	for i := range selected {
		if selected[i] != correct[i] {
			return false
		}
	}
	return true
}

func uniqueSorted(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// QuizSessionSnapshot 进行中测验的持久化快照，用于崩溃后恢复
type QuizSessionSnapshot struct {
	ID               string             `json:"id"`
	Config           QuizConfig         `json:"config"`
	Questions        []PreparedQuestion `json:"questions"`
	CurrentIndex     int                `json:"currentIndex"`
	SelectedSet      []int              `json:"selectedSet"`
	IsSubmitted      bool               `json:"isSubmitted"`
	Records          []AnswerRecord     `json:"records"`
	RemainingSeconds *int               `json:"remainingSeconds,omitempty"`
	StartedAt        *time.Time         `json:"startedAt,omitempty"`
}

// SessionSummary 用于首页"继续上次测验"
type SessionSummary struct {
	Config       QuizConfig `json:"config"`
	CurrentIndex int        `json:"currentIndex"`
	Total        int        `json:"total"`
}

type CategoryResult struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// QuizAttempt 已完成的一次测验
type QuizAttempt struct {
	ID              string                    `json:"id"`
	Date            time.Time                 `json:"date"`
	Level           Level                     `json:"level"`
	Mode            QuizMode                  `json:"mode"`
	Categories      []string                  `json:"categories"`
	Score           int                       `json:"score"`
	Total           int                       `json:"total"`
	DurationSeconds int                       `json:"durationSeconds"`
	PerCategory     map[string]CategoryResult `json:"perCategory"`
	PerSubcategory  map[string]CategoryResult `json:"perSubcategory,omitempty"`
}
