package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/repository"
)

// HistoryService 维护每道题的作答历史和已完成测验记录
type HistoryService struct {
	mu       sync.Mutex
	History  *repository.HistoryRepository
	Attempts *repository.AttemptRepository
}

func NewHistoryService(history *repository.HistoryRepository, attempts *repository.AttemptRepository) *HistoryService {
	return &HistoryService{History: history, Attempts: attempts}
}

// Record 把一批作答结果计入历史，同一时间点
func (s *HistoryService) Record(ctx context.Context, results []model.QuestionResult, at time.Time) error {
	if len(results) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.History.LoadAll(ctx)
	ApplyResults(all, results, at)
	return s.History.Save(ctx, all)
}

// ApplyResults 纯函数版本，直接修改传入的 map
func ApplyResults(all map[string]model.ReviewHistory, results []model.QuestionResult, at time.Time) {
	for _, r := range results {
		h, ok := all[r.QuestionID]
		if !ok {
			h = model.NewReviewHistory(r.QuestionID)
		}
		h.Apply(r.IsCorrect, at)
		all[r.QuestionID] = h
	}
}

func (s *HistoryService) All(ctx context.Context) map[string]model.ReviewHistory {
	return s.History.LoadAll(ctx)
}

func (s *HistoryService) Get(ctx context.Context, questionID string) (model.ReviewHistory, bool) {
	h, ok := s.History.LoadAll(ctx)[questionID]
	return h, ok
}

// RecordAttempt 保存测验结果并更新每题历史
func (s *HistoryService) RecordAttempt(ctx context.Context, attempt model.QuizAttempt, results []model.QuestionResult) error {
	if err := s.Attempts.Add(ctx, attempt); err != nil {
		return err
	}
	return s.Record(ctx, results, attempt.Date)
}

func (s *HistoryService) ListAttempts(ctx context.Context) []model.QuizAttempt {
	attempts := s.Attempts.List(ctx)
	if attempts == nil {
		return []model.QuizAttempt{}
	}
	return attempts
}

func (s *HistoryService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.History.Clear(ctx)
}

// CategoryStats 按类别汇总全部测验
type CategoryStats struct {
	Category string  `json:"category"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

type HistoryStats struct {
	Attempts      int             `json:"attempts"`
	Answered      int             `json:"answered"`
	Correct       int             `json:"correct"`
	Accuracy      float64         `json:"accuracy"`
	SeenQuestions int             `json:"seenQuestions"`
	PerCategory   []CategoryStats `json:"perCategory"`
}

func (s *HistoryService) Stats(ctx context.Context) HistoryStats {
	attempts := s.ListAttempts(ctx)
	stats := HistoryStats{Attempts: len(attempts), SeenQuestions: len(s.All(ctx))}

	perCat := make(map[string]*CategoryStats)
	for _, a := range attempts {
		stats.Answered += a.Total
		stats.Correct += a.Score
		for cat, r := range a.PerCategory {
			c, ok := perCat[cat]
			if !ok {
				c = &CategoryStats{Category: cat}
				perCat[cat] = c
			}
			c.Correct += r.Correct
			c.Total += r.Total
		}
	}
	if stats.Answered > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(stats.Answered)
	}

	stats.PerCategory = make([]CategoryStats, 0, len(perCat))
	for _, c := range perCat {
		if c.Total > 0 {
			c.Accuracy = float64(c.Correct) / float64(c.Total)
		}
		stats.PerCategory = append(stats.PerCategory, *c)
	}
	sort.Slice(stats.PerCategory, func(i, j int) bool {
		return stats.PerCategory[i].Category < stats.PerCategory[j].Category
	})
	return stats
}
