package service

import (
	"math"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/pkg/logger"
	"cfaquiz_backend/pkg/monitoring"

	"go.uber.org/zap"
)

const (
	weightUnseen    = 4.0
	weightMastered  = 0.5
	daysSinceNever  = 30.0
	secondsPerDay   = 86400.0
	incorrectBase   = 3.5
	dueBase         = 2.5
	maxStreakBoost  = 2.0
	maxRecencyBoost = 2.0
	maxOverdueBoost = 2.5
)

// srsIntervals 连续答对次数对应的复习间隔（天），超过末项取末项
var srsIntervals = []float64{1, 2, 4, 7, 14, 30}

// QuizEngine 组卷：过滤、加权排序、抽样、选项打乱。
// 纯函数，不持有可变状态；随机源由调用方传入
type QuizEngine struct {
	Now func() time.Time
}

func NewQuizEngine() *QuizEngine {
	return &QuizEngine{Now: time.Now}
}

// Prepare 按配置从题库抽取题目
func (e *QuizEngine) Prepare(questions []*model.Question, cfg model.QuizConfig, history map[string]model.ReviewHistory, rng *rand.Rand) []model.PreparedQuestion {
	valid := make([]*model.Question, 0, len(questions))
	for _, q := range questions {
		if q == nil {
			continue
		}
		if !q.Usable() {
			logger.Log.Debug("Question ignored by selection", zap.String("id", q.ID),
				zap.Int("choices", len(q.Choices)), zap.Ints("correctIndices", q.CorrectIndices))
			monitoring.InvalidQuestionsSkipped.Inc()
			continue
		}
		valid = append(valid, q)
	}

	filtered := FilterQuestions(valid, cfg)
	n := max(0, min(cfg.NumberOfQuestions, len(filtered)))

	var selected []*model.Question
	if cfg.Mode == model.ModeSpaced {
		selected = e.orderBySRS(filtered, history, rng)[:n]
	} else {
		pool := slices.Clone(filtered)
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		selected = pool[:n]
	}

	prepared := make([]model.PreparedQuestion, 0, len(selected))
	for _, q := range selected {
		prepared = append(prepared, prepareQuestion(q, cfg.ShuffleAnswers, rng))
	}

	monitoring.QuizSelections.WithLabelValues(string(cfg.Mode)).Inc()
	monitoring.SelectedQuestions.Observe(float64(len(prepared)))
	return prepared
}

// FilterQuestions 按级别过滤；random 模式不应用类别和子类别筛选
func FilterQuestions(questions []*model.Question, cfg model.QuizConfig) []*model.Question {
	out := make([]*model.Question, 0, len(questions))
	for _, q := range questions {
		if q.Level != cfg.Level {
			continue
		}
		if cfg.Mode == model.ModeRandom {
			out = append(out, q)
			continue
		}
		if len(cfg.Categories) > 0 && !slices.Contains(cfg.Categories, q.Category) {
			continue
		}
		if len(cfg.Subcategories) > 0 && !slices.Contains(cfg.Subcategories, strings.TrimSpace(q.SubcategoryValue())) {
			continue
		}
		out = append(out, q)
	}
	return out
}

// orderBySRS 先打乱再按权重稳定降序，同权重保持打乱后的顺序
func (e *QuizEngine) orderBySRS(questions []*model.Question, history map[string]model.ReviewHistory, rng *rand.Rand) []*model.Question {
	now := e.Now()
	type scored struct {
		q      *model.Question
		weight float64
	}
	items := make([]scored, len(questions))
	for i, q := range questions {
		var h *model.ReviewHistory
		if entry, ok := history[q.ID]; ok {
			h = &entry
		}
		items[i] = scored{q: q, weight: SRSWeight(h, now)}
	}
	rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	sort.SliceStable(items, func(i, j int) bool { return items[i].weight > items[j].weight })

	out := make([]*model.Question, len(items))
	for i, it := range items {
		out[i] = it.q
	}
	return out
}

// SRSWeight 间隔重复权重：未见过 4.0；答错中 3.5 起加连错和间隔加成；
// 答对后到期 2.5 起加逾期加成，未到期 0.5
func SRSWeight(h *model.ReviewHistory, now time.Time) float64 {
	if h == nil {
		return weightUnseen
	}

	if h.IncorrectStreak > 0 {
		streakBoost := math.Min(maxStreakBoost, float64(h.IncorrectStreak))
		return incorrectBase + streakBoost + math.Min(maxRecencyBoost, DaysSince(h.LastAttemptAt, now)/2.0)
	}

	interval := SRSIntervalDays(h.CorrectStreak)
	sinceCorrect := DaysSince(h.LastCorrectAt, now)
	if sinceCorrect >= interval {
		return dueBase + math.Min(maxOverdueBoost, sinceCorrect/math.Max(1, interval))
	}
	return weightMastered
}

func SRSIntervalDays(correctStreak int) float64 {
	if correctStreak < 0 {
		correctStreak = 0
	}
	if correctStreak >= len(srsIntervals) {
		return srsIntervals[len(srsIntervals)-1]
	}
	return srsIntervals[correctStreak]
}

// DaysSince nil 视为 30 天；结果不小于 0
func DaysSince(t *time.Time, now time.Time) float64 {
	if t == nil {
		return daysSinceNever
	}
	return math.Max(0, now.Sub(*t).Seconds()/secondsPerDay)
}

// prepareQuestion 打乱选项时把原正确下标映射到新位置
func prepareQuestion(q *model.Question, shuffle bool, rng *rand.Rand) model.PreparedQuestion {
	if !shuffle {
		correct := slices.Clone(q.CorrectIndices)
		sort.Ints(correct)
		return model.PreparedQuestion{
			ID:             q.ID,
			Original:       *q,
			Stem:           q.Stem,
			Choices:        slices.Clone(q.Choices),
			CorrectIndices: correct,
		}
	}

	perm := rng.Perm(len(q.Choices)) // perm[new] = old
	newPos := make(map[int]int, len(perm))
	choices := make([]string, len(perm))
	for newIdx, oldIdx := range perm {
		choices[newIdx] = q.Choices[oldIdx]
		newPos[oldIdx] = newIdx
	}
	correct := make([]int, 0, len(q.CorrectIndices))
	for _, old := range q.CorrectIndices {
		if idx, ok := newPos[old]; ok {
			correct = append(correct, idx)
		}
	}
	sort.Ints(correct)

	return model.PreparedQuestion{
		ID:             q.ID,
		Original:       *q,
		Stem:           q.Stem,
		Choices:        choices,
		CorrectIndices: correct,
	}
}
