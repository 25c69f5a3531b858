package model

import (
	"fmt"
	"strings"
)

// QuizMode 组卷模式
type QuizMode string

const (
	ModeRevision QuizMode = "revision" // 即时反馈 + 解析
	ModeTest     QuizMode = "test"     // 结束后统一出分
	ModeRandom   QuizMode = "random"   // 忽略分类筛选，混合本级别全部题目
	ModeSpaced   QuizMode = "spaced"   // 按作答历史加权排序
)

func (m QuizMode) Valid() bool {
	switch m {
	case ModeRevision, ModeTest, ModeRandom, ModeSpaced:
		return true
	}
	return false
}

func ParseQuizMode(raw string) (QuizMode, bool) {
	m := QuizMode(strings.ToLower(strings.TrimSpace(raw)))
	return m, m.Valid()
}

// QuizConfig 一次测验的配置
type QuizConfig struct {
	Level             Level    `json:"level"`
	Mode              QuizMode `json:"mode"`
	Categories        []string `json:"categories"`
	Subcategories     []string `json:"subcategories"` // 为空表示不过滤
	NumberOfQuestions int      `json:"numberOfQuestions"`
	ShuffleAnswers    bool     `json:"shuffleAnswers"`
	TimeLimitSeconds  *int     `json:"timeLimitSeconds,omitempty"`
}

func DefaultQuizConfig() QuizConfig {
	return QuizConfig{
		Level:             Level1,
		Mode:              ModeRevision,
		Categories:        []string{},
		Subcategories:     []string{},
		NumberOfQuestions: 20,
	}
}

func (c QuizConfig) Validate() error {
	if !c.Level.Valid() {
		return fmt.Errorf("invalid level %d", c.Level)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.NumberOfQuestions <= 0 {
		return fmt.Errorf("numberOfQuestions must be positive, got %d", c.NumberOfQuestions)
	}
	if c.TimeLimitSeconds != nil && *c.TimeLimitSeconds <= 0 {
		return fmt.Errorf("timeLimitSeconds must be positive, got %d", *c.TimeLimitSeconds)
	}
	return nil
}

// PreparedQuestion 已准备好展示的题目。
// ShuffleAnswers 时 Choices 被打乱，CorrectIndices 按新顺序重新映射；
// Original 保留原题用于解析和分类展示。
type PreparedQuestion struct {
	ID             string   `json:"id"`
	Original       Question `json:"original"`
	Stem           string   `json:"stem"`
	Choices        []string `json:"choices"`
	CorrectIndices []int    `json:"correctIndices"`
}

func (p PreparedQuestion) IsMultiAnswer() bool {
	return len(p.CorrectIndices) > 1
}
