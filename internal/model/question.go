package model

import (
	"encoding/json"
	"sort"
	"time"
)

// Question 题库中的单道选择题
//
// CorrectIndices 始终升序存储。旧版题库只有单个 `answerIndex` 字段，
// 反序列化时自动转换为 [answerIndex]。
type Question struct {
	ID             string     `json:"id"`
	Level          Level      `json:"level"`
	Category       string     `json:"category"`
	Subcategory    *string    `json:"subcategory,omitempty"`
	Stem           string     `json:"stem"`
	Choices        []string   `json:"choices"`
	CorrectIndices []int      `json:"correctIndices"`
	Explanation    string     `json:"explanation"`
	Difficulty     *int       `json:"difficulty,omitempty"`
	ImageName      *string    `json:"imageName,omitempty"`
	ImportedAt     *time.Time `json:"importedAt,omitempty"`
}

func (q *Question) UnmarshalJSON(data []byte) error {
	type questionJSON Question
	aux := struct {
		*questionJSON
		AnswerIndex *int `json:"answerIndex,omitempty"`
	}{questionJSON: (*questionJSON)(q)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(q.CorrectIndices) == 0 && aux.AnswerIndex != nil {
		q.CorrectIndices = []int{*aux.AnswerIndex}
	}
	if q.CorrectIndices == nil {
		q.CorrectIndices = []int{}
	}
	sort.Ints(q.CorrectIndices)
	return nil
}

func (q Question) IsMultiAnswer() bool {
	return len(q.CorrectIndices) > 1
}

// Usable 至少两个选项，且正确答案下标非空并全部在范围内
func (q Question) Usable() bool {
	if len(q.Choices) < 2 || len(q.CorrectIndices) == 0 {
		return false
	}
	for _, idx := range q.CorrectIndices {
		if idx < 0 || idx >= len(q.Choices) {
			return false
		}
	}
	return true
}

func (q Question) SubcategoryValue() string {
	if q.Subcategory == nil {
		return ""
	}
	return *q.Subcategory
}

func (q Question) ImageValue() string {
	if q.ImageName == nil {
		return ""
	}
	return *q.ImageName
}

// WithImage 返回指向已存储图片的副本
func (q Question) WithImage(name string) Question {
	q.ImageName = &name
	return q
}
