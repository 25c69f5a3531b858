package model

import "time"

// Formula 公式卡片，Topic 相当于题目的 subcategory
type Formula struct {
	ID          string     `json:"id"`
	Category    string     `json:"category"`
	Topic       *string    `json:"topic,omitempty"`
	Title       string     `json:"title"`
	Formula     string     `json:"formula"`
	Notes       *string    `json:"notes,omitempty"`
	ImageName   *string    `json:"imageName,omitempty"`
	QuestionIDs []string   `json:"questionIds,omitempty"`
	ImportedAt  *time.Time `json:"importedAt,omitempty"`
}

func (f Formula) TopicValue() string {
	if f.Topic == nil {
		return ""
	}
	return *f.Topic
}

func (f Formula) ImageValue() string {
	if f.ImageName == nil {
		return ""
	}
	return *f.ImageName
}

func (f Formula) WithImage(name string) Formula {
	f.ImageName = &name
	return f
}
