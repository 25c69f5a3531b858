package model

import "time"

// Blob 键值存储表，题库/历史/会话都以整块 JSON 写入
type Blob struct {
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Data      []byte    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Blob) TableName() string {
	return "blobs"
}
