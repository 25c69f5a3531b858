package model

import "time"

type ImportStatus string

const (
	ImportIdle      ImportStatus = "idle"
	ImportImporting ImportStatus = "importing"
	ImportSuccess   ImportStatus = "success"
	ImportFailed    ImportStatus = "failed"
)

type ImportKind string

const (
	ImportQuestions ImportKind = "questions"
	ImportFormulas  ImportKind = "formulas"
)

// ImportReport 最近一次导入的结果，可导出为纯文本
type ImportReport struct {
	Source         string       `json:"source"`
	Kind           ImportKind   `json:"kind"`
	Status         ImportStatus `json:"status"`
	Message        string       `json:"message,omitempty"`
	ImportedCount  int          `json:"importedCount"`
	DuplicateCount int          `json:"duplicateCount"`
	CatalogSize    int          `json:"catalogSize"`
	Errors         []string     `json:"errors"`
	Warnings       []string     `json:"warnings"`
	StartedAt      *time.Time   `json:"startedAt,omitempty"`
	FinishedAt     *time.Time   `json:"finishedAt,omitempty"`
}

func (r ImportReport) HasContent() bool {
	return len(r.Errors) > 0 || len(r.Warnings) > 0 || r.Status != ImportIdle
}
