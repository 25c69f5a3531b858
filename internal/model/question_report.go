package model

import "time"

type IssueType string

const (
	IssueTypo      IssueType = "typo"
	IssueAmbiguity IssueType = "ambiguity"
	IssueOther     IssueType = "other"
)

func (t IssueType) Valid() bool {
	return t == IssueTypo || t == IssueAmbiguity || t == IssueOther
}

// QuestionReport 用户对题目的纠错反馈，保存题目当时的快照
type QuestionReport struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	QuestionID  string     `json:"questionId"`
	Level       Level      `json:"level"`
	Category    string     `json:"category"`
	Subcategory *string    `json:"subcategory,omitempty"`
	Stem        string     `json:"stem"`
	Choices     []string   `json:"choices"`
	Explanation string     `json:"explanation"`
	ImageName   *string    `json:"imageName,omitempty"`
	IssueType   IssueType  `json:"issueType"`
	Note        *string    `json:"note,omitempty"`
	ImportedAt  *time.Time `json:"importedAt,omitempty"`
}
