package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/repository"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuestionReportService 用户对题目的纠错反馈
type QuestionReportService struct {
	Reports *repository.ReportRepository
	Catalog *repository.CatalogRepository
	Now     func() time.Time
}

func NewQuestionReportService(reports *repository.ReportRepository, catalog *repository.CatalogRepository) *QuestionReportService {
	return &QuestionReportService{Reports: reports, Catalog: catalog, Now: time.Now}
}

// Submit 记录一条反馈，附带题目当前内容的快照；空白备注视为无备注
func (s *QuestionReportService) Submit(ctx context.Context, questionID string, issue model.IssueType, note string) (*model.QuestionReport, error) {
	if !issue.Valid() {
		return nil, fmt.Errorf("%w: %q", util.ErrInvalidIssueType, issue)
	}
	questions, err := s.Catalog.LoadAllQuestions(ctx)
	if err != nil {
		return nil, err
	}
	var q *model.Question
	for _, candidate := range questions {
		if candidate.ID == questionID {
			q = candidate
			break
		}
	}
	if q == nil {
		return nil, fmt.Errorf("%w: %s", util.ErrQuestionNotFound, questionID)
	}

	report := model.QuestionReport{
		ID:          uuid.NewString(),
		CreatedAt:   s.Now(),
		QuestionID:  q.ID,
		Level:       q.Level,
		Category:    q.Category,
		Subcategory: q.Subcategory,
		Stem:        q.Stem,
		Choices:     q.Choices,
		Explanation: q.Explanation,
		ImageName:   q.ImageName,
		IssueType:   issue,
		Note:        util.OptionalString(note),
		ImportedAt:  q.ImportedAt,
	}
	if err := s.Reports.Add(ctx, report); err != nil {
		return nil, err
	}
	logger.Log.Info("Question reported",
		zap.String("question", q.ID),
		zap.String("issue", string(issue)))
	return &report, nil
}

// List 最新的在前
func (s *QuestionReportService) List(ctx context.Context) []model.QuestionReport {
	reports := s.Reports.List(ctx)
	if reports == nil {
		return []model.QuestionReport{}
	}
	return reports
}

func ParseIssueType(raw string) model.IssueType {
	return model.IssueType(strings.ToLower(strings.TrimSpace(raw)))
}
