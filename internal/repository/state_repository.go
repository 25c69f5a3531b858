package repository

import (
	"context"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"go.uber.org/zap"
)

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

// HistoryRepository 题目 id 到作答历史的映射，整体存取
type HistoryRepository struct {
	Store BlobStore
}

func NewHistoryRepository(store BlobStore) *HistoryRepository {
	return &HistoryRepository{Store: store}
}

func (r *HistoryRepository) LoadAll(ctx context.Context) map[string]model.ReviewHistory {
	all, err := loadJSON[map[string]model.ReviewHistory](ctx, r.Store, util.KeyQuestionHistory)
	if err != nil {
		logger.Log.Warn("Question history unreadable, starting fresh", zap.Error(err))
	}
	if all == nil {
		all = make(map[string]model.ReviewHistory)
	}
	return all
}

func (r *HistoryRepository) Save(ctx context.Context, all map[string]model.ReviewHistory) error {
	return saveJSON(ctx, r.Store, util.KeyQuestionHistory, all)
}

func (r *HistoryRepository) Clear(ctx context.Context) error {
	return r.Store.Delete(ctx, util.KeyQuestionHistory)
}

// SessionRepository 进行中测验的快照，仅保存一个
type SessionRepository struct {
	Store BlobStore
}

func NewSessionRepository(store BlobStore) *SessionRepository {
	return &SessionRepository{Store: store}
}

func (r *SessionRepository) Load(ctx context.Context) (*model.QuizSessionSnapshot, error) {
	return loadJSON[*model.QuizSessionSnapshot](ctx, r.Store, util.KeyQuizSession)
}

func (r *SessionRepository) Save(ctx context.Context, snapshot *model.QuizSessionSnapshot) error {
	return saveJSON(ctx, r.Store, util.KeyQuizSession, snapshot)
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	return r.Store.Delete(ctx, util.KeyQuizSession)
}

// AttemptRepository 已完成的测验记录，按完成时间倒序
type AttemptRepository struct {
	Store BlobStore
}

func NewAttemptRepository(store BlobStore) *AttemptRepository {
	return &AttemptRepository{Store: store}
}

func (r *AttemptRepository) List(ctx context.Context) []model.QuizAttempt {
	attempts, err := loadJSON[[]model.QuizAttempt](ctx, r.Store, util.KeyQuizAttempts)
	if err != nil {
		logger.Log.Warn("Quiz attempts unreadable", zap.Error(err))
		return nil
	}
	return attempts
}

func (r *AttemptRepository) Add(ctx context.Context, attempt model.QuizAttempt) error {
	attempts := append([]model.QuizAttempt{attempt}, r.List(ctx)...)
	return saveJSON(ctx, r.Store, util.KeyQuizAttempts, attempts)
}

// ReportRepository 题目问题反馈，最新的在前
type ReportRepository struct {
	Store BlobStore
}

func NewReportRepository(store BlobStore) *ReportRepository {
	return &ReportRepository{Store: store}
}

func (r *ReportRepository) List(ctx context.Context) []model.QuestionReport {
	reports, err := loadJSON[[]model.QuestionReport](ctx, r.Store, util.KeyQuestionReports)
	if err != nil {
		logger.Log.Warn("Question reports unreadable", zap.Error(err))
		return nil
	}
	return reports
}

func (r *ReportRepository) Add(ctx context.Context, report model.QuestionReport) error {
	reports := append([]model.QuestionReport{report}, r.List(ctx)...)
	return saveJSON(ctx, r.Store, util.KeyQuestionReports, reports)
}

// ImportReportRepository 最近一次导入报告
type ImportReportRepository struct {
	Store BlobStore
}

func NewImportReportRepository(store BlobStore) *ImportReportRepository {
	return &ImportReportRepository{Store: store}
}

func (r *ImportReportRepository) Load(ctx context.Context) *model.ImportReport {
	report, err := loadJSON[*model.ImportReport](ctx, r.Store, util.KeyImportReport)
	if err != nil {
		logger.Log.Warn("Import report unreadable", zap.Error(err))
		return nil
	}
	return report
}

func (r *ImportReportRepository) Save(ctx context.Context, report *model.ImportReport) error {
	return saveJSON(ctx, r.Store, util.KeyImportReport, report)
}
