package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/repository"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"
	"cfaquiz_backend/pkg/monitoring"
	"cfaquiz_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ImportService 导入流程：切分 → 解析 → 去重 → 图片 → 持久化。
// 同一时间只允许一个导入在跑
type ImportService struct {
	mu sync.Mutex

	Catalog    *repository.CatalogRepository
	Reports    *repository.ImportReportRepository
	Assets     *AssetService
	Policy     ExplanationPolicy
	MaxChoices int
	Now        func() time.Time
}

func NewImportService(catalog *repository.CatalogRepository, reports *repository.ImportReportRepository, assets *AssetService, policy ExplanationPolicy, maxChoices int) *ImportService {
	return &ImportService{
		Catalog:    catalog,
		Reports:    reports,
		Assets:     assets,
		Policy:     policy,
		MaxChoices: maxChoices,
		Now:        time.Now,
	}
}

// ImportFile 按扩展名处理 .csv 或 .zip，返回本次导入报告。
// 报告无论成败都会保存
func (s *ImportService) ImportFile(ctx context.Context, path string) (*model.ImportReport, error) {
	if !s.mu.TryLock() {
		return nil, util.ErrImportInProgress
	}
	defer s.mu.Unlock()

	source := filepath.Base(path)
	ctx, span := tracing.StartSpan(ctx, "import.file", attribute.String("import.source", source))

	started := s.Now()
	report := &model.ImportReport{Source: source, Status: model.ImportImporting, StartedAt: &started}
	logger.Log.Info("Import started", zap.String("source", source))

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			err = s.importData(ctx, data, nil, report)
		}
	case ".zip":
		err = s.importArchive(ctx, path, report)
	default:
		err = fmt.Errorf("%w: %s", util.ErrUnsupportedFile, source)
	}

	s.finish(ctx, report, err, started)
	tracing.EndSpan(span, err)
	return report, err
}

// ImportArchive 只接受 .zip 的 ImportFile
func (s *ImportService) ImportArchive(ctx context.Context, path string) (*model.ImportReport, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return nil, fmt.Errorf("%w: %s", util.ErrUnsupportedFile, filepath.Base(path))
	}
	return s.ImportFile(ctx, path)
}

func (s *ImportService) importArchive(ctx context.Context, path string, report *model.ImportReport) error {
	return WithTempDir(func(dir string) error {
		if err := ExtractZip(path, dir); err != nil {
			return err
		}
		csvPath, err := FindFirstCSV(dir)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(csvPath)
		if err != nil {
			return err
		}
		idx, err := BuildAssetIndex(dir)
		if err != nil {
			return err
		}
		logger.Log.Debug("Archive extracted",
			zap.String("csv", filepath.Base(csvPath)),
			zap.Int("indexedFiles", idx.Len()))
		return s.importData(ctx, data, idx, report)
	})
}

// importData 根据表头判断是题目还是公式
func (s *ImportService) importData(ctx context.Context, data []byte, idx *AssetIndex, report *model.ImportReport) error {
	rows, err := ReadRows(data)
	if err != nil {
		return err
	}
	resolver, err := s.seededResolver(ctx)
	if err != nil {
		return err
	}
	if LooksLikeFormulaSheet(rows) {
		report.Kind = model.ImportFormulas
		return s.importFormulaRows(ctx, rows, idx, resolver, report)
	}
	report.Kind = model.ImportQuestions
	return s.importQuestionRows(ctx, rows, idx, resolver, report)
}

// seededResolver 用题库中已有的题目和公式类别做种子，保持已有写法
func (s *ImportService) seededResolver(ctx context.Context) (*CategoryResolver, error) {
	questions, err := s.Catalog.LoadAllQuestions(ctx)
	if err != nil {
		return nil, err
	}
	formulas, err := s.Catalog.LoadAllFormulas(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	seed := make([]string, 0)
	add := func(category string) {
		if !seen[category] {
			seen[category] = true
			seed = append(seed, category)
		}
	}
	for _, q := range questions {
		add(q.Category)
	}
	for _, f := range formulas {
		add(f.Category)
	}
	return NewCategoryResolver(seed...), nil
}

func (s *ImportService) importQuestionRows(ctx context.Context, rows [][]string, idx *AssetIndex, resolver *CategoryResolver, report *model.ImportReport) error {
	parser := NewQuestionParser(resolver, s.Policy, s.MaxChoices)
	parser.Now = s.Now
	res, err := parser.ParseRows(rows)
	if res != nil {
		report.Errors = append(report.Errors, res.Errors...)
		report.Warnings = append(report.Warnings, res.Warnings...)
		monitoring.ImportRowErrors.WithLabelValues(string(model.ImportQuestions)).Add(float64(len(res.Errors)))
	}
	if err != nil {
		return err
	}

	if idx != nil && s.Assets != nil {
		report.Warnings = append(report.Warnings, s.Assets.AttachQuestionImages(ctx, idx, res.Questions)...)
	}

	existing, _ := DedupeQuestions(s.Catalog.LoadImportedQuestions(ctx))
	merged, catalogDups := MergeQuestions(existing, res.Questions)
	if catalogDups > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("Duplicates ignored against catalog: %d", catalogDups))
	}
	if err := s.Catalog.SaveImportedQuestions(ctx, merged); err != nil {
		return fmt.Errorf("save imported questions: %w", err)
	}

	report.ImportedCount = len(merged) - len(existing)
	report.DuplicateCount = res.Duplicates + catalogDups
	report.CatalogSize = len(merged)
	return nil
}

func (s *ImportService) importFormulaRows(ctx context.Context, rows [][]string, idx *AssetIndex, resolver *CategoryResolver, report *model.ImportReport) error {
	parser := NewFormulaParser(resolver)
	parser.Now = s.Now
	res, err := parser.ParseRows(rows)
	if res != nil {
		report.Errors = append(report.Errors, res.Errors...)
		report.Warnings = append(report.Warnings, res.Warnings...)
		monitoring.ImportRowErrors.WithLabelValues(string(model.ImportFormulas)).Add(float64(len(res.Errors)))
	}
	if err != nil {
		return err
	}

	if idx != nil && s.Assets != nil {
		report.Warnings = append(report.Warnings, s.Assets.AttachFormulaImages(ctx, idx, res.Formulas)...)
	}

	existing, _ := DedupeFormulas(s.Catalog.LoadImportedFormulas(ctx))
	merged, catalogDups := MergeFormulas(existing, res.Formulas)
	if catalogDups > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("Duplicates ignored against catalog: %d", catalogDups))
	}
	if err := s.Catalog.SaveImportedFormulas(ctx, merged); err != nil {
		return fmt.Errorf("save imported formulas: %w", err)
	}

	report.ImportedCount = len(merged) - len(existing)
	report.DuplicateCount = res.Duplicates + catalogDups
	report.CatalogSize = len(merged)
	return nil
}

func (s *ImportService) finish(ctx context.Context, report *model.ImportReport, err error, started time.Time) {
	finished := s.Now()
	report.FinishedAt = &finished

	if err != nil {
		report.Status = model.ImportFailed
		report.Message = err.Error()
		logger.Log.Error("Import failed", zap.String("source", report.Source), zap.Error(err))
	} else {
		report.Status = model.ImportSuccess
		report.Message = fmt.Sprintf("Imported %d %s", report.ImportedCount, report.Kind)
		logger.Log.Info("Import finished",
			zap.String("source", report.Source),
			zap.String("kind", string(report.Kind)),
			zap.Int("imported", report.ImportedCount),
			zap.Int("duplicates", report.DuplicateCount),
			zap.Int("errors", len(report.Errors)),
			zap.Int("warnings", len(report.Warnings)))
		monitoring.ImportedRecords.WithLabelValues(string(report.Kind)).Add(float64(report.ImportedCount))
		monitoring.ImportDuplicates.WithLabelValues(string(report.Kind)).Add(float64(report.DuplicateCount))
	}
	for _, w := range report.Warnings {
		logger.Log.Debug("Import warning", zap.String("source", report.Source), zap.String("warning", w))
	}

	monitoring.ImportRuns.WithLabelValues(string(report.Kind), string(report.Status)).Inc()
	monitoring.ImportDuration.Observe(finished.Sub(started).Seconds())

	if s.Reports != nil {
		if saveErr := s.Reports.Save(ctx, report); saveErr != nil {
			logger.Log.Error("Failed to save import report", zap.Error(saveErr))
		}
	}
}

// LastReport 最近一次导入报告，没有则返回 idle 状态
func (s *ImportService) LastReport(ctx context.Context) *model.ImportReport {
	if s.Reports != nil {
		if r := s.Reports.Load(ctx); r != nil {
			return r
		}
	}
	return &model.ImportReport{Status: model.ImportIdle}
}

// ClearImported 删除导入的题目、公式及其图片，内置题库和作答历史不受影响
func (s *ImportService) ClearImported(ctx context.Context) error {
	if !s.mu.TryLock() {
		return util.ErrImportInProgress
	}
	defer s.mu.Unlock()

	questions := s.Catalog.LoadImportedQuestions(ctx)
	formulas := s.Catalog.LoadImportedFormulas(ctx)
	removed := 0
	if s.Assets != nil {
		removed = s.Assets.RemoveImages(ctx, questions, formulas)
	}
	if err := s.Catalog.ClearImported(ctx); err != nil {
		return err
	}
	if s.Reports != nil {
		_ = s.Reports.Save(ctx, &model.ImportReport{Status: model.ImportIdle})
	}
	logger.Log.Info("Imported content cleared",
		zap.Int("questions", len(questions)),
		zap.Int("formulas", len(formulas)),
		zap.Int("assets", removed))
	return nil
}

// BuildReportText 纯文本导入报告
func BuildReportText(r *model.ImportReport) string {
	var b strings.Builder
	b.WriteString("Import Report\n")
	status := string(r.Status)
	if r.Status == model.ImportFailed && r.Message != "" {
		status = fmt.Sprintf("%s (%s)", r.Status, r.Message)
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	if r.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", r.Source)
	}
	if r.Kind != "" {
		fmt.Fprintf(&b, "Kind: %s\n", r.Kind)
	}
	if r.Status == model.ImportSuccess {
		fmt.Fprintf(&b, "Imported: %d\n", r.ImportedCount)
		fmt.Fprintf(&b, "Duplicates: %d\n", r.DuplicateCount)
		fmt.Fprintf(&b, "Catalog size: %d\n", r.CatalogSize)
	}
	if r.FinishedAt != nil {
		fmt.Fprintf(&b, "Finished: %s\n", r.FinishedAt.Format(util.TimeFormat))
	}
	b.WriteString("\n")

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(title + ":\n")
		for _, it := range items {
			b.WriteString("- " + it + "\n")
		}
		b.WriteString("\n")
	}
	writeList("Errors", r.Errors)
	writeList("Warnings", r.Warnings)
	return b.String()
}
