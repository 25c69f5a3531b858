package service

import (
	"context"
	"io"
	"sort"
	"strings"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/repository"
)

// QuestionFilter 题目列表筛选条件，零值表示不过滤
type QuestionFilter struct {
	Level       model.Level
	Category    string
	Subcategory string
}

// CatalogService 只读题库视图：内置题库与导入题库的并集
type CatalogService struct {
	Catalog *repository.CatalogRepository
}

func NewCatalogService(catalog *repository.CatalogRepository) *CatalogService {
	return &CatalogService{Catalog: catalog}
}

func (s *CatalogService) Questions(ctx context.Context, filter QuestionFilter) ([]*model.Question, error) {
	all, err := s.Catalog.LoadAllQuestions(ctx)
	if err != nil {
		return nil, err
	}
	category := ""
	if filter.Category != "" {
		category = FoldKey(filter.Category)
		if resolved, ok := ResolveCategory(filter.Category); ok {
			category = FoldKey(resolved)
		}
	}
	sub := strings.TrimSpace(filter.Subcategory)

	out := make([]*model.Question, 0, len(all))
	for _, q := range all {
		if filter.Level != 0 && q.Level != filter.Level {
			continue
		}
		if category != "" && FoldKey(q.Category) != category {
			continue
		}
		if sub != "" && strings.TrimSpace(q.SubcategoryValue()) != sub {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *CatalogService) Question(ctx context.Context, id string) (*model.Question, bool) {
	all, err := s.Catalog.LoadAllQuestions(ctx)
	if err != nil {
		return nil, false
	}
	for _, q := range all {
		if q.ID == id {
			return q, true
		}
	}
	return nil, false
}

func (s *CatalogService) Formulas(ctx context.Context, category string) ([]*model.Formula, error) {
	all, err := s.Catalog.LoadAllFormulas(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return all, nil
	}
	key := FoldKey(category)
	if resolved, ok := ResolveCategory(category); ok {
		key = FoldKey(resolved)
	}
	out := make([]*model.Formula, 0, len(all))
	for _, f := range all {
		if FoldKey(f.Category) == key {
			out = append(out, f)
		}
	}
	return out, nil
}

// CategoryInfo 某类别在给定级别下的题量及子类别
type CategoryInfo struct {
	Name          string   `json:"name"`
	QuestionCount int      `json:"questionCount"`
	Subcategories []string `json:"subcategories"`
}

// Categories 标准类别在前，其余按字母序；level 为 0 时统计全部级别
func (s *CatalogService) Categories(ctx context.Context, level model.Level) ([]CategoryInfo, error) {
	all, err := s.Catalog.LoadAllQuestions(ctx)
	if err != nil {
		return nil, err
	}

	resolver := NewCategoryResolver()
	counts := make(map[string]int)
	subs := make(map[string]map[string]bool)
	for _, q := range all {
		if level != 0 && q.Level != level {
			continue
		}
		name, ok := resolver.Resolve(q.Category)
		if !ok {
			continue
		}
		counts[name]++
		if sub := strings.TrimSpace(q.SubcategoryValue()); sub != "" {
			if subs[name] == nil {
				subs[name] = make(map[string]bool)
			}
			subs[name][sub] = true
		}
	}

	names := resolver.Categories()
	out := make([]CategoryInfo, 0, len(names))
	for _, name := range names {
		info := CategoryInfo{Name: name, QuestionCount: counts[name], Subcategories: []string{}}
		for sub := range subs[name] {
			info.Subcategories = append(info.Subcategories, sub)
		}
		sort.Strings(info.Subcategories)
		out = append(out, info)
	}
	return out, nil
}

// CatalogCounts 内置与导入题量，用于健康检查和 -validate
type CatalogCounts struct {
	BundledQuestions  int `json:"bundledQuestions" yaml:"bundled_questions"`
	ImportedQuestions int `json:"importedQuestions" yaml:"imported_questions"`
	TotalQuestions    int `json:"totalQuestions" yaml:"total_questions"`
	BundledFormulas   int `json:"bundledFormulas" yaml:"bundled_formulas"`
	ImportedFormulas  int `json:"importedFormulas" yaml:"imported_formulas"`
	TotalFormulas     int `json:"totalFormulas" yaml:"total_formulas"`
}

// Validate 严格读取全部题库，任何损坏都返回错误
func (s *CatalogService) Validate(ctx context.Context) (CatalogCounts, error) {
	var counts CatalogCounts
	bundledQ, err := s.Catalog.LoadBundledQuestions()
	if err != nil {
		return counts, err
	}
	importedQ, err := s.Catalog.LoadImportedQuestionsOrError(ctx)
	if err != nil {
		return counts, err
	}
	bundledF, err := s.Catalog.LoadBundledFormulas()
	if err != nil {
		return counts, err
	}
	importedF, err := s.Catalog.LoadImportedFormulasOrError(ctx)
	if err != nil {
		return counts, err
	}
	allQ, err := s.Catalog.LoadAllQuestions(ctx)
	if err != nil {
		return counts, err
	}
	allF, err := s.Catalog.LoadAllFormulas(ctx)
	if err != nil {
		return counts, err
	}

	counts = CatalogCounts{
		BundledQuestions:  len(bundledQ),
		ImportedQuestions: len(importedQ),
		TotalQuestions:    len(allQ),
		BundledFormulas:   len(bundledF),
		ImportedFormulas:  len(importedF),
		TotalFormulas:     len(allF),
	}
	return counts, nil
}

func (s *CatalogService) ExportQuestions(ctx context.Context, w io.Writer, filter QuestionFilter) error {
	questions, err := s.Questions(ctx, filter)
	if err != nil {
		return err
	}
	return ExportQuestionsCSV(w, questions)
}

func (s *CatalogService) ExportFormulas(ctx context.Context, w io.Writer) error {
	formulas, err := s.Formulas(ctx, "")
	if err != nil {
		return err
	}
	return ExportFormulasCSV(w, formulas)
}
