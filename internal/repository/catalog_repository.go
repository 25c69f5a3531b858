package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"go.uber.org/zap"
)

// CatalogRepository 题库 = 只读内置集合 + 可变导入集合。
// 只有导入集合会被整体重写。
type CatalogRepository struct {
	Store                BlobStore
	BundledQuestionsPath string
	BundledFormulasPath  string
}

func NewCatalogRepository(store BlobStore, bundledQuestions, bundledFormulas string) *CatalogRepository {
	return &CatalogRepository{
		Store:                store,
		BundledQuestionsPath: bundledQuestions,
		BundledFormulasPath:  bundledFormulas,
	}
}

// LoadImportedQuestions 数据损坏时记录日志并视为空
func (r *CatalogRepository) LoadImportedQuestions(ctx context.Context) []*model.Question {
	questions, err := r.LoadImportedQuestionsOrError(ctx)
	if err != nil {
		logger.Log.Warn("Imported questions unreadable, treating as empty", zap.Error(err))
		return nil
	}
	return questions
}

// LoadImportedQuestionsOrError 供校验工具使用，损坏时返回 ErrCatalogCorrupt
func (r *CatalogRepository) LoadImportedQuestionsOrError(ctx context.Context) ([]*model.Question, error) {
	questions, err := loadJSON[[]*model.Question](ctx, r.Store, util.KeyImportedQuestions)
	return dropNil(questions, util.KeyImportedQuestions), err
}

func (r *CatalogRepository) SaveImportedQuestions(ctx context.Context, questions []*model.Question) error {
	if questions == nil {
		questions = []*model.Question{}
	}
	return saveJSON(ctx, r.Store, util.KeyImportedQuestions, questions)
}

func (r *CatalogRepository) LoadImportedFormulas(ctx context.Context) []*model.Formula {
	formulas, err := r.LoadImportedFormulasOrError(ctx)
	if err != nil {
		logger.Log.Warn("Imported formulas unreadable, treating as empty", zap.Error(err))
		return nil
	}
	return formulas
}

func (r *CatalogRepository) LoadImportedFormulasOrError(ctx context.Context) ([]*model.Formula, error) {
	formulas, err := loadJSON[[]*model.Formula](ctx, r.Store, util.KeyImportedFormulas)
	return dropNil(formulas, util.KeyImportedFormulas), err
}

func (r *CatalogRepository) SaveImportedFormulas(ctx context.Context, formulas []*model.Formula) error {
	if formulas == nil {
		formulas = []*model.Formula{}
	}
	return saveJSON(ctx, r.Store, util.KeyImportedFormulas, formulas)
}

// ClearImported 删除所有导入内容，内置集合不受影响
func (r *CatalogRepository) ClearImported(ctx context.Context) error {
	if err := r.Store.Delete(ctx, util.KeyImportedQuestions); err != nil {
		return err
	}
	return r.Store.Delete(ctx, util.KeyImportedFormulas)
}

// dropNil 去掉 JSON 数组里的 null 元素
func dropNil[T any](items []*T, source string) []*T {
	if items == nil {
		return nil
	}
	out := items[:0]
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	if dropped := len(items) - len(out); dropped > 0 {
		logger.Log.Warn("Null catalog entries skipped", zap.String("source", source), zap.Int("count", dropped))
	}
	return out
}

func readBundled[T any](path string) ([]*T, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", util.ErrCatalogCorrupt, path, err)
	}
	return dropNil(out, path), nil
}

func (r *CatalogRepository) LoadBundledQuestions() ([]*model.Question, error) {
	return readBundled[model.Question](r.BundledQuestionsPath)
}

func (r *CatalogRepository) LoadBundledFormulas() ([]*model.Formula, error) {
	return readBundled[model.Formula](r.BundledFormulasPath)
}

// LoadAllQuestions 合并内置与导入题目。
// id 相同时，导入版本的 importedAt 不早于内置版本才替换。
func (r *CatalogRepository) LoadAllQuestions(ctx context.Context) ([]*model.Question, error) {
	bundled, err := r.LoadBundledQuestions()
	if err != nil {
		return nil, err
	}
	return unionByID(bundled, r.LoadImportedQuestions(ctx),
		func(q *model.Question) string { return q.ID },
		func(q *model.Question) int64 { return unixOrZero(q.ImportedAt) }), nil
}

func (r *CatalogRepository) LoadAllFormulas(ctx context.Context) ([]*model.Formula, error) {
	bundled, err := r.LoadBundledFormulas()
	if err != nil {
		return nil, err
	}
	return unionByID(bundled, r.LoadImportedFormulas(ctx),
		func(f *model.Formula) string { return f.ID },
		func(f *model.Formula) int64 { return unixOrZero(f.ImportedAt) }), nil
}

func unionByID[T any](bundled, imported []T, id func(T) string, stamp func(T) int64) []T {
	out := make([]T, 0, len(bundled)+len(imported))
	index := make(map[string]int, len(bundled)+len(imported))
	for _, batch := range [][]T{bundled, imported} {
		for _, item := range batch {
			key := id(item)
			if pos, ok := index[key]; ok {
				if stamp(item) >= stamp(out[pos]) {
					out[pos] = item
				}
				continue
			}
			index[key] = len(out)
			out = append(out, item)
		}
	}
	return out
}
