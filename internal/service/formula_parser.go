package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"go.uber.org/zap"
)

var (
	errEmptyTitle   = errors.New("empty title")
	errEmptyFormula = errors.New("empty formula")
)

// 无表头时列顺序：category,topic,title,formula,notes,image,question_ids
var (
	formulaKeysCategory = []string{"category"}
	formulaKeysTopic    = []string{"topic", "subcategory", "sub"}
	formulaKeysTitle    = []string{"title", "name"}
	formulaKeysFormula  = []string{"formula", "equation"}
	formulaKeysNotes    = []string{"notes", "note", "comment"}
	formulaKeysImage    = []string{"image", "imagename", "image_name"}
	formulaKeysQIDs     = []string{"question_ids", "questionids", "question_id", "questions"}
)

type FormulaImportResult struct {
	Formulas   []*model.Formula
	Errors     []string
	Warnings   []string
	Duplicates int
}

type FormulaParser struct {
	Resolver *CategoryResolver
	Now      func() time.Time
}

func NewFormulaParser(resolver *CategoryResolver) *FormulaParser {
	if resolver == nil {
		resolver = NewCategoryResolver()
	}
	return &FormulaParser{Resolver: resolver, Now: time.Now}
}

func (p *FormulaParser) Parse(data []byte) (*FormulaImportResult, error) {
	rows, err := ReadRows(data)
	if err != nil {
		return nil, err
	}
	return p.ParseRows(rows)
}

func (p *FormulaParser) ParseRows(rows [][]string) (*FormulaImportResult, error) {
	header, start := DetectHeader(rows, formulaHeaderMarkers)
	importedAt := p.Now()

	result := &FormulaImportResult{}
	var parsed []*model.Formula
	for i := start; i < len(rows); i++ {
		f, err := p.parseRow(rows[i], header)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: i + 1, Reason: err.Error()}.Error())
			continue
		}
		f.ImportedAt = &importedAt
		parsed = append(parsed, f)
	}

	if len(parsed) == 0 && len(result.Errors) > 0 {
		logger.Log.Warn("Formula import produced no records", zap.Int("errors", len(result.Errors)))
		return result, fmt.Errorf("%w: %s", util.ErrImportFailed, result.Errors[0])
	}

	result.Formulas, result.Duplicates = DedupeFormulas(parsed)
	if result.Duplicates > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Duplicates ignored in CSV: %d", result.Duplicates))
	}
	return result, nil
}

func (p *FormulaParser) parseRow(row []string, header Header) (*model.Formula, error) {
	pos := func(i int) int {
		if header.IsEmpty() {
			return i
		}
		return -1
	}

	category, ok := p.Resolver.Resolve(header.Value(row, formulaKeysCategory, pos(0)))
	if !ok {
		return nil, errEmptyCategory
	}
	title := header.Value(row, formulaKeysTitle, pos(2))
	if title == "" {
		return nil, errEmptyTitle
	}
	formula := header.Value(row, formulaKeysFormula, pos(3))
	if formula == "" {
		return nil, errEmptyFormula
	}

	f := &model.Formula{
		Category:    category,
		Topic:       util.OptionalString(header.Value(row, formulaKeysTopic, pos(1))),
		Title:       title,
		Formula:     formula,
		Notes:       util.OptionalString(header.Value(row, formulaKeysNotes, pos(4))),
		ImageName:   util.OptionalString(header.Value(row, formulaKeysImage, pos(5))),
		QuestionIDs: parseIDList(header.Value(row, formulaKeysQIDs, pos(6))),
	}
	f.ID = FormulaStableID(FormulaDedupeKey(f))
	return f, nil
}

// parseIDList 接受 | ; / 分隔
func parseIDList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '|' || r == ';' || r == '/' })
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}
