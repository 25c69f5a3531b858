package service

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/logger"

	"go.uber.org/zap"
)

// ExplanationPolicy 解析空解析字段时的处理方式
type ExplanationPolicy string

const (
	ExplanationPlaceholder ExplanationPolicy = "placeholder"
	ExplanationEmpty       ExplanationPolicy = "empty"
)

// RowError 行级错误，不中断整批导入
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("Line %d: %s", e.Line, e.Reason)
}

var (
	errInvalidLevel  = errors.New("invalid level (expected 1/2/3)")
	errEmptyCategory = errors.New("empty category")
	errEmptyStem     = errors.New("empty stem")
	errTooFewChoices = errors.New("not enough choices (at least 2)")
	errInvalidAnswer = errors.New("invalid answerIndex (e.g. 1 or A|C)")
)

const (
	warnMissingExplanation = "missing explanation"
	warnBadDifficulty      = "invalid difficulty (ignored)"
)

// 表头列名候选
var (
	keysLevel       = []string{"level", "cfa_level"}
	keysCategory    = []string{"category", "topic", "section"}
	keysSubcategory = []string{"subcategory", "sub_category", "subtopic"}
	keysStem        = []string{"stem", "question", "prompt"}
	keysAnswer      = []string{"answerindex", "answer_index", "answer", "correct"}
	keysExplanation = []string{"explanation", "rationale", "explication"}
	keysDifficulty  = []string{"difficulty", "diff"}
	keysImage       = []string{"image", "photo", "image_name", "imagename", "imagefilename"}
	keysChoices     = [][]string{
		{"choicea", "choice_a", "a"},
		{"choiceb", "choice_b", "b"},
		{"choicec", "choice_c", "c"},
		{"choiced", "choice_d", "d"},
		{"choicee", "choice_e", "e"},
		{"choicef", "choice_f", "f"},
	}
)

// questionLayout 无表头时的列位置；-1 表示该列不存在
type questionLayout struct {
	level, category, sub, stem, choiceA, answer, explanation, difficulty, image int
}

var (
	// 旧版 11 列：id,level,category,stem,A,B,C,D,answer,explanation,difficulty
	legacyLayout = questionLayout{level: 1, category: 2, sub: -1, stem: 3, choiceA: 4, answer: 8, explanation: 9, difficulty: 10, image: -1}
	// 12 列及以上：在 category 后多一列 subcategory，末尾可带 image
	wideLayout = questionLayout{level: 1, category: 2, sub: 3, stem: 4, choiceA: 5, answer: 9, explanation: 10, difficulty: 11, image: 12}
	// 有表头时只按列名取值
	headerLayout = questionLayout{level: -1, category: -1, sub: -1, stem: -1, choiceA: -1, answer: -1, explanation: -1, difficulty: -1, image: -1}
)

func layoutFor(header Header, row []string) questionLayout {
	if !header.IsEmpty() {
		return headerLayout
	}
	if len(row) <= 11 {
		return legacyLayout
	}
	return wideLayout
}

type QuestionImportResult struct {
	Questions  []*model.Question
	Errors     []string
	Warnings   []string
	Duplicates int
}

// QuestionParser 把表格行解析为题目
type QuestionParser struct {
	Resolver   *CategoryResolver
	Policy     ExplanationPolicy
	MaxChoices int
	Now        func() time.Time
}

func NewQuestionParser(resolver *CategoryResolver, policy ExplanationPolicy, maxChoices int) *QuestionParser {
	if resolver == nil {
		resolver = NewCategoryResolver()
	}
	if maxChoices <= 0 || maxChoices > util.MaxHeaderChoices {
		maxChoices = util.MaxHeaderChoices
	}
	return &QuestionParser{Resolver: resolver, Policy: policy, MaxChoices: maxChoices, Now: time.Now}
}

// Parse 解析整份 CSV 数据。
// 只有在没有任何有效题目且至少有一条行错误时才返回错误。
func (p *QuestionParser) Parse(data []byte) (*QuestionImportResult, error) {
	rows, err := ReadRows(data)
	if err != nil {
		return nil, err
	}
	return p.ParseRows(rows)
}

func (p *QuestionParser) ParseRows(rows [][]string) (*QuestionImportResult, error) {
	header, start := DetectHeader(rows, questionHeaderMarkers)
	importedAt := p.Now()

	result := &QuestionImportResult{}
	var parsed []*model.Question
	for i := start; i < len(rows); i++ {
		line := i + 1
		q, warnings, err := p.parseRow(rows[i], header)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Reason: err.Error()}.Error())
			continue
		}
		q.ImportedAt = &importedAt
		parsed = append(parsed, q)
		for _, w := range warnings {
			result.Warnings = append(result.Warnings, RowError{Line: line, Reason: w}.Error())
		}
	}

	if len(parsed) == 0 && len(result.Errors) > 0 {
		logger.Log.Warn("Question import produced no records", zap.Int("errors", len(result.Errors)))
		return result, fmt.Errorf("%w: %s", util.ErrImportFailed, result.Errors[0])
	}

	result.Questions, result.Duplicates = DedupeQuestions(parsed)
	if result.Duplicates > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Duplicates ignored in CSV: %d", result.Duplicates))
	}
	logger.Log.Debug("Parsed question rows",
		zap.Int("rows", len(rows)-start),
		zap.Int("questions", len(result.Questions)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("duplicates", result.Duplicates))
	return result, nil
}

func (p *QuestionParser) parseRow(row []string, header Header) (*model.Question, []string, error) {
	var warnings []string
	layout := layoutFor(header, row)

	level, ok := model.ParseLevel(header.Value(row, keysLevel, layout.level))
	if !ok {
		return nil, nil, errInvalidLevel
	}

	category, ok := p.Resolver.Resolve(header.Value(row, keysCategory, layout.category))
	if !ok {
		return nil, nil, errEmptyCategory
	}

	stem := header.Value(row, keysStem, layout.stem)
	if stem == "" {
		return nil, nil, errEmptyStem
	}

	choices := p.parseChoices(row, header, layout)
	if len(choices) < 2 {
		return nil, nil, errTooFewChoices
	}

	correct := ParseAnswerIndices(header.Value(row, keysAnswer, layout.answer), len(choices))
	if len(correct) == 0 {
		return nil, nil, errInvalidAnswer
	}

	explanation := header.Value(row, keysExplanation, layout.explanation)
	if explanation == "" {
		warnings = append(warnings, warnMissingExplanation)
		if p.Policy != ExplanationEmpty {
			explanation = util.ExplanationPlaceholder
		}
	}

	diffRaw := header.Value(row, keysDifficulty, layout.difficulty)
	difficulty := util.ParseOptionalInt(diffRaw)
	if difficulty == nil && diffRaw != "" {
		warnings = append(warnings, warnBadDifficulty)
	}

	q := &model.Question{
		ID:             QuestionStableID(QuestionDedupeKey(stem, choices, correct)),
		Level:          level,
		Category:       category,
		Subcategory:    util.OptionalString(header.Value(row, keysSubcategory, layout.sub)),
		Stem:           stem,
		Choices:        choices,
		CorrectIndices: correct,
		Explanation:    explanation,
		Difficulty:     difficulty,
		ImageName:      util.OptionalString(header.Value(row, keysImage, layout.image)),
	}
	return q, warnings, nil
}

// parseChoices 有表头最多 MaxChoices 列，无表头固定 4 列；空选项被跳过
func (p *QuestionParser) parseChoices(row []string, header Header, layout questionLayout) []string {
	limit := util.MaxPositionalChoices
	if !header.IsEmpty() {
		limit = p.MaxChoices
	}
	choices := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		fallback := -1
		if layout.choiceA >= 0 {
			fallback = layout.choiceA + i
		}
		if v := header.Value(row, keysChoices[i], fallback); v != "" {
			choices = append(choices, v)
		}
	}
	return choices
}

// ParseAnswerIndices 按 | , ; 空格 切分，支持数字下标和字母 A-F。
// 超出范围的忽略，结果去重升序。
func ParseAnswerIndices(raw string, choicesCount int) []int {
	parts := strings.FieldsFunc(strings.ToUpper(raw), func(r rune) bool {
		return r == '|' || r == ',' || r == ';' || r == ' ' || r == '\t'
	})

	set := make(map[int]struct{})
	for _, part := range parts {
		idx := -1
		if n, err := strconv.Atoi(part); err == nil {
			idx = n
		} else if len(part) == 1 && part[0] >= 'A' && part[0] <= 'F' {
			idx = int(part[0] - 'A')
		}
		if idx >= 0 && idx < choicesCount {
			set[idx] = struct{}{}
		}
	}

	indices := make([]int, 0, len(set))
	for idx := range set {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// AnswerLetters 导出时把下标还原为 A|C 形式
func AnswerLetters(indices []int) string {
	letters := make([]string, 0, len(indices))
	for _, idx := range indices {
		letters = append(letters, string(rune('A'+idx)))
	}
	return strings.Join(letters, "|")
}
