package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
)

var questionExportHeader = []string{
	"id", "level", "category", "subcategory", "stem",
	"choiceA", "choiceB", "choiceC", "choiceD", "choiceE", "choiceF",
	"answerIndex", "explanation", "difficulty", "image", "importedAt",
}

var formulaExportHeader = []string{
	"id", "category", "topic", "title", "formula", "notes", "image", "question_ids", "importedAt",
}

var attemptExportHeader = []string{
	"id", "date", "level", "mode", "score", "total",
	"durationSeconds", "categories", "perCategory", "perSubcategory",
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ExportQuestionsCSV 导出题目，答案用字母并以 | 连接，可再次导入
func ExportQuestionsCSV(w io.Writer, questions []*model.Question) error {
	rows := make([][]string, 0, len(questions))
	for _, q := range questions {
		row := []string{
			q.ID,
			strconv.Itoa(int(q.Level)),
			q.Category,
			q.SubcategoryValue(),
			q.Stem,
		}
		for i := 0; i < util.MaxHeaderChoices; i++ {
			if i < len(q.Choices) {
				row = append(row, q.Choices[i])
			} else {
				row = append(row, "")
			}
		}
		difficulty := ""
		if q.Difficulty != nil {
			difficulty = strconv.Itoa(*q.Difficulty)
		}
		row = append(row,
			AnswerLetters(q.CorrectIndices),
			q.Explanation,
			difficulty,
			q.ImageValue(),
			formatTime(q.ImportedAt),
		)
		rows = append(rows, row)
	}
	return writeCSV(w, questionExportHeader, rows)
}

func ExportFormulasCSV(w io.Writer, formulas []*model.Formula) error {
	rows := make([][]string, 0, len(formulas))
	for _, f := range formulas {
		notes := ""
		if f.Notes != nil {
			notes = *f.Notes
		}
		rows = append(rows, []string{
			f.ID,
			f.Category,
			f.TopicValue(),
			f.Title,
			f.Formula,
			notes,
			f.ImageValue(),
			strings.Join(f.QuestionIDs, "|"),
			formatTime(f.ImportedAt),
		})
	}
	return writeCSV(w, formulaExportHeader, rows)
}

func formatBreakdown(m map[string]model.CategoryResult) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d/%d", k, m[k].Correct, m[k].Total))
	}
	return strings.Join(parts, "|")
}

// ExportAttemptsCSV 测验记录，分项统计形如 Ethics:3/4|Quant:1/2
func ExportAttemptsCSV(w io.Writer, attempts []model.QuizAttempt) error {
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		date := a.Date
		rows = append(rows, []string{
			a.ID,
			formatTime(&date),
			strconv.Itoa(int(a.Level)),
			string(a.Mode),
			strconv.Itoa(a.Score),
			strconv.Itoa(a.Total),
			strconv.Itoa(a.DurationSeconds),
			strings.Join(a.Categories, "|"),
			formatBreakdown(a.PerCategory),
			formatBreakdown(a.PerSubcategory),
		})
	}
	return writeCSV(w, attemptExportHeader, rows)
}
