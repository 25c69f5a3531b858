package service

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"cfaquiz_backend/internal/model"
)

func TestExportQuestionsRoundTrip(t *testing.T) {
	sub := "Time Value of Money"
	diff := 2
	img := "q_chart.png"
	stem := "Which statement, if any, is \"true\"?\nPick all that apply."
	original := []*model.Question{
		{
			Level: 1, Category: CategoryQuantitativeMethods, Subcategory: &sub, Stem: stem,
			Choices:        []string{"alpha", "beta, gamma", "delta", "epsilon", "zeta"},
			CorrectIndices: []int{1, 4}, Explanation: "Because; reasons.", Difficulty: &diff, ImageName: &img,
		},
		{
			Level: 3, Category: "Behavioral Finance", Stem: "Plain?",
			Choices: []string{"yes", "no"}, CorrectIndices: []int{0}, Explanation: "—",
		},
	}
	for _, q := range original {
		q.ID = QuestionStableID(QuestionDedupeKey(q.Stem, q.Choices, q.CorrectIndices))
		q.ImportedAt = &t0
	}

	var buf bytes.Buffer
	if err := ExportQuestionsCSV(&buf, original); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "id,level,category,subcategory,stem,choiceA,") {
		t.Fatalf("header = %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}

	res, err := newTestQuestionParser(ExplanationPlaceholder).Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Fatalf("errors=%v warnings=%v", res.Errors, res.Warnings)
	}
	if len(res.Questions) != len(original) {
		t.Fatalf("got %d questions", len(res.Questions))
	}
	for i, got := range res.Questions {
		want := original[i]
		if got.ID != want.ID || got.Stem != want.Stem || got.Category != want.Category || got.Level != want.Level {
			t.Errorf("question %d: got %+v want %+v", i, got, want)
		}
		if !reflect.DeepEqual(got.Choices, want.Choices) || !reflect.DeepEqual(got.CorrectIndices, want.CorrectIndices) {
			t.Errorf("question %d choices/answers: %v %v", i, got.Choices, got.CorrectIndices)
		}
		if got.Explanation != want.Explanation || got.ImageValue() != want.ImageValue() || got.SubcategoryValue() != want.SubcategoryValue() {
			t.Errorf("question %d details: %+v", i, got)
		}
	}
	if res.Questions[0].Difficulty == nil || *res.Questions[0].Difficulty != 2 {
		t.Errorf("difficulty lost")
	}
}

func TestExportAttemptsCSV(t *testing.T) {
	attempts := []model.QuizAttempt{{
		ID: "a1", Date: t0, Level: 2, Mode: model.ModeSpaced, Score: 3, Total: 4, DurationSeconds: 120,
		Categories:     []string{CategoryEthics, CategoryEconomics},
		PerCategory:    map[string]model.CategoryResult{CategoryEthics: {Correct: 2, Total: 2}, CategoryEconomics: {Correct: 1, Total: 2}},
		PerSubcategory: map[string]model.CategoryResult{"GDP": {Correct: 1, Total: 2}},
	}}
	var buf bytes.Buffer
	if err := ExportAttemptsCSV(&buf, attempts); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	want := "a1,2025-03-01T09:00:00Z,2,spaced,3,4,120,Ethics|Economics,Economics:1/2|Ethics:2/2,GDP:1/2"
	if lines[1] != want {
		t.Fatalf("row = %q\nwant  %q", lines[1], want)
	}
}

func TestExportFormulasCSV(t *testing.T) {
	topic := "TVM"
	formulas := []*model.Formula{{ID: "f_1", Category: CategoryQuantitativeMethods, Topic: &topic,
		Title: "FV", Formula: "FV = PV(1+r)^n", QuestionIDs: []string{"q_a", "q_b"}}}
	var buf bytes.Buffer
	if err := ExportFormulasCSV(&buf, formulas); err != nil {
		t.Fatal(err)
	}

	rows, err := ReadRows(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	res, err := NewFormulaParser(nil).ParseRows(rows)
	if err != nil || len(res.Formulas) != 1 {
		t.Fatalf("re-import: %v %+v", err, res)
	}
	if got := res.Formulas[0]; got.Title != "FV" || !reflect.DeepEqual(got.QuestionIDs, []string{"q_a", "q_b"}) {
		t.Fatalf("formula = %+v", got)
	}
}
