package service

import (
	"testing"

	"cfaquiz_backend/internal/model"
)

func TestQuestionDedupeKeyInvariance(t *testing.T) {
	base := QuestionDedupeKey("What is  beta?", []string{"Risk", "Return", "Alpha"}, []int{0, 2})

	cases := []struct {
		name    string
		stem    string
		choices []string
		correct []int
		same    bool
	}{
		{"choice order permuted", "what is beta?", []string{"Alpha", "Risk", "Return"}, []int{0, 1}, true},
		{"correct listed in other order", "What is beta?", []string{"Risk", "Return", "Alpha"}, []int{2, 0}, true},
		{"whitespace and case", "  WHAT IS\tBETA? ", []string{" risk", "RETURN ", "alpha"}, []int{0, 2}, true},
		{"stem changed", "What is gamma?", []string{"Risk", "Return", "Alpha"}, []int{0, 2}, false},
		{"choice text changed", "What is beta?", []string{"Risk", "Yield", "Alpha"}, []int{0, 2}, false},
		{"duplicate choice changes multiset", "What is beta?", []string{"Risk", "Return", "Alpha", "Risk"}, []int{0, 2}, false},
		{"different correct text", "What is beta?", []string{"Risk", "Return", "Alpha"}, []int{1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := QuestionDedupeKey(tc.stem, tc.choices, tc.correct)
			if (got == base) != tc.same {
				t.Fatalf("key %q vs base %q, same=%v", got, base, tc.same)
			}
		})
	}
}

func TestStableIDIsDeterministic(t *testing.T) {
	if got := QuestionStableID(""); got != "q_cbf29ce484222325" {
		t.Fatalf("empty key id = %q", got)
	}
	if got := QuestionStableID("a"); got != "q_af63dc4c8601ec8c" {
		t.Fatalf("fnv-1a(a) id = %q", got)
	}
	key := QuestionDedupeKey("stem", []string{"x", "y"}, []int{1})
	if QuestionStableID(key) != QuestionStableID(key) {
		t.Fatal("stable id differs for equal keys")
	}
	if FormulaStableID("a") != "f_af63dc4c8601ec8c" {
		t.Fatalf("formula prefix wrong: %q", FormulaStableID("a"))
	}
}

func question(id, stem string, choices []string, correct ...int) *model.Question {
	return &model.Question{
		ID:             id,
		Level:          model.Level1,
		Category:       CategoryEthics,
		Stem:           stem,
		Choices:        choices,
		CorrectIndices: correct,
		Explanation:    "-",
	}
}

func TestMergeReimportWithDifferentIDsAndOrder(t *testing.T) {
	existing := []*model.Question{
		question("ext-1", "Q?", []string{"A", "B", "C", "D"}, 0, 2),
		question("ext-2", "Other", []string{"x", "y"}, 1),
	}
	incoming := []*model.Question{
		question("ext-99", "Q?", []string{"D", "C", "B", "A"}, 1, 3),
	}

	merged, dups := MergeQuestions(existing, incoming)
	if dups != 1 {
		t.Fatalf("duplicates = %d, want 1", dups)
	}
	if len(merged) != len(existing) {
		t.Fatalf("catalog size changed: %d", len(merged))
	}
	if merged[0].ID != "ext-1" {
		t.Fatalf("existing record overwritten: %q", merged[0].ID)
	}
}

func TestMergeDedupesExistingFirst(t *testing.T) {
	existing := []*model.Question{
		question("a", "Q", []string{"1", "2"}, 0),
		question("b", "q", []string{"2", "1"}, 1),
	}
	incoming := []*model.Question{
		question("c", "New", []string{"1", "2"}, 0),
		question("d", "New", []string{"1", "2"}, 0),
	}
	merged, dups := MergeQuestions(existing, incoming)
	if dups != 2 || len(merged) != 2 {
		t.Fatalf("merged=%d dups=%d", len(merged), dups)
	}
	if merged[0].ID != "a" || merged[1].ID != "c" {
		t.Fatalf("unexpected order: %s, %s", merged[0].ID, merged[1].ID)
	}
}

func TestDedupeFormulas(t *testing.T) {
	topic := "TVM"
	formulas := []*model.Formula{
		{ID: "1", Category: "Quantitative Methods", Topic: &topic, Title: "PV", Formula: "FV/(1+r)^n"},
		{ID: "2", Category: "quantitative methods", Topic: &topic, Title: " pv ", Formula: "FV/(1+r)^n"},
		{ID: "3", Category: "Quantitative Methods", Title: "PV", Formula: "FV/(1+r)^n"},
	}
	kept, dups := DedupeFormulas(formulas)
	if dups != 1 || len(kept) != 2 || kept[1].ID != "3" {
		t.Fatalf("kept=%d dups=%d", len(kept), dups)
	}
}
