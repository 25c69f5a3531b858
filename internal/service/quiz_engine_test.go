package service

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"

	"cfaquiz_backend/internal/model"
)

const day = 24 * time.Hour

func ago(d time.Duration) *time.Time {
	t := t0.Add(-d)
	return &t
}

func TestSRSWeight(t *testing.T) {
	cases := []struct {
		name string
		h    *model.ReviewHistory
		want float64
	}{
		{"no history", nil, 4.0},
		{"incorrect streak 1, two days", &model.ReviewHistory{IncorrectStreak: 1, LastAttemptAt: ago(2 * day)}, 5.5},
		{"incorrect streak capped", &model.ReviewHistory{IncorrectStreak: 5, LastAttemptAt: nil}, 7.5},
		{"incorrect, attempt in future", &model.ReviewHistory{IncorrectStreak: 1, LastAttemptAt: ago(-day)}, 4.5},
		{"correct streak 0, never correct", &model.ReviewHistory{}, 5.0},
		{"due exactly at interval", &model.ReviewHistory{CorrectStreak: 2, LastCorrectAt: ago(4 * day)}, 3.5},
		{"one second before interval", &model.ReviewHistory{CorrectStreak: 2, LastCorrectAt: ago(4*day - time.Second)}, 0.5},
		{"long overdue capped", &model.ReviewHistory{CorrectStreak: 1, LastCorrectAt: ago(40 * day)}, 5.0},
		{"streak beyond table uses 30 days", &model.ReviewHistory{CorrectStreak: 9, LastCorrectAt: ago(29 * day)}, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SRSWeight(tc.h, t0); got != tc.want {
				t.Fatalf("SRSWeight = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSRSIntervalDays(t *testing.T) {
	want := map[int]float64{-1: 1, 0: 1, 1: 2, 2: 4, 3: 7, 4: 14, 5: 30, 12: 30}
	for streak, days := range want {
		if got := SRSIntervalDays(streak); got != days {
			t.Errorf("SRSIntervalDays(%d) = %v, want %v", streak, got, days)
		}
	}
}

func testCatalog() []*model.Question {
	sub := " Time Value "
	qs := []*model.Question{
		{ID: "e1", Level: 1, Category: CategoryEthics, Stem: "e1", Choices: []string{"a", "b"}, CorrectIndices: []int{0}},
		{ID: "e2", Level: 1, Category: CategoryEthics, Stem: "e2", Choices: []string{"a", "b"}, CorrectIndices: []int{1}},
		{ID: "x1", Level: 1, Category: CategoryEconomics, Stem: "x1", Choices: []string{"a", "b", "c"}, CorrectIndices: []int{2}},
		{ID: "x2", Level: 1, Category: CategoryEconomics, Stem: "x2", Choices: []string{"a", "b", "c"}, CorrectIndices: []int{0, 1}},
		{ID: "q1", Level: 1, Category: CategoryQuantitativeMethods, Subcategory: &sub, Stem: "q1", Choices: []string{"a", "b"}, CorrectIndices: []int{0}},
		{ID: "l2", Level: 2, Category: CategoryEthics, Stem: "l2", Choices: []string{"a", "b"}, CorrectIndices: []int{0}},
		{ID: "bad1", Level: 1, Category: CategoryEthics, Stem: "bad", Choices: []string{"only"}, CorrectIndices: []int{0}},
		{ID: "bad2", Level: 1, Category: CategoryEthics, Stem: "bad", Choices: []string{"a", "b"}, CorrectIndices: []int{}},
		{ID: "bad3", Level: 1, Category: CategoryEthics, Stem: "bad", Choices: []string{"a", "b"}, CorrectIndices: []int{2}},
	}
	return qs
}

func ids(prepared []model.PreparedQuestion) []string {
	out := make([]string, len(prepared))
	for i, p := range prepared {
		out[i] = p.ID
	}
	sort.Strings(out)
	return out
}

func newTestEngine() *QuizEngine {
	return &QuizEngine{Now: func() time.Time { return t0 }}
}

func TestPrepareRandomModeBypassesCategoryFilter(t *testing.T) {
	cfg := model.QuizConfig{Level: 1, Mode: model.ModeRandom, Categories: []string{CategoryEthics}, NumberOfQuestions: 50}
	got := ids(newTestEngine().Prepare(testCatalog(), cfg, nil, rand.New(rand.NewSource(1))))

	want := []string{"e1", "e2", "q1", "x1", "x2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("random selection = %v, want %v", got, want)
	}
}

func TestPrepareFiltersCategoryAndSubcategory(t *testing.T) {
	engine := newTestEngine()
	rng := rand.New(rand.NewSource(7))

	cfg := model.QuizConfig{Level: 1, Mode: model.ModeRevision, Categories: []string{CategoryEthics}, NumberOfQuestions: 50}
	if got := ids(engine.Prepare(testCatalog(), cfg, nil, rng)); !reflect.DeepEqual(got, []string{"e1", "e2"}) {
		t.Fatalf("category filter = %v", got)
	}

	cfg = model.QuizConfig{Level: 1, Mode: model.ModeTest, Subcategories: []string{"Time Value"}, NumberOfQuestions: 50}
	if got := ids(engine.Prepare(testCatalog(), cfg, nil, rng)); !reflect.DeepEqual(got, []string{"q1"}) {
		t.Fatalf("subcategory filter = %v", got)
	}

	cfg = model.QuizConfig{Level: 2, Mode: model.ModeRevision, NumberOfQuestions: 50}
	if got := ids(engine.Prepare(testCatalog(), cfg, nil, rng)); !reflect.DeepEqual(got, []string{"l2"}) {
		t.Fatalf("level filter = %v", got)
	}
}

func TestPrepareSkipsNilQuestions(t *testing.T) {
	catalog := append([]*model.Question{nil}, testCatalog()...)
	catalog = append(catalog, nil)
	cfg := model.QuizConfig{Level: 1, Mode: model.ModeRandom, NumberOfQuestions: 50}
	got := ids(newTestEngine().Prepare(catalog, cfg, nil, rand.New(rand.NewSource(5))))
	if !reflect.DeepEqual(got, []string{"e1", "e2", "q1", "x1", "x2"}) {
		t.Fatalf("selection = %v", got)
	}
}

func TestPrepareTakesAtMostN(t *testing.T) {
	cfg := model.QuizConfig{Level: 1, Mode: model.ModeRandom, NumberOfQuestions: 3}
	got := newTestEngine().Prepare(testCatalog(), cfg, nil, rand.New(rand.NewSource(3)))
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	seen := map[string]bool{}
	for _, p := range got {
		if seen[p.ID] {
			t.Fatalf("duplicate selection %s", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestPrepareSpacedOrdersByWeight(t *testing.T) {
	history := map[string]model.ReviewHistory{
		// 答错中：5.5
		"x1": {ID: "x1", IncorrectStreak: 1, LastAttemptAt: ago(2 * day)},
		// 刚答对：0.5
		"e1": {ID: "e1", CorrectStreak: 3, LastCorrectAt: ago(day)},
		"e2": {ID: "e2", CorrectStreak: 3, LastCorrectAt: ago(day)},
		"q1": {ID: "q1", CorrectStreak: 3, LastCorrectAt: ago(day)},
	}
	cfg := model.QuizConfig{Level: 1, Mode: model.ModeSpaced, NumberOfQuestions: 2}

	for seed := int64(0); seed < 20; seed++ {
		got := newTestEngine().Prepare(testCatalog(), cfg, history, rand.New(rand.NewSource(seed)))
		if len(got) != 2 || got[0].ID != "x1" || got[1].ID != "x2" {
			t.Fatalf("seed %d: order = %v", seed, []string{got[0].ID, got[1].ID})
		}
	}
}

func TestPrepareSpacedBreaksTiesRandomly(t *testing.T) {
	cfg := model.QuizConfig{Level: 1, Mode: model.ModeSpaced, NumberOfQuestions: 1}
	firsts := map[string]bool{}
	for seed := int64(0); seed < 50; seed++ {
		got := newTestEngine().Prepare(testCatalog(), cfg, nil, rand.New(rand.NewSource(seed)))
		firsts[got[0].ID] = true
	}
	if len(firsts) < 2 {
		t.Fatalf("equal weights always produced %v", firsts)
	}
}

func TestPrepareShuffleAnswersPreservesCorrectness(t *testing.T) {
	q := &model.Question{
		ID: "m", Level: 1, Category: CategoryEthics, Stem: "m",
		Choices:        []string{"w", "x", "y", "z", "v"},
		CorrectIndices: []int{1, 3},
	}
	cfg := model.QuizConfig{Level: 1, Mode: model.ModeRevision, NumberOfQuestions: 1, ShuffleAnswers: true}

	for seed := int64(0); seed < 30; seed++ {
		got := newTestEngine().Prepare([]*model.Question{q}, cfg, nil, rand.New(rand.NewSource(seed)))[0]

		if !sort.IntsAreSorted(got.CorrectIndices) || len(got.CorrectIndices) != 2 {
			t.Fatalf("seed %d: correct = %v", seed, got.CorrectIndices)
		}
		correct := map[string]bool{}
		for _, idx := range got.CorrectIndices {
			correct[got.Choices[idx]] = true
		}
		if !correct["x"] || !correct["z"] {
			t.Fatalf("seed %d: correct texts = %v (choices %v)", seed, correct, got.Choices)
		}
		if !reflect.DeepEqual(got.Original.Choices, []string{"w", "x", "y", "z", "v"}) {
			t.Fatalf("original mutated: %v", got.Original.Choices)
		}
	}
}

func TestPrepareWithoutShuffleKeepsOrder(t *testing.T) {
	cfg := model.QuizConfig{Level: 1, Mode: model.ModeRevision, Categories: []string{CategoryEconomics}, NumberOfQuestions: 5}
	for _, p := range newTestEngine().Prepare(testCatalog(), cfg, nil, rand.New(rand.NewSource(1))) {
		if !reflect.DeepEqual(p.Choices, p.Original.Choices) || !reflect.DeepEqual(p.CorrectIndices, p.Original.CorrectIndices) {
			t.Fatalf("unshuffled question changed: %+v", p)
		}
	}
}
