package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleQuestion(id string, importedAt *time.Time) *model.Question {
	return &model.Question{
		ID:             id,
		Level:          model.Level1,
		Category:       "Ethics",
		Stem:           "Stem " + id,
		Choices:        []string{"a", "b"},
		CorrectIndices: []int{0},
		Explanation:    "-",
		ImportedAt:     importedAt,
	}
}

func TestCatalogImportedRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(NewMemoryBlobStore(), "", "")

	if got := repo.LoadImportedQuestions(ctx); len(got) != 0 {
		t.Fatalf("expected empty catalog, got %d", len(got))
	}

	in := []*model.Question{sampleQuestion("q1", &t0), sampleQuestion("q2", &t0)}
	if err := repo.SaveImportedQuestions(ctx, in); err != nil {
		t.Fatal(err)
	}
	out := repo.LoadImportedQuestions(ctx)
	if len(out) != 2 || out[1].ID != "q2" || !out[1].ImportedAt.Equal(t0) {
		t.Fatalf("unexpected catalog: %+v", out)
	}

	if err := repo.ClearImported(ctx); err != nil {
		t.Fatal(err)
	}
	if got := repo.LoadImportedQuestions(ctx); len(got) != 0 {
		t.Fatalf("catalog not cleared: %d", len(got))
	}
}

func TestCatalogCorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	_ = store.Save(ctx, util.KeyImportedQuestions, []byte("{not json"))
	repo := NewCatalogRepository(store, "", "")

	if got := repo.LoadImportedQuestions(ctx); got != nil {
		t.Fatalf("corrupt catalog should load as empty, got %v", got)
	}
	if _, err := repo.LoadImportedQuestionsOrError(ctx); !errors.Is(err, util.ErrCatalogCorrupt) {
		t.Fatalf("expected ErrCatalogCorrupt, got %v", err)
	}
}

func TestCatalogSkipsNullEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	_ = store.Save(ctx, util.KeyImportedQuestions,
		[]byte(`[null,{"id":"a","level":1,"category":"Ethics","stem":"S","choices":["x","y"],"correctIndices":[0],"explanation":"e"},null]`))
	_ = store.Save(ctx, util.KeyImportedFormulas, []byte(`[null]`))

	bundled := filepath.Join(t.TempDir(), "bundled.json")
	if err := os.WriteFile(bundled, []byte(`[null,{"id":"b","level":1,"category":"Ethics","stem":"T","choices":["x","y"],"correctIndices":[1],"explanation":"e"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	repo := NewCatalogRepository(store, bundled, "")

	imported, err := repo.LoadImportedQuestionsOrError(ctx)
	if err != nil || len(imported) != 1 || imported[0].ID != "a" {
		t.Fatalf("imported = %+v, %v", imported, err)
	}
	all, err := repo.LoadAllQuestions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(all))
	}
	for _, q := range all {
		if q == nil {
			t.Fatal("nil question leaked from catalog")
		}
	}
	if formulas := repo.LoadImportedFormulas(ctx); len(formulas) != 0 {
		t.Fatalf("formulas = %+v", formulas)
	}
}

func TestCatalogLegacyAnswerIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	legacy := `[{"id":"old","level":2,"category":"Economics","stem":"S","choices":["a","b","c"],"answerIndex":2,"explanation":"e"}]`
	_ = store.Save(ctx, util.KeyImportedQuestions, []byte(legacy))

	got := NewCatalogRepository(store, "", "").LoadImportedQuestions(ctx)
	if len(got) != 1 || len(got[0].CorrectIndices) != 1 || got[0].CorrectIndices[0] != 2 {
		t.Fatalf("legacy decode failed: %+v", got)
	}
}

func TestLoadAllQuestionsUnion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	earlier := t0.Add(-time.Hour)
	later := t0.Add(time.Hour)

	bundledPath := filepath.Join(dir, "BundledQuestions.json")
	bundled := `[
		{"id":"b1","level":1,"category":"Ethics","stem":"bundled one","choices":["a","b"],"correctIndices":[0],"explanation":"x"},
		{"id":"b2","level":1,"category":"Ethics","stem":"bundled two","choices":["a","b"],"correctIndices":[1],"explanation":"x","importedAt":"` + t0.Format(time.RFC3339) + `"}
	]`
	if err := os.WriteFile(bundledPath, []byte(bundled), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := NewCatalogRepository(NewMemoryBlobStore(), bundledPath, "")
	imported := []*model.Question{
		sampleQuestion("b1", &earlier),
		sampleQuestion("b2", &earlier),
		sampleQuestion("n1", &later),
	}
	if err := repo.SaveImportedQuestions(ctx, imported); err != nil {
		t.Fatal(err)
	}

	all, err := repo.LoadAllQuestions(ctx)
	if err != nil {
		t.Fatalf("LoadAllQuestions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d", len(all))
	}
	if all[0].Stem != "Stem b1" {
		t.Fatalf("imported b1 should replace undated bundled copy, got %q", all[0].Stem)
	}
	if all[1].Stem != "bundled two" {
		t.Fatalf("older import must not replace newer bundled copy, got %q", all[1].Stem)
	}
	if all[2].ID != "n1" {
		t.Fatalf("new import missing: %+v", all[2])
	}
}

func TestLoadAllQuestionsMissingBundle(t *testing.T) {
	repo := NewCatalogRepository(NewMemoryBlobStore(), filepath.Join(t.TempDir(), "none.json"), "")
	all, err := repo.LoadAllQuestions(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("all=%v err=%v", all, err)
	}
}
