package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/repository"
	"cfaquiz_backend/internal/util"
)

func newCatalogFixture(t *testing.T) (*CatalogService, *repository.MemoryBlobStore) {
	t.Helper()
	dir := t.TempDir()
	bundledPath := filepath.Join(dir, "BundledQuestions.json")
	bundled := []*model.Question{
		{ID: "b1", Level: 1, Category: CategoryEthics, Stem: "b1", Choices: []string{"a", "b"}, CorrectIndices: []int{0}},
	}
	data, err := json.Marshal(bundled)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bundledPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	store := repository.NewMemoryBlobStore()
	catalog := repository.NewCatalogRepository(store, bundledPath, "")
	if err := catalog.SaveImportedQuestions(context.Background(), testCatalog()); err != nil {
		t.Fatal(err)
	}
	return NewCatalogService(catalog), store
}

func TestCatalogQuestionsFilter(t *testing.T) {
	svc, _ := newCatalogFixture(t)
	ctx := context.Background()

	all, err := svc.Questions(ctx, QuestionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(testCatalog())+1 || all[0].ID != "b1" {
		t.Fatalf("union = %v", questionIDs(all))
	}

	eco, _ := svc.Questions(ctx, QuestionFilter{Level: 1, Category: "éco"})
	if !reflect.DeepEqual(questionIDs(eco), []string{"x1", "x2"}) {
		t.Fatalf("economics = %v", questionIDs(eco))
	}

	if _, ok := svc.Question(ctx, "b1"); !ok {
		t.Fatal("bundled question not found by id")
	}
	if _, ok := svc.Question(ctx, "nope"); ok {
		t.Fatal("unexpected question")
	}
}

func TestCatalogCategoriesOrdering(t *testing.T) {
	svc, _ := newCatalogFixture(t)
	cats, err := svc.Categories(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) == 0 || cats[0].Name != CategoryEthics {
		t.Fatalf("categories = %+v", cats)
	}
	for i := 1; i < len(cats); i++ {
		if cats[i].Subcategories == nil {
			t.Fatalf("nil subcategories for %s", cats[i].Name)
		}
	}
}

func TestCatalogValidateDetectsCorruption(t *testing.T) {
	svc, store := newCatalogFixture(t)
	ctx := context.Background()

	counts, err := svc.Validate(ctx)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if counts.BundledQuestions != 1 || counts.ImportedQuestions != len(testCatalog()) || counts.TotalQuestions != len(testCatalog())+1 {
		t.Fatalf("counts = %+v", counts)
	}

	if err := store.Save(ctx, util.KeyImportedQuestions, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Validate(ctx); !errors.Is(err, util.ErrCatalogCorrupt) {
		t.Fatalf("Validate on corrupt catalog: %v", err)
	}
	// 宽松读取把损坏视为空
	all, err := svc.Questions(ctx, QuestionFilter{})
	if err != nil || len(all) != 1 {
		t.Fatalf("lenient load: %v %d", err, len(all))
	}
}

func TestCatalogExportQuestions(t *testing.T) {
	svc, _ := newCatalogFixture(t)
	var buf bytes.Buffer
	if err := svc.ExportQuestions(context.Background(), &buf, QuestionFilter{Category: CategoryEthics}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\nb1,1,Ethics,") {
		t.Fatalf("export = %s", buf.String())
	}
}

func questionIDs(qs []*model.Question) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}
