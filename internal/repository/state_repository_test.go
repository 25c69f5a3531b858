package repository

import (
	"context"
	"testing"

	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
)

func TestHistoryRepositoryCorruptStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	_ = store.Save(ctx, util.KeyQuestionHistory, []byte("[]x"))
	repo := NewHistoryRepository(store)

	all := repo.LoadAll(ctx)
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty map, got %v", all)
	}

	h := model.NewReviewHistory("q1")
	h.Apply(true, t0)
	all["q1"] = h
	if err := repo.Save(ctx, all); err != nil {
		t.Fatal(err)
	}
	got := repo.LoadAll(ctx)["q1"]
	if got.CorrectStreak != 1 || got.LastCorrectAt == nil || !got.LastCorrectAt.Equal(t0) {
		t.Fatalf("unexpected history: %+v", got)
	}
}

func TestAttemptRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptRepository(NewMemoryBlobStore())
	_ = repo.Add(ctx, model.QuizAttempt{ID: "first", Date: t0})
	_ = repo.Add(ctx, model.QuizAttempt{ID: "second", Date: t0})

	got := repo.List(ctx)
	if len(got) != 2 || got[0].ID != "second" {
		t.Fatalf("unexpected attempts: %+v", got)
	}
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(NewMemoryBlobStore())

	snap, err := repo.Load(ctx)
	if err != nil || snap != nil {
		t.Fatalf("expected no snapshot, got %+v %v", snap, err)
	}
	if err := repo.Save(ctx, &model.QuizSessionSnapshot{ID: "s1", CurrentIndex: 3}); err != nil {
		t.Fatal(err)
	}
	snap, err = repo.Load(ctx)
	if err != nil || snap.ID != "s1" || snap.CurrentIndex != 3 {
		t.Fatalf("snapshot = %+v, %v", snap, err)
	}
	_ = repo.Clear(ctx)
	if snap, _ = repo.Load(ctx); snap != nil {
		t.Fatal("snapshot not cleared")
	}
}

func TestReportRepositories(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()

	reports := NewReportRepository(store)
	_ = reports.Add(ctx, model.QuestionReport{ID: "r1", IssueType: model.IssueTypo})
	_ = reports.Add(ctx, model.QuestionReport{ID: "r2", IssueType: model.IssueOther})
	if got := reports.List(ctx); len(got) != 2 || got[0].ID != "r2" {
		t.Fatalf("reports = %+v", got)
	}

	imports := NewImportReportRepository(store)
	if imports.Load(ctx) != nil {
		t.Fatal("expected no import report")
	}
	_ = imports.Save(ctx, &model.ImportReport{Status: model.ImportSuccess, ImportedCount: 4})
	if got := imports.Load(ctx); got == nil || got.ImportedCount != 4 {
		t.Fatalf("import report = %+v", got)
	}
}
