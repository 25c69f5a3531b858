package service

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cfaquiz_backend/internal/config"
	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/util"
)

// writeZip 写一个测试用压缩包，files 的键为包内路径
func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newLocalStorage(t *testing.T) (*StorageService, string) {
	dir := filepath.Join(t.TempDir(), "ImportedAssets")
	cfg := &config.Config{Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: dir}}
	return NewStorageService(cfg), dir
}

func TestExtractZipAndFindFirstCSV(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pack.zip")
	writeZip(t, archive, map[string]string{
		"__MACOSX/._bank.csv":  "junk",
		"pack/b/second.csv":    "x",
		"pack/a/bank.csv":      "y",
		"pack/images/Fig1.PNG": "png",
	})

	out := filepath.Join(dir, "out")
	if err := ExtractZip(archive, out); err != nil {
		t.Fatalf("ExtractZip: %v", err)
	}
	csv, err := FindFirstCSV(out)
	if err != nil {
		t.Fatalf("FindFirstCSV: %v", err)
	}
	if filepath.ToSlash(strings.TrimPrefix(csv, out)) != "/pack/a/bank.csv" {
		t.Fatalf("first csv = %s", csv)
	}
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../escape.txt": "x"})

	err := ExtractZip(archive, filepath.Join(dir, "out"))
	if !errors.Is(err, util.ErrUnsafeArchivePath) {
		t.Fatalf("expected ErrUnsafeArchivePath, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "escape.txt")); statErr == nil {
		t.Fatal("file escaped extraction dir")
	}
}

func TestFindFirstCSVMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "img.png"), "x")
	if _, err := FindFirstCSV(dir); !errors.Is(err, util.ErrMissingCSV) {
		t.Fatalf("expected ErrMissingCSV, got %v", err)
	}
}

func TestWithTempDirAlwaysRemoves(t *testing.T) {
	var kept string
	boom := errors.New("boom")
	err := WithTempDir(func(dir string) error {
		kept = dir
		writeFile(t, filepath.Join(dir, "a", "b.txt"), "x")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(kept); !os.IsNotExist(statErr) {
		t.Fatalf("temp dir still exists: %v", statErr)
	}
}

func TestAssetIndexResolve(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "images", "Graph.PNG"), "png")
	writeFile(t, filepath.Join(root, "top.jpg"), "jpg")

	idx, err := BuildAssetIndex(root)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"images/Graph.PNG", filepath.Join(root, "images", "Graph.PNG"), true},
		{"IMAGES/graph.png", filepath.Join(root, "images", "Graph.PNG"), true},
		{"graph.png", filepath.Join(root, "images", "Graph.PNG"), true},
		{"./top.jpg", filepath.Join(root, "top.jpg"), true},
		{"other/dir/TOP.JPG", filepath.Join(root, "top.jpg"), true},
		{"missing.png", "", false},
		{"   ", "", false},
	}
	for _, tc := range cases {
		got, ok := idx.Resolve(tc.ref)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tc.ref, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStoredAssetName(t *testing.T) {
	if got := StoredAssetName("q_1", "images/Fig 1.png"); got != "q_1_Fig 1.png" {
		t.Fatalf("StoredAssetName = %q", got)
	}
	if got := StoredAssetName("q_1", ""); !strings.HasPrefix(got, "q_1_") || len(got) <= len("q_1_") {
		t.Fatalf("StoredAssetName empty = %q", got)
	}
}

func TestAttachQuestionImages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "img", "chart.png"), "new-bytes")

	storage, assetsDir := newLocalStorage(t)
	// 旧文件会被覆盖
	writeFile(t, filepath.Join(assetsDir, "q1_chart.png"), "stale")

	idx, err := BuildAssetIndex(root)
	if err != nil {
		t.Fatal(err)
	}
	found := "chart.png"
	missing := "nope.png"
	questions := []*model.Question{
		{ID: "q1", ImageName: &found},
		{ID: "q2", ImageName: &missing},
		{ID: "q3"},
	}

	warnings := NewAssetService(storage).AttachQuestionImages(context.Background(), idx, questions)
	if len(warnings) != 1 || warnings[0] != "Image not found for question q2: nope.png" {
		t.Fatalf("warnings = %v", warnings)
	}
	if questions[0].ImageValue() != "q1_chart.png" {
		t.Fatalf("image name = %q", questions[0].ImageValue())
	}
	if questions[1].ImageValue() != "nope.png" || questions[2].ImageName != nil {
		t.Fatal("unresolved references must be left untouched")
	}
	data, err := os.ReadFile(filepath.Join(assetsDir, "q1_chart.png"))
	if err != nil || string(data) != "new-bytes" {
		t.Fatalf("stored asset = %q, %v", data, err)
	}

	if n := NewAssetService(storage).RemoveImages(context.Background(), questions[:1], nil); n != 1 {
		t.Fatalf("removed = %d", n)
	}
	if _, err := os.Stat(filepath.Join(assetsDir, "q1_chart.png")); !os.IsNotExist(err) {
		t.Fatal("asset not removed")
	}
}
