package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cfaquiz_backend/internal/config"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/database"

	"github.com/go-redis/redis/v8"
)

func exerciseBlobStore(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Load(ctx, "missing.json"); !errors.Is(err, util.ErrBlobNotFound) {
		t.Fatalf("Load missing: %v", err)
	}
	if err := store.Save(ctx, "a.json", []byte(`[1]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "a.json", []byte(`[1,2]`)); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	data, err := store.Load(ctx, "a.json")
	if err != nil || string(data) != `[1,2]` {
		t.Fatalf("Load = %q, %v", data, err)
	}
	if err := store.Delete(ctx, "a.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "a.json"); !errors.Is(err, util.ErrBlobNotFound) {
		t.Fatalf("Load after delete: %v", err)
	}
	if err := store.Delete(ctx, "a.json"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
}

func TestMemoryBlobStore(t *testing.T) {
	exerciseBlobStore(t, NewMemoryBlobStore())
}

func TestFileBlobStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CFApp")
	exerciseBlobStore(t, NewFileBlobStore(dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestGormBlobStore(t *testing.T) {
	db, err := database.InitDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "blobs.db"),
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	exerciseBlobStore(t, NewGormBlobStore(db))
}

func TestRedisBlobStore(t *testing.T) {
	addr := os.Getenv("CFAQUIZ_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CFAQUIZ_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	exerciseBlobStore(t, NewRedisBlobStore(client, "cfaquiz-test:"))
}
