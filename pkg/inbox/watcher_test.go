package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestScanOnceProcessesAndRemoves(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.zip", "a.CSV", "notes.txt", ".hidden.csv", "bad.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	w := New(dir, 0, []string{".csv", ".zip"}, func(ctx context.Context, path string) error {
		seen = append(seen, filepath.Base(path))
		if filepath.Base(path) == "bad.csv" {
			return errors.New("broken")
		}
		return nil
	})

	if ok := w.ScanOnce(context.Background()); ok != 2 {
		t.Fatalf("ScanOnce = %d, want 2", ok)
	}
	if !reflect.DeepEqual(seen, []string{"a.CSV", "b.zip", "bad.csv"}) {
		t.Fatalf("seen = %v", seen)
	}
	left, _ := os.ReadDir(dir)
	var names []string
	for _, e := range left {
		names = append(names, e.Name())
	}
	if !reflect.DeepEqual(names, []string{".hidden.csv", "notes.txt"}) {
		t.Fatalf("remaining = %v", names)
	}
}

func TestScanOnceKeepsDeferredFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "busy.csv")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := New(dir, 0, []string{".csv"}, func(ctx context.Context, path string) error {
		return fmt.Errorf("%w: import already running", ErrRetryLater)
	})

	if ok := w.ScanOnce(context.Background()); ok != 0 {
		t.Fatalf("ScanOnce = %d, want 0", ok)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("deferred file removed: %v", err)
	}
}

func TestRunRetriesDeferredFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "busy.csv")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := make(chan int, 4)
	n := 0
	w := New(dir, 20*time.Millisecond, []string{".csv"}, func(ctx context.Context, path string) error {
		n++
		calls <- n
		if n == 1 {
			return fmt.Errorf("%w: import already running", ErrRetryLater)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for want := 1; want <= 2; want++ {
		select {
		case got := <-calls:
			if got != want {
				t.Fatalf("call %d, want %d", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("handler call %d never happened", want)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should be removed after retry, stat err = %v", err)
	}
}

func TestRunPicksUpNewFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ImportInbox")
	got := make(chan string, 4)
	w := New(dir, 20*time.Millisecond, []string{".csv"}, func(ctx context.Context, path string) error {
		got <- filepath.Base(path)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// 等待目录创建并开始监听
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("inbox dir not created")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "new.csv"), []byte("level,category\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-got:
		if name != "new.csv" {
			t.Fatalf("handled %q", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("file was not picked up")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
